package vehicle

import (
	"encoding/json"
	"fmt"
)

// ButtonType enumerates the cruise buttons on the retrofit control stalk.
type ButtonType int

const (
	AccelCruise ButtonType = iota
	DecelCruise
	Cancel
	SetCruise

	numButtons
)

var buttonNames = [numButtons]string{
	AccelCruise: "accelCruise",
	DecelCruise: "decelCruise",
	Cancel:      "cancel",
	SetCruise:   "setCruise",
}

// ButtonTypes lists every button in broadcast order.
func ButtonTypes() []ButtonType {
	return []ButtonType{AccelCruise, DecelCruise, Cancel, SetCruise}
}

func (b ButtonType) String() string {
	if b < 0 || b >= numButtons {
		return fmt.Sprintf("button(%d)", int(b))
	}
	return buttonNames[b]
}

// MarshalText encodes the button by name.
func (b ButtonType) MarshalText() ([]byte, error) {
	if b < 0 || b >= numButtons {
		return nil, fmt.Errorf("unknown button %d", int(b))
	}
	return []byte(buttonNames[b]), nil
}

// UnmarshalText decodes a button name.
func (b *ButtonType) UnmarshalText(text []byte) error {
	for i, name := range buttonNames {
		if name == string(text) {
			*b = ButtonType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown button %q", text)
}

// ButtonStateMap is the pressed state of every button. Its key set is fixed.
type ButtonStateMap [numButtons]bool

// Pressed reports the state of one button.
func (m ButtonStateMap) Pressed(b ButtonType) bool {
	if b < 0 || b >= numButtons {
		return false
	}
	return m[b]
}

// Events returns one event per button, pressed or not.
func (m ButtonStateMap) Events() []ButtonEvent {
	out := make([]ButtonEvent, 0, numButtons)
	for _, b := range ButtonTypes() {
		out = append(out, ButtonEvent{Type: b, Pressed: m[b]})
	}
	return out
}

// MarshalJSON encodes the map as {"accelCruise": false, ...}.
func (m ButtonStateMap) MarshalJSON() ([]byte, error) {
	obj := make(map[string]bool, numButtons)
	for _, b := range ButtonTypes() {
		obj[b.String()] = m[b]
	}
	return json.Marshal(obj)
}

// ButtonEvent reports the state of one button for one cycle.
type ButtonEvent struct {
	Type    ButtonType `json:"type"`
	Pressed bool       `json:"pressed"`
}
