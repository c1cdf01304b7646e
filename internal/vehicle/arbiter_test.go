package vehicle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ocelot/internal/units"
)

func buttonsPressed(bs ...ButtonType) ButtonStateMap {
	var m ButtonStateMap
	for _, b := range bs {
		m[b] = true
	}
	return m
}

func TestCruiseArbiterTransitions(t *testing.T) {
	arb := CruiseArbiter{SpeedStepMph: 5, SpeedRoundingMph: 5}
	speed := 32.5 * units.MPHToMPS

	tests := []struct {
		name        string
		start       ArbitrationState
		in          ArbiterInput
		wantEnabled bool
		wantTarget  float64
	}{
		{
			name:        "stays disabled without set",
			in:          ArbiterInput{VEgo: speed},
			wantEnabled: false,
		},
		{
			name:        "set enables and snaps half-even",
			in:          ArbiterInput{Buttons: buttonsPressed(SetCruise), VEgo: speed},
			wantEnabled: true,
			wantTarget:  30 * units.MPHToMPS,
		},
		{
			name:        "set while enabled keeps target",
			start:       ArbitrationState{EnabledPrevious: true, TargetSpeed: 10},
			in:          ArbiterInput{Buttons: buttonsPressed(SetCruise), VEgo: speed},
			wantEnabled: true,
			wantTarget:  10,
		},
		{
			name:        "enable edge with accelerate applies both",
			in:          ArbiterInput{Buttons: buttonsPressed(SetCruise, AccelCruise), VEgo: speed},
			wantEnabled: true,
			wantTarget:  35 * units.MPHToMPS,
		},
		{
			name:        "hint falling edge disables",
			start:       ArbitrationState{EnabledPrevious: true, ControlEnabledPrevious: true, TargetSpeed: 10},
			in:          ArbiterInput{VEgo: speed},
			wantEnabled: false,
			wantTarget:  10,
		},
		{
			name:        "hint falling edge with set re-enables and re-snaps",
			start:       ArbitrationState{EnabledPrevious: true, ControlEnabledPrevious: true, TargetSpeed: 10},
			in:          ArbiterInput{Buttons: buttonsPressed(SetCruise), VEgo: speed},
			wantEnabled: true,
			wantTarget:  30 * units.MPHToMPS,
		},
		{
			name:        "steady hint keeps enabled",
			start:       ArbitrationState{EnabledPrevious: true, ControlEnabledPrevious: true, TargetSpeed: 10},
			in:          ArbiterInput{ControlEnabled: true, VEgo: speed},
			wantEnabled: true,
			wantTarget:  10,
		},
		{
			name:        "cancel is not acted on",
			start:       ArbitrationState{EnabledPrevious: true, TargetSpeed: 10},
			in:          ArbiterInput{Buttons: buttonsPressed(Cancel), VEgo: speed},
			wantEnabled: true,
			wantTarget:  10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := tt.start
			got := arb.Arbitrate(&st, tt.in)
			assert.Equal(t, tt.wantEnabled, got.Enabled)
			assert.True(t, got.Available)
			assert.InDelta(t, tt.wantTarget, got.Speed, 1e-9)
			assert.Equal(t, tt.wantEnabled, st.EnabledPrevious)
			assert.Equal(t, tt.in.ControlEnabled, st.ControlEnabledPrevious)
		})
	}
}

func TestButtonTypeNames(t *testing.T) {
	names := []string{}
	for _, b := range ButtonTypes() {
		names = append(names, b.String())
	}
	assert.Equal(t, []string{"accelCruise", "decelCruise", "cancel", "setCruise"}, names)
	assert.Equal(t, "button(9)", ButtonType(9).String())

	var b ButtonType
	require.NoError(t, b.UnmarshalText([]byte("setCruise")))
	assert.Equal(t, SetCruise, b)
	assert.Error(t, b.UnmarshalText([]byte("horn")))
}

func TestButtonEventJSON(t *testing.T) {
	data, err := json.Marshal(ButtonEvent{Type: DecelCruise, Pressed: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"decelCruise","pressed":true}`, string(data))

	data, err = json.Marshal(buttonsPressed(Cancel))
	require.NoError(t, err)
	assert.JSONEq(t, `{"accelCruise":false,"decelCruise":false,"cancel":true,"setCruise":false}`, string(data))

	_, err = json.Marshal(ButtonEvent{Type: ButtonType(-1)})
	assert.Error(t, err)
}

func TestGearFromRaw(t *testing.T) {
	table := map[int]string{0: "P", 1: "R", 3: "D", 7: "Q"}
	tests := []struct {
		raw  float64
		want GearShifter
	}{
		{0, GearPark},
		{1, GearReverse},
		{3, GearDrive},
		{2, GearUnknown},
		{7, GearUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GearFromRaw(table, tt.raw), "raw %v", tt.raw)
	}
	assert.Equal(t, GearUnknown, GearFromRaw(nil, 0))
	assert.Equal(t, GearSport, ParseGearShifter("S"))
}
