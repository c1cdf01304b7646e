// Package vehicle turns per-cycle signal snapshots from the primary and
// body/chassis buses into a VehicleState, fusing wheel speeds and running the
// cruise arbitration state machine.
package vehicle

// WheelSpeeds holds the four wheel speeds in m/s.
type WheelSpeeds struct {
	FL float64 `json:"fl"`
	FR float64 `json:"fr"`
	RL float64 `json:"rl"`
	RR float64 `json:"rr"`
}

// Mean returns the arithmetic mean of the four wheels.
func (w WheelSpeeds) Mean() float64 {
	return (w.FL + w.FR + w.RL + w.RR) / 4
}

// CruiseState is the cruise sub-state of a VehicleState. Speed is the target
// speed in m/s.
type CruiseState struct {
	Enabled     bool    `json:"enabled"`
	Available   bool    `json:"available"`
	Standstill  bool    `json:"standstill"`
	NonAdaptive bool    `json:"nonAdaptive"`
	Speed       float64 `json:"speed"`
}

// EventName identifies a safety event raised by the event classifier.
type EventName string

// VehicleState is a normalized snapshot built fresh every cycle. It is not
// mutated after it has been returned.
type VehicleState struct {
	DoorOpen          bool `json:"doorOpen"`
	SeatbeltUnlatched bool `json:"seatbeltUnlatched"`
	LeftBlinker       bool `json:"leftBlinker"`
	RightBlinker      bool `json:"rightBlinker"`
	EspDisabled       bool `json:"espDisabled"`

	WheelSpeeds WheelSpeeds `json:"wheelSpeeds"`
	VEgoRaw     float64     `json:"vEgoRaw"`
	VEgo        float64     `json:"vEgo"`
	AEgo        float64     `json:"aEgo"`
	Standstill  bool        `json:"standstill"`

	GearShifter GearShifter `json:"gearShifter"`

	SteeringAngle     float64 `json:"steeringAngle"`
	SteeringRate      float64 `json:"steeringRate"`
	SteeringTorque    float64 `json:"steeringTorque"`
	SteeringTorqueEps float64 `json:"steeringTorqueEps"`
	SteeringPressed   bool    `json:"steeringPressed"`
	SteerError        bool    `json:"steerError"`

	BrakePressed     bool `json:"brakePressed"`
	BrakeLights      bool `json:"brakeLights"`
	BrakeUnavailable bool `json:"brakeUnavailable"`

	Gas        float64 `json:"gas"`
	GasPressed bool    `json:"gasPressed"`

	StockAeb       bool `json:"stockAeb"`
	LeftBlindspot  bool `json:"leftBlindspot"`
	RightBlindspot bool `json:"rightBlindspot"`

	CruiseState CruiseState `json:"cruiseState"`
	EngineRPM   float64     `json:"engineRpm"`

	MapSpeedLimit      float64 `json:"mapSpeedLimit"`
	MapSpeedLimitValid bool    `json:"mapSpeedLimitValid"`

	// Filled in by the car interface after decoding.
	CanValid     bool          `json:"canValid"`
	ButtonEvents []ButtonEvent `json:"buttonEvents"`
	Events       []EventName   `json:"events"`
}

// Clone returns a copy that shares no slices with s.
func (s VehicleState) Clone() VehicleState {
	out := s
	if s.ButtonEvents != nil {
		out.ButtonEvents = append([]ButtonEvent(nil), s.ButtonEvents...)
	}
	if s.Events != nil {
		out.Events = append([]EventName(nil), s.Events...)
	}
	return out
}
