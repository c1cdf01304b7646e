package vehicle

import (
	"github.com/banshee-data/ocelot/internal/units"
)

// ArbitrationState is the cross-cycle state of the cruise arbiter. It starts
// out disabled.
type ArbitrationState struct {
	EnabledPrevious        bool    `json:"enabledPrevious"`
	ControlEnabledPrevious bool    `json:"controlEnabledPrevious"`
	TargetSpeed            float64 `json:"targetSpeed"`
}

// ArbiterInput is what the arbiter sees each cycle.
type ArbiterInput struct {
	Buttons ButtonStateMap
	// VEgo is the filtered speed in m/s used for the enable-edge snap.
	VEgo float64
	// ControlEnabled is the engagement acknowledged by the controls layer.
	ControlEnabled bool
}

// CruiseArbiter converts cruise button presses into an enabled flag and a
// target speed.
//
// SET enables. The target snaps to the nearest SpeedRoundingMph on the
// disabled-to-enabled edge only, then moves by SpeedStepMph for every cycle the
// accelerate or decelerate button is held. Both may apply in one cycle. No
// button disables: a falling edge of ArbiterInput.ControlEnabled does.
type CruiseArbiter struct {
	SpeedStepMph     float64
	SpeedRoundingMph float64
}

// Arbitrate evaluates one cycle and updates st in place.
func (a CruiseArbiter) Arbitrate(st *ArbitrationState, in ArbiterInput) CruiseState {
	current := st.EnabledPrevious
	if st.ControlEnabledPrevious && !in.ControlEnabled {
		current = false
	}
	st.ControlEnabledPrevious = in.ControlEnabled

	enabled := current || in.Buttons.Pressed(SetCruise)

	if enabled && !current {
		st.TargetSpeed = units.SnapToStep(in.VEgo, a.SpeedRoundingMph)
	}

	if enabled {
		step := units.StepMPS(a.SpeedStepMph)
		if in.Buttons.Pressed(AccelCruise) {
			st.TargetSpeed += step
		}
		if in.Buttons.Pressed(DecelCruise) {
			st.TargetSpeed -= step
		}
	}

	st.EnabledPrevious = enabled

	return CruiseState{
		Enabled:   enabled,
		Available: true,
		Speed:     st.TargetSpeed,
	}
}
