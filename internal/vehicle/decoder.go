package vehicle

import (
	"math"

	"github.com/banshee-data/ocelot/internal/config"
	"github.com/banshee-data/ocelot/internal/units"
)

// SignalReader returns the latest value of a signal on one bus, or the
// signal's default when nothing fresh has arrived. *canbus.Parser satisfies it.
type SignalReader interface {
	Value(message, signal string) float64
}

// SpeedLimitSource supplies the latest external map speed limit without
// blocking.
type SpeedLimitSource interface {
	LatestSpeedLimit() (mps float64, valid bool)
}

// DecoderState is everything the decoder carries from one cycle to the next.
type DecoderState struct {
	ArbitrationState

	BrakeUnavailable bool           `json:"brakeUnavailable"`
	EngineRPM        float64        `json:"engineRpm"`
	Buttons          ButtonStateMap `json:"buttons"`
	SmartSpeed       float64        `json:"smartSpeed"`
	SmartSpeedValid  bool           `json:"smartSpeedValid"`
}

// Decoder builds a VehicleState from the primary and body bus signals once
// per cycle. It is owned by the control loop and is not safe for concurrent
// use.
type Decoder struct {
	variant   config.VariantConfig
	estimator *SpeedEstimator
	arbiter   CruiseArbiter
	limits    SpeedLimitSource
	state     DecoderState
}

// NewDecoder creates a decoder for a resolved variant. limits may be nil.
func NewDecoder(variant config.VariantConfig, limits SpeedLimitSource) *Decoder {
	return &Decoder{
		variant:   variant,
		estimator: NewSpeedEstimator(variant.SpeedResetMps),
		arbiter: CruiseArbiter{
			SpeedStepMph:     variant.SpeedStepMph,
			SpeedRoundingMph: variant.SpeedRoundingMph,
		},
		limits: limits,
		state:  DecoderState{BrakeUnavailable: true},
	}
}

// State returns a copy of the cross-cycle state.
func (d *Decoder) State() DecoderState {
	return d.state
}

// Variant returns the variant this decoder was built for.
func (d *Decoder) Variant() config.VariantConfig {
	return d.variant
}

func flag(r SignalReader, msg, sig string) bool {
	return r.Value(msg, sig) != 0
}

// sanitizeSpeed drops readings the estimator must not see.
func sanitizeSpeed(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Decode runs one cycle. controlEnabled is the engagement acknowledged by the
// controls layer; its falling edge disables cruise.
func (d *Decoder) Decode(primary, body SignalReader, controlEnabled bool) VehicleState {
	var ret VehicleState

	// body/chassis bus
	if d.variant.HasBodyBus {
		ret.DoorOpen = flag(body, "BODYCONTROL", "LEFT_DOOR") || flag(body, "BODYCONTROL", "RIGHT_DOOR")
		ret.LeftBlinker = flag(body, "BODYCONTROL", "LEFT_SIGNAL")
		ret.RightBlinker = flag(body, "BODYCONTROL", "RIGHT_SIGNAL")
		ret.EspDisabled = flag(body, "ABS", "ESP_STATUS")
		ret.WheelSpeeds = WheelSpeeds{
			FL: sanitizeSpeed(body.Value("SMARTROADSTERWHEELSPEEDS", "WHEELSPEED_FL") * units.MPHToMPS),
			FR: sanitizeSpeed(body.Value("SMARTROADSTERWHEELSPEEDS", "WHEELSPEED_FR") * units.MPHToMPS),
			RL: sanitizeSpeed(body.Value("SMARTROADSTERWHEELSPEEDS", "WHEELSPEED_RL") * units.MPHToMPS),
			RR: sanitizeSpeed(body.Value("SMARTROADSTERWHEELSPEEDS", "WHEELSPEED_RR") * units.MPHToMPS),
		}
		ret.GearShifter = GearFromRaw(d.variant.GearValues, body.Value("GEAR_PACKET", "GEAR"))
		d.state.EngineRPM = body.Value("GEAR_PACKET", "RPM")
	} else {
		ret.GearShifter = GearUnknown
	}

	// brakes
	ret.BrakePressed = flag(primary, "BRAKE_STATUS", "DRIVER_BRAKE_APPLIED")
	ret.BrakeLights = flag(primary, "BRAKE_STATUS", "BRAKE_APPLIED")
	d.state.BrakeUnavailable = !flag(primary, "BRAKE_STATUS", "BRAKE_OK")

	// gas interceptor
	if d.variant.HasGasInterceptor {
		ret.Gas = (primary.Value("GAS_SENSOR", "PED_GAS") + primary.Value("GAS_SENSOR", "PED_GAS2")) / 2
		ret.GasPressed = ret.Gas > d.variant.GasPressedThreshold
	}

	// speed fusion
	ret.VEgoRaw = ret.WheelSpeeds.Mean()
	ret.VEgo, ret.AEgo = d.estimator.Estimate(ret.VEgoRaw)
	ret.Standstill = ret.VEgoRaw < d.variant.StandstillEpsilonMps

	// steering
	ret.SteeringAngle = -(primary.Value("TOYOTA_STEERING_ANGLE_SENSOR1", "TOYOTA_STEER_ANGLE") +
		primary.Value("TOYOTA_STEERING_ANGLE_SENSOR1", "TOYOTA_STEER_FRACTION"))
	ret.SteeringRate = -primary.Value("TOYOTA_STEERING_ANGLE_SENSOR1", "TOYOTA_STEER_RATE")
	ret.SteeringTorque = primary.Value("STEERING_STATUS", "STEERING_TORQUE_DRIVER")
	ret.SteeringTorqueEps = primary.Value("STEERING_STATUS", "STEERING_TORQUE_EPS")
	ret.SteeringPressed = math.Abs(ret.SteeringTorque) > d.variant.SteerThreshold
	ret.SteerError = primary.Value("STEERING_STATUS", "STEERING_OK") == 0

	// cruise
	var buttons ButtonStateMap
	buttons[AccelCruise] = flag(primary, "HIM_CTRLS", "SPEEDUP_BTN")
	buttons[DecelCruise] = flag(primary, "HIM_CTRLS", "SPEEDDN_BTN")
	buttons[Cancel] = flag(primary, "HIM_CTRLS", "CANCEL_BTN")
	buttons[SetCruise] = flag(primary, "HIM_CTRLS", "SET_BTN")

	ret.CruiseState = d.arbiter.Arbitrate(&d.state.ArbitrationState, ArbiterInput{
		Buttons:        buttons,
		VEgo:           ret.VEgo,
		ControlEnabled: controlEnabled,
	})

	// map speed limit
	if d.limits != nil {
		d.state.SmartSpeed, d.state.SmartSpeedValid = d.limits.LatestSpeedLimit()
	}
	ret.MapSpeedLimit = d.state.SmartSpeed
	ret.MapSpeedLimitValid = d.state.SmartSpeedValid

	// cross-cycle bookkeeping
	d.state.Buttons = buttons
	ret.BrakeUnavailable = d.state.BrakeUnavailable
	ret.EngineRPM = d.state.EngineRPM

	return ret
}
