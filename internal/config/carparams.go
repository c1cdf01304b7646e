package config

import "fmt"

// StdCargoKg is the standard cargo/occupant allowance added to curb mass.
const StdCargoKg = 136.0

// PIDTuning holds breakpoint-scheduled PID gains.
type PIDTuning struct {
	KpBP []float64 `json:"kp_bp"`
	KpV  []float64 `json:"kp_v"`
	KiBP []float64 `json:"ki_bp"`
	KiV  []float64 `json:"ki_v"`
	Kf   float64   `json:"kf,omitempty"`
}

// CarParams are the vehicle calibration constants handed to the control and
// actuator layers. The decoder never reads them.
type CarParams struct {
	CarName     string  `json:"car_name"`
	Fingerprint Variant `json:"fingerprint"`

	Mass                 float64 `json:"mass_kg"`
	Wheelbase            float64 `json:"wheelbase_m"`
	CenterToFront        float64 `json:"center_to_front_m"`
	SteerRatio           float64 `json:"steer_ratio"`
	TireStiffnessFactor  float64 `json:"tire_stiffness_factor"`
	SteerActuatorDelay   float64 `json:"steer_actuator_delay_s"`
	SteerLimitTimer      float64 `json:"steer_limit_timer_s"`
	SteerRateCost        float64 `json:"steer_rate_cost"`
	MinEnableSpeed       float64 `json:"min_enable_speed_mps"`
	SafetyParam          int     `json:"safety_param"`
	EnableGasInterceptor bool    `json:"enable_gas_interceptor"`
	LongitudinalControl  bool    `json:"openpilot_longitudinal_control"`

	LateralTuning      PIDTuning `json:"lateral_tuning"`
	LongitudinalTuning PIDTuning `json:"longitudinal_tuning"`
	DeadzoneBP         []float64 `json:"deadzone_bp"`
	DeadzoneV          []float64 `json:"deadzone_v"`
	GasMaxBP           []float64 `json:"gas_max_bp"`
	GasMaxV            []float64 `json:"gas_max_v"`
}

// CarParamsFor returns the calibration for the variant. Longitudinal gains
// and the gas ceiling depend on whether the gas interceptor is fitted.
func CarParamsFor(v Variant, gasInterceptor bool) (CarParams, error) {
	if v != SmartRoadsterCoupe {
		return CarParams{}, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}

	p := CarParams{
		CarName:              "ocelot",
		Fingerprint:          v,
		Mass:                 810 + StdCargoKg,
		Wheelbase:            2.36,
		SteerRatio:           21,
		TireStiffnessFactor:  0.444,
		SteerActuatorDelay:   0.12,
		SteerLimitTimer:      0.4,
		SteerRateCost:        1.0,
		MinEnableSpeed:       -1,
		SafetyParam:          100,
		EnableGasInterceptor: gasInterceptor,
		LongitudinalControl:  true,
		LateralTuning: PIDTuning{
			KpBP: []float64{0},
			KpV:  []float64{0.3},
			KiBP: []float64{0},
			KiV:  []float64{0.05},
			Kf:   0.00007,
		},
		LongitudinalTuning: PIDTuning{
			KpBP: []float64{0, 5, 35},
			KiBP: []float64{0, 35},
		},
		DeadzoneBP: []float64{0, 9},
		DeadzoneV:  []float64{0, 0.15},
	}
	p.CenterToFront = p.Wheelbase * 0.44

	if gasInterceptor {
		p.GasMaxBP = []float64{0, 9, 35}
		p.GasMaxV = []float64{0.2, 0.5, 0.7}
		p.LongitudinalTuning.KpV = []float64{1.2, 0.8, 0.5}
		p.LongitudinalTuning.KiV = []float64{0.18, 0.12}
	} else {
		p.GasMaxBP = []float64{0}
		p.GasMaxV = []float64{0.5}
		p.LongitudinalTuning.KpV = []float64{3.6, 2.4, 1.5}
		p.LongitudinalTuning.KiV = []float64{0.54, 0.36}
	}

	return p, nil
}
