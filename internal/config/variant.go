package config

import (
	"errors"
	"fmt"
)

// ErrUnknownVariant is returned when a tuning file names a vehicle this build
// has no signal layout for.
var ErrUnknownVariant = errors.New("unknown vehicle variant")

// Variant identifies a supported vehicle model.
type Variant string

const (
	SmartRoadsterCoupe Variant = "SMART_ROADSTER_COUPE"
)

// VariantConfig is resolved once at construction and is immutable afterwards.
// The decoder branches on its capability flags instead of comparing variant
// names in the hot path.
type VariantConfig struct {
	Variant Variant

	// HasBodyBus reports whether door, blinker, ESP, wheel speed, gear and RPM
	// signals are available on the body/chassis bus.
	HasBodyBus bool
	// HasGasInterceptor reports whether the redundant PED_GAS channels exist.
	HasGasInterceptor bool

	SteerThreshold       float64
	GasPressedThreshold  float64
	SpeedStepMph         float64
	SpeedRoundingMph     float64
	StandstillEpsilonMps float64
	SpeedResetMps        float64
	CycleHz              float64

	// GearValues is the value table of the gear signal (raw integer to
	// shifter letter). Raw values missing from the table decode as unknown.
	GearValues map[int]string
}

type variantLayout struct {
	hasBodyBus bool
	gearValues map[int]string
}

var variants = map[Variant]variantLayout{
	SmartRoadsterCoupe: {
		hasBodyBus: true,
		gearValues: map[int]string{
			0: "P",
			1: "R",
			2: "N",
			3: "D",
			4: "S",
			5: "L",
		},
	},
}

// KnownVariants lists the variants this build can decode.
func KnownVariants() []Variant {
	out := make([]Variant, 0, len(variants))
	for v := range variants {
		out = append(out, v)
	}
	return out
}

// VariantConfigFor resolves the capability flags and thresholds for the
// variant named in the tuning config.
func VariantConfigFor(cfg *TuningConfig) (VariantConfig, error) {
	if cfg == nil {
		cfg = EmptyTuningConfig()
	}
	v := cfg.GetVariant()
	layout, ok := variants[v]
	if !ok {
		return VariantConfig{}, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}

	gears := make(map[int]string, len(layout.gearValues))
	for k, s := range layout.gearValues {
		gears[k] = s
	}

	return VariantConfig{
		Variant:              v,
		HasBodyBus:           layout.hasBodyBus,
		HasGasInterceptor:    cfg.GetGasInterceptor(),
		SteerThreshold:       cfg.GetSteerThreshold(),
		GasPressedThreshold:  cfg.GetGasPressedThreshold(),
		SpeedStepMph:         cfg.GetSpeedStepMph(),
		SpeedRoundingMph:     cfg.GetSpeedRoundingMph(),
		StandstillEpsilonMps: cfg.GetStandstillEpsilonMps(),
		SpeedResetMps:        cfg.GetSpeedResetThresholdMps(),
		CycleHz:              cfg.GetCycleRateHz(),
		GearValues:           gears,
	}, nil
}
