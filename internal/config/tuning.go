package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for the decoder, the cruise
// arbiter and the control loop. The schema matches the /api/config endpoint so
// the same JSON can be used for startup configuration and for inspection.
type TuningConfig struct {
	// Vehicle selection
	Variant         *string `json:"variant,omitempty"`
	GasInterceptor  *bool   `json:"gas_interceptor,omitempty"`
	AlwaysOnLongCtl *bool   `json:"always_on_longitudinal,omitempty"`

	// Decode thresholds
	SteerThreshold       *float64 `json:"steer_threshold,omitempty"`
	GasPressedThreshold  *float64 `json:"gas_pressed_threshold,omitempty"` // raw PED_GAS units
	StandstillEpsilonMps *float64 `json:"standstill_epsilon_mps,omitempty"`

	// Cruise arbitration
	SpeedStepMph     *float64 `json:"speed_step_mph,omitempty"`
	SpeedRoundingMph *float64 `json:"speed_rounding_mph,omitempty"`

	// Speed estimator
	SpeedResetThresholdMps *float64 `json:"speed_reset_threshold_mps,omitempty"`

	// Control loop and transport
	CycleRateHz *float64 `json:"cycle_rate_hz,omitempty"`
	CANBitrate  *int     `json:"can_bitrate,omitempty"`

	// Telemetry
	RecordEveryCycles *int `json:"record_every_cycles,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated with
// its built-in default.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		Variant:                ptrString(string(SmartRoadsterCoupe)),
		GasInterceptor:         ptrBool(true),
		AlwaysOnLongCtl:        ptrBool(false),
		SteerThreshold:         ptrFloat64(100),
		GasPressedThreshold:    ptrFloat64(15),
		StandstillEpsilonMps:   ptrFloat64(0.001),
		SpeedStepMph:           ptrFloat64(5),
		SpeedRoundingMph:       ptrFloat64(5),
		SpeedResetThresholdMps: ptrFloat64(2.0),
		CycleRateHz:            ptrFloat64(100),
		CANBitrate:             ptrInt(500000),
		RecordEveryCycles:      ptrInt(10),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func positiveFinite(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		return fmt.Errorf("%s must be a positive finite number, got %v", name, *v)
	}
	return nil
}

// MaxCycleRateHz bounds cycle_rate_hz. The adapters cannot deliver frames
// faster than this.
const MaxCycleRateHz = 1000

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.Variant != nil {
		if _, ok := variants[Variant(*c.Variant)]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownVariant, *c.Variant)
		}
	}

	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"steer_threshold", c.SteerThreshold},
		{"gas_pressed_threshold", c.GasPressedThreshold},
		{"standstill_epsilon_mps", c.StandstillEpsilonMps},
		{"speed_step_mph", c.SpeedStepMph},
		{"speed_rounding_mph", c.SpeedRoundingMph},
		{"speed_reset_threshold_mps", c.SpeedResetThresholdMps},
		{"cycle_rate_hz", c.CycleRateHz},
	} {
		if err := positiveFinite(f.name, f.v); err != nil {
			return err
		}
	}

	if c.CycleRateHz != nil && *c.CycleRateHz > MaxCycleRateHz {
		return fmt.Errorf("cycle_rate_hz must be at most %v, got %v", MaxCycleRateHz, *c.CycleRateHz)
	}

	if c.CANBitrate != nil {
		if _, ok := slcanBitrates[*c.CANBitrate]; !ok {
			return fmt.Errorf("can_bitrate %d is not a standard SLCAN rate", *c.CANBitrate)
		}
	}

	if c.RecordEveryCycles != nil && *c.RecordEveryCycles < 1 {
		return fmt.Errorf("record_every_cycles must be at least 1, got %d", *c.RecordEveryCycles)
	}

	return nil
}

// GetVariant returns the configured vehicle variant or the default.
func (c *TuningConfig) GetVariant() Variant {
	if c.Variant == nil || *c.Variant == "" {
		return SmartRoadsterCoupe
	}
	return Variant(*c.Variant)
}

// GetGasInterceptor returns whether the gas interceptor is fitted.
func (c *TuningConfig) GetGasInterceptor() bool {
	if c.GasInterceptor == nil {
		return true
	}
	return *c.GasInterceptor
}

// GetAlwaysOnLongitudinal returns whether always-on longitudinal is enabled.
func (c *TuningConfig) GetAlwaysOnLongitudinal() bool {
	if c.AlwaysOnLongCtl == nil {
		return false
	}
	return *c.AlwaysOnLongCtl
}

// GetSteerThreshold returns the driver torque override threshold.
func (c *TuningConfig) GetSteerThreshold() float64 {
	if c.SteerThreshold == nil {
		return 100
	}
	return *c.SteerThreshold
}

// GetGasPressedThreshold returns the gas pressed threshold in raw PED_GAS units.
func (c *TuningConfig) GetGasPressedThreshold() float64 {
	if c.GasPressedThreshold == nil {
		return 15
	}
	return *c.GasPressedThreshold
}

// GetStandstillEpsilonMps returns the standstill speed epsilon.
func (c *TuningConfig) GetStandstillEpsilonMps() float64 {
	if c.StandstillEpsilonMps == nil {
		return 0.001
	}
	return *c.StandstillEpsilonMps
}

// GetSpeedStepMph returns the per-press cruise speed step.
func (c *TuningConfig) GetSpeedStepMph() float64 {
	if c.SpeedStepMph == nil {
		return 5
	}
	return *c.SpeedStepMph
}

// GetSpeedRoundingMph returns the cruise speed snapping granularity.
func (c *TuningConfig) GetSpeedRoundingMph() float64 {
	if c.SpeedRoundingMph == nil {
		return 5
	}
	return *c.SpeedRoundingMph
}

// GetSpeedResetThresholdMps returns the raw/filtered gap above which the
// speed estimator is re-seeded.
func (c *TuningConfig) GetSpeedResetThresholdMps() float64 {
	if c.SpeedResetThresholdMps == nil {
		return 2.0
	}
	return *c.SpeedResetThresholdMps
}

// GetCycleRateHz returns the control loop rate.
func (c *TuningConfig) GetCycleRateHz() float64 {
	if c.CycleRateHz == nil {
		return 100
	}
	return *c.CycleRateHz
}

// GetCANBitrate returns the bus bitrate in bit/s.
func (c *TuningConfig) GetCANBitrate() int {
	if c.CANBitrate == nil {
		return 500000
	}
	return *c.CANBitrate
}

// GetRecordEveryCycles returns the telemetry decimation factor.
func (c *TuningConfig) GetRecordEveryCycles() int {
	if c.RecordEveryCycles == nil {
		return 10
	}
	return *c.RecordEveryCycles
}

// slcanBitrates maps bitrates to the SLCAN "Sn" setup code.
var slcanBitrates = map[int]string{
	10000:   "S0",
	20000:   "S1",
	50000:   "S2",
	100000:  "S3",
	125000:  "S4",
	250000:  "S5",
	500000:  "S6",
	800000:  "S7",
	1000000: "S8",
}

// SLCANBitrateCommand returns the SLCAN setup command for the configured bitrate.
func (c *TuningConfig) SLCANBitrateCommand() string {
	if cmd, ok := slcanBitrates[c.GetCANBitrate()]; ok {
		return cmd
	}
	return "S6"
}
