// Package units provides speed unit constants and conversions shared by the
// decoder, the cruise arbiter and the HTTP API.
package units

import "math"

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// Conversion factors. MPHToMPS is exact by definition of the international mile.
const (
	MPHToMPS = 0.44704
	MPSToMPH = 1 / MPHToMPS
	KPHToMPS = 1 / 3.6
	MPSToKPH = 3.6
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mps, mph, kmph, kph"
}

// ConvertSpeed converts a speed from meters per second to the target units.
// Everything inside the controller is m/s; conversion only happens at the edges.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPS:
		return speedMPS
	case MPH:
		return speedMPS * MPSToMPH
	case KMPH, KPH:
		return speedMPS * MPSToKPH
	default:
		return speedMPS
	}
}

// SnapToStep rounds a speed in m/s to the nearest multiple of stepMPH miles per
// hour and returns the result in m/s. Halfway values round to the even
// multiple. A non-positive step returns the input unchanged.
func SnapToStep(speedMPS, stepMPH float64) float64 {
	if stepMPH <= 0 {
		return speedMPS
	}
	n := math.RoundToEven(speedMPS * MPSToMPH / stepMPH)
	return n * stepMPH * MPHToMPS
}

// StepMPS converts a cruise button step expressed in mph to m/s.
func StepMPS(stepMPH float64) float64 {
	return stepMPH * MPHToMPS
}
