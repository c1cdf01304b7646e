// Package report summarizes and plots recorded vehicle states.
package report

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/ocelot/internal/db"
	"github.com/banshee-data/ocelot/internal/units"
)

// Summary describes a run of recorded states. Speeds are in Units.
type Summary struct {
	Units           string  `json:"units"`
	Samples         int     `json:"samples"`
	DurationSeconds float64 `json:"duration_s"`
	MeanSpeed       float64 `json:"mean_speed"`
	MaxSpeed        float64 `json:"max_speed"`
	P50Speed        float64 `json:"p50_speed"`
	P85Speed        float64 `json:"p85_speed"`
	P98Speed        float64 `json:"p98_speed"`
	CruiseFraction  float64 `json:"cruise_fraction"`
	InvalidFraction float64 `json:"can_invalid_fraction"`
	// MeanTargetError is the mean of vEgo minus the cruise target over engaged samples.
	MeanTargetError float64 `json:"mean_target_error"`
}

// Summarize computes a Summary over records, which must be in time order.
func Summarize(records []db.StateRecord, unit string) Summary {
	if !units.IsValid(unit) {
		unit = units.MPS
	}
	s := Summary{Units: unit, Samples: len(records)}
	if len(records) == 0 {
		return s
	}
	s.DurationSeconds = records[len(records)-1].TimestampUnix - records[0].TimestampUnix

	speeds := make([]float64, len(records))
	var errs []float64
	engaged, invalid := 0, 0
	for i, r := range records {
		speeds[i] = units.ConvertSpeed(r.VEgo, unit)
		if r.CruiseEnabled {
			engaged++
			errs = append(errs, units.ConvertSpeed(r.VEgo-r.CruiseSpeed, unit))
		}
		if !r.CanValid {
			invalid++
		}
	}

	s.MeanSpeed = stat.Mean(speeds, nil)
	s.MaxSpeed = floats.Max(speeds)
	sort.Float64s(speeds)
	s.P50Speed = stat.Quantile(0.50, stat.Empirical, speeds, nil)
	s.P85Speed = stat.Quantile(0.85, stat.Empirical, speeds, nil)
	s.P98Speed = stat.Quantile(0.98, stat.Empirical, speeds, nil)
	s.CruiseFraction = float64(engaged) / float64(len(records))
	s.InvalidFraction = float64(invalid) / float64(len(records))
	if len(errs) > 0 {
		s.MeanTargetError = stat.Mean(errs, nil)
	}
	return s
}
