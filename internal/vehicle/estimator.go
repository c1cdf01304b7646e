package vehicle

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Steady-state gain of the speed filter for a 100 Hz cycle.
const (
	estimatorDT = 0.01
	estimatorK0 = 0.12287673
	estimatorK1 = 0.29666309

	// DefaultSpeedResetMps is the raw/filtered gap above which the filter
	// restarts from the raw reading.
	DefaultSpeedResetMps = 2.0
)

// SpeedEstimator is a two-state (speed, acceleration) constant-acceleration
// Kalman filter with a precomputed steady-state gain.
//
// Inputs must be finite and non-negative; callers reject anything else.
type SpeedEstimator struct {
	a     *mat.Dense
	c     *mat.VecDense
	k     *mat.VecDense
	x     *mat.VecDense
	reset float64
}

// NewSpeedEstimator returns a filter at rest. resetMps <= 0 selects
// DefaultSpeedResetMps.
func NewSpeedEstimator(resetMps float64) *SpeedEstimator {
	if resetMps <= 0 {
		resetMps = DefaultSpeedResetMps
	}
	return &SpeedEstimator{
		a: mat.NewDense(2, 2, []float64{
			1, estimatorDT,
			0, 1,
		}),
		c:     mat.NewVecDense(2, []float64{1, 0}),
		k:     mat.NewVecDense(2, []float64{estimatorK0, estimatorK1}),
		x:     mat.NewVecDense(2, nil),
		reset: resetMps,
	}
}

// Estimate feeds one raw speed sample and returns the filtered speed and
// acceleration.
func (e *SpeedEstimator) Estimate(raw float64) (speed, accel float64) {
	if math.Abs(raw-e.x.AtVec(0)) > e.reset {
		e.x.SetVec(0, raw)
		e.x.SetVec(1, 0)
	}

	var pred mat.VecDense
	pred.MulVec(e.a, e.x)
	innovation := raw - mat.Dot(e.c, &pred)
	e.x.AddScaledVec(&pred, innovation, e.k)

	return e.x.AtVec(0), e.x.AtVec(1)
}

// State returns the current filter state.
func (e *SpeedEstimator) State() (speed, accel float64) {
	return e.x.AtVec(0), e.x.AtVec(1)
}
