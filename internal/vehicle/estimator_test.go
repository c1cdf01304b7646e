package vehicle

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpeedEstimatorResetsOnLargeGap(t *testing.T) {
	e := NewSpeedEstimator(0)

	v, a := e.Estimate(20)
	assert.Equal(t, 20.0, v)
	assert.Equal(t, 0.0, a)

	// within the reset band the filter lags the input
	v, _ = e.Estimate(21.5)
	assert.Greater(t, v, 20.0)
	assert.Less(t, v, 21.5)
}

func TestSpeedEstimatorConvergesOnStep(t *testing.T) {
	const target = 1.5
	e := NewSpeedEstimator(DefaultSpeedResetMps)

	peak := 0.0
	for i := 0; i < 400; i++ {
		v, _ := e.Estimate(target)
		peak = math.Max(peak, v)
	}

	v, a := e.State()
	assert.InDelta(t, target, v, 1e-3)
	assert.InDelta(t, 0.0, a, 1e-3)
	assert.Less(t, peak, target*1.15, "step response overshoot")
}

func TestSpeedEstimatorTracksRamp(t *testing.T) {
	e := NewSpeedEstimator(DefaultSpeedResetMps)

	// 1 m/s^2 sampled at 100 Hz
	var v, a float64
	for i := 0; i < 1000; i++ {
		v, a = e.Estimate(float64(i) * estimatorDT)
	}
	assert.InDelta(t, 1.0, a, 1e-2)
	assert.InDelta(t, 999*estimatorDT, v, 1e-2)
}

func TestSpeedEstimatorStaysBounded(t *testing.T) {
	e := NewSpeedEstimator(DefaultSpeedResetMps)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 5000; i++ {
		raw := rng.Float64() * 40
		v, a := e.Estimate(raw)
		if math.IsNaN(v) || math.IsInf(v, 0) || math.IsNaN(a) || math.IsInf(a, 0) {
			t.Fatalf("estimator diverged at sample %d: v=%v a=%v", i, v, a)
		}
		assert.Less(t, math.Abs(v-raw), 40.0+DefaultSpeedResetMps)
	}
}
