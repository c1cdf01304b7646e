package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ocelot/internal/db"
	"github.com/banshee-data/ocelot/internal/report"
	"github.com/banshee-data/ocelot/internal/security"
	"github.com/banshee-data/ocelot/internal/units"
	"github.com/banshee-data/ocelot/internal/vehicle"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	d, err := db.NewDB(filepath.Join(dir, "plot.db"))
	require.NoError(t, err)
	defer d.Close()

	out := filepath.Join(dir, "speed.png")
	_, err = run(d, "", units.MPH, "/speed.png")
	assert.ErrorIs(t, err, security.ErrPathEscapes)

	_, err = run(d, "", units.MPH, out)
	assert.EqualError(t, err, "no sessions recorded")

	start := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	s, err := d.CreateSession("SMART_ROADSTER_COUPE", "", start)
	require.NoError(t, err)

	_, err = run(d, s.ID, units.MPH, out)
	assert.ErrorIs(t, err, report.ErrNoRecords)

	var samples []db.StateSample
	for i := 1; i <= 20; i++ {
		samples = append(samples, db.StateSample{
			Cycle: uint64(i),
			At:    start.Add(time.Duration(i) * 100 * time.Millisecond),
			State: vehicle.VehicleState{VEgoRaw: units.MPHToMPS * float64(i), VEgo: units.MPHToMPS * float64(i)},
		})
	}
	require.NoError(t, d.RecordStates(s.ID, samples))

	summary, err := run(d, "", units.MPH, out)
	require.NoError(t, err)
	assert.Equal(t, 20, summary.Samples)
	assert.InDelta(t, 20, summary.MaxSpeed, 1e-9)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
