// Package testutil provides fixtures shared by the ocelot package tests.
package testutil

import (
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ocelot/internal/canbus"
	"github.com/banshee-data/ocelot/internal/db"
)

// NewTempDB opens a migrated telemetry database in a per-test directory and
// closes it on cleanup.
func NewTempDB(t testing.TB) *db.DB {
	t.Helper()
	d, err := db.NewDB(filepath.Join(t.TempDir(), "ocelot.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return d
}

// EncodeFrame packs values into the named message of cat. Unset signals are zero.
func EncodeFrame(t testing.TB, cat *canbus.Catalog, bus uint8, msg string, values map[string]float64) canbus.BusFrame {
	t.Helper()
	def, ok := cat.Message(msg)
	require.True(t, ok, "unknown message %s", msg)
	return def.Encode(bus, values)
}

// HealthyFrames is one cycle of traffic from both buses with every board
// reporting OK, the wheels turning at mph and the gear in drive. buttons
// names HIM_CTRLS signals held down this cycle.
func HealthyFrames(t testing.TB, mph float64, boardEnabled bool, buttons ...string) []canbus.BusFrame {
	t.Helper()
	him := map[string]float64{}
	for _, b := range buttons {
		him[b] = 1
	}
	enabled := 0.0
	if boardEnabled {
		enabled = 1
	}
	return []canbus.BusFrame{
		EncodeFrame(t, &canbus.PrimaryCatalog, canbus.BusPrimary, "TOYOTA_STEERING_ANGLE_SENSOR1", nil),
		EncodeFrame(t, &canbus.PrimaryCatalog, canbus.BusPrimary, "STEERING_STATUS", map[string]float64{"STEERING_OK": 1}),
		EncodeFrame(t, &canbus.PrimaryCatalog, canbus.BusPrimary, "BRAKE_STATUS", map[string]float64{"BRAKE_OK": 1}),
		EncodeFrame(t, &canbus.PrimaryCatalog, canbus.BusPrimary, "GAS_SENSOR", nil),
		EncodeFrame(t, &canbus.PrimaryCatalog, canbus.BusPrimary, "HIM_CTRLS", him),
		EncodeFrame(t, &canbus.PrimaryCatalog, canbus.BusPrimary, "CURRENT_STATE", map[string]float64{"ENABLED": enabled}),
		EncodeFrame(t, &canbus.ChassisCatalog, canbus.BusChassis, "SMARTROADSTERWHEELSPEEDS", map[string]float64{
			"WHEELSPEED_FL": mph, "WHEELSPEED_FR": mph, "WHEELSPEED_RL": mph, "WHEELSPEED_RR": mph,
		}),
		EncodeFrame(t, &canbus.ChassisCatalog, canbus.BusChassis, "GEAR_PACKET", map[string]float64{"GEAR": 3}),
	}
}

// AssertStatusCode fails the test when the recorded status differs, printing the body.
func AssertStatusCode(t testing.TB, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, w.Code, "body: %s", w.Body.String())
}

// AssertJSONError checks status and that the {"error": ...} body contains msg.
func AssertJSONError(t testing.TB, w *httptest.ResponseRecorder, want int, msg string) {
	t.Helper()
	AssertStatusCode(t, w, want)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Contains(t, body["error"], msg)
}
