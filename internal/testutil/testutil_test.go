package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ocelot/internal/canbus"
	"github.com/banshee-data/ocelot/internal/httputil"
)

func TestNewTempDB(t *testing.T) {
	d := NewTempDB(t)
	sessions, err := d.Sessions()
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestHealthyFramesDecode(t *testing.T) {
	frames := HealthyFrames(t, 30, true, "SET_BTN")
	require.Len(t, frames, 8)

	var primary, chassis int
	for _, f := range frames {
		switch f.Bus {
		case canbus.BusPrimary:
			primary++
		case canbus.BusChassis:
			chassis++
		}
	}
	assert.Equal(t, 6, primary)
	assert.Equal(t, 2, chassis)

	def, ok := canbus.ChassisCatalog.Message("SMARTROADSTERWHEELSPEEDS")
	require.True(t, ok)
	sig, ok := def.Signal("WHEELSPEED_FL")
	require.True(t, ok)
	assert.InDelta(t, 30, sig.Decode(frames[6].Frame.Data), 0.05)
}

func TestAssertJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	httputil.BadRequest(w, "Invalid 'units' parameter")
	AssertJSONError(t, w, http.StatusBadRequest, "units")
}
