package serialmux

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledSerialMux(t *testing.T) {
	d := NewDisabledSerialMux()

	require.NoError(t, d.Initialise(""))
	require.NoError(t, d.SendCommand("t2300"))
	require.NoError(t, d.SendCommand("O"))
	assert.Equal(t, uint64(2), d.Dropped())

	id, ch := d.Subscribe()
	d.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)

	_, ch = d.Subscribe()
	require.NoError(t, d.Close())
	_, ok = <-ch
	assert.False(t, ok)

	// closing twice is fine and later subscriptions are already closed
	require.NoError(t, d.Close())
	_, ch = d.Subscribe()
	_, ok = <-ch
	assert.False(t, ok)
}

func TestDisabledSerialMuxMonitorWaitsForContext(t *testing.T) {
	d := NewDisabledSerialMux()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Monitor(ctx), context.DeadlineExceeded)
}

func TestDisabledSerialMuxAdminRoute(t *testing.T) {
	d := NewDisabledSerialMux()
	mux := http.NewServeMux()
	d.AttachAdminRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/can-disabled", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CAN adapter disabled", rec.Body.String())
}
