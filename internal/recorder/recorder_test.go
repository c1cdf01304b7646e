package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ocelot/internal/db"
	"github.com/banshee-data/ocelot/internal/testutil"
	"github.com/banshee-data/ocelot/internal/timeutil"
	"github.com/banshee-data/ocelot/internal/vehicle"
)

var epoch = time.Date(2026, 5, 4, 7, 30, 0, 0, time.UTC)

type limitRow struct {
	limit float64
	valid bool
}

type fakeStore struct {
	mu      sync.Mutex
	batches [][]uint64
	limits  []limitRow
	err     error
}

func (s *fakeStore) RecordStates(sessionID string, samples []db.StateSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cycles := make([]uint64, len(samples))
	for i, smp := range samples {
		cycles[i] = smp.Cycle
	}
	s.batches = append(s.batches, cycles)
	return nil
}

func (s *fakeStore) RecordSpeedLimit(sessionID string, limitMps float64, valid bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits = append(s.limits, limitRow{limitMps, valid})
	return nil
}

func (s *fakeStore) snapshot() ([][]uint64, []limitRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]uint64(nil), s.batches...), append([]limitRow(nil), s.limits...)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestOfferDecimates(t *testing.T) {
	r, err := New(Options{Store: &fakeStore{}, Every: 10})
	require.NoError(t, err)

	var kept []uint64
	for cycle := uint64(1); cycle <= 35; cycle++ {
		if r.Offer(cycle, epoch, vehicle.VehicleState{}) {
			kept = append(kept, cycle)
		}
	}
	assert.Equal(t, []uint64{10, 20, 30}, kept)

	stats := r.Stats()
	assert.Equal(t, uint64(35), stats.Offered)
	assert.Equal(t, uint64(4), stats.Queued, "three samples and the initial speed limit")
}

func TestOfferDropsWhenQueueFull(t *testing.T) {
	r, err := New(Options{Store: &fakeStore{}, Buffer: 2})
	require.NoError(t, err)

	assert.True(t, r.Offer(1, epoch, vehicle.VehicleState{}), "limit and sample fit")
	assert.False(t, r.Offer(2, epoch, vehicle.VehicleState{}))
	assert.Equal(t, uint64(1), r.Stats().Dropped)
}

func TestOfferRetriesDroppedLimitChange(t *testing.T) {
	r, err := New(Options{Store: &fakeStore{}, Buffer: 2, Every: 1000})
	require.NoError(t, err)

	st := vehicle.VehicleState{}
	r.Offer(1, epoch, st)
	st.MapSpeedLimit, st.MapSpeedLimitValid = 13.4, true
	r.Offer(2, epoch, st)
	st.MapSpeedLimit = 26.8
	r.Offer(3, epoch, st)
	assert.Equal(t, uint64(1), r.Stats().Dropped)

	<-r.queue
	<-r.queue
	r.Offer(4, epoch, st)

	require.Len(t, r.queue, 1)
	it := <-r.queue
	require.NotNil(t, it.limit)
	assert.Equal(t, 26.8, it.limit.limit)
	assert.True(t, it.limit.valid)

	// once recorded, an unchanged limit is not queued again
	r.Offer(5, epoch, st)
	assert.Empty(t, r.queue)
}

func TestRunBatchesAndFlushes(t *testing.T) {
	store := &fakeStore{}
	clock := timeutil.NewMockClock(epoch)
	r, err := New(Options{Store: store, SessionID: "s1", BatchSize: 2, Clock: clock, FlushInterval: time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	require.Eventually(t, func() bool { return clock.Tickers() == 1 }, 2*time.Second, time.Millisecond)

	st := vehicle.VehicleState{}
	r.Offer(1, epoch, st)
	r.Offer(2, epoch, st)
	st.MapSpeedLimit, st.MapSpeedLimitValid = 13.4, true
	r.Offer(3, epoch, st)

	require.Eventually(t, func() bool {
		batches, limits := store.snapshot()
		return len(batches) == 1 && len(limits) == 2
	}, 2*time.Second, time.Millisecond)

	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		batches, _ := store.snapshot()
		return len(batches) == 2
	}, 2*time.Second, time.Millisecond)

	r.Offer(4, epoch, st)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}

	batches, limits := store.snapshot()
	assert.Equal(t, [][]uint64{{1, 2}, {3}, {4}}, batches)
	assert.Equal(t, []limitRow{{0, false}, {13.4, true}}, limits)

	stats := r.Stats()
	assert.Equal(t, uint64(4), stats.Written)
	assert.Equal(t, uint64(2), stats.Limits)
}

func TestRunCountsWriteErrors(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	r, err := New(Options{Store: store, BatchSize: 1})
	require.NoError(t, err)

	r.Offer(1, epoch, vehicle.VehicleState{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Run(ctx), context.Canceled)
	assert.Equal(t, uint64(1), r.Stats().WriteErrors)
	assert.Zero(t, r.Stats().Written)
}

func TestRecorderWithDatabase(t *testing.T) {
	store := testutil.NewTempDB(t)
	s, err := store.CreateSession("SMART_ROADSTER_COUPE", "", epoch)
	require.NoError(t, err)

	r, err := New(Options{Store: store, SessionID: s.ID, Every: 2})
	require.NoError(t, err)
	for cycle := uint64(1); cycle <= 6; cycle++ {
		r.Observe(cycle, epoch.Add(time.Duration(cycle)*10*time.Millisecond), vehicle.VehicleState{VEgo: float64(cycle)})
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, r.Run(ctx), context.Canceled)

	states, err := store.SessionStates(s.ID)
	require.NoError(t, err)
	require.Len(t, states, 3)
	assert.Equal(t, 6.0, states[2].VEgo)
}
