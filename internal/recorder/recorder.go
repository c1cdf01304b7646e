// Package recorder persists a decimated stream of vehicle states. Offer runs
// on the control loop goroutine and never blocks; Run batches the queued
// samples into the store from its own goroutine.
package recorder

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/banshee-data/ocelot/internal/db"
	"github.com/banshee-data/ocelot/internal/monitoring"
	"github.com/banshee-data/ocelot/internal/timeutil"
	"github.com/banshee-data/ocelot/internal/vehicle"
)

// ErrNoStore is returned by New when Options.Store is nil.
var ErrNoStore = errors.New("recorder: no store")

// Store is the subset of *db.DB the recorder writes to.
type Store interface {
	RecordStates(sessionID string, samples []db.StateSample) error
	RecordSpeedLimit(sessionID string, limitMps float64, valid bool, at time.Time) error
}

// Options configure a Recorder.
type Options struct {
	Store     Store
	SessionID string
	// Every keeps one state in Every cycles. Values below 1 keep all.
	Every         int
	BatchSize     int
	Buffer        int
	FlushInterval time.Duration
	Clock         timeutil.Clock
}

// Stats are cumulative counters since New.
type Stats struct {
	Offered     uint64 `json:"offered"`
	Queued      uint64 `json:"queued"`
	Dropped     uint64 `json:"dropped"`
	Written     uint64 `json:"written"`
	WriteErrors uint64 `json:"write_errors"`
	Limits      uint64 `json:"speed_limits"`
}

type limitChange struct {
	limit float64
	valid bool
	at    time.Time
}

type item struct {
	sample *db.StateSample
	limit  *limitChange
}

// Recorder writes sampled states to a Store.
type Recorder struct {
	store     Store
	sessionID string
	every     uint64
	batchSize int
	interval  time.Duration
	clock     timeutil.Clock
	queue     chan item
	logf      func(format string, v ...interface{})

	// owned by the Offer caller
	seenLimit      bool
	lastLimit      float64
	lastLimitValid bool

	offered, queued, dropped, written, writeErrs, limits atomic.Uint64
}

// New builds a Recorder. Zero values select a batch of 50, a queue of 1024
// samples and a one second flush interval.
func New(opts Options) (*Recorder, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	if opts.Every < 1 {
		opts.Every = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 50
	}
	if opts.Buffer < 1 {
		opts.Buffer = 1024
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Recorder{
		store:     opts.Store,
		sessionID: opts.SessionID,
		every:     uint64(opts.Every),
		batchSize: opts.BatchSize,
		interval:  opts.FlushInterval,
		clock:     opts.Clock,
		queue:     make(chan item, opts.Buffer),
		logf:      monitoring.Limited(10*time.Second, 3),
	}, nil
}

// Offer queues st when cycle falls on the sampling grid and reports whether
// it was queued. Map speed limit changes are queued whatever the cycle.
func (r *Recorder) Offer(cycle uint64, at time.Time, st vehicle.VehicleState) bool {
	r.offered.Add(1)

	// a dropped change stays pending and is retried next cycle
	if !r.seenLimit || st.MapSpeedLimit != r.lastLimit || st.MapSpeedLimitValid != r.lastLimitValid {
		if r.push(item{limit: &limitChange{limit: st.MapSpeedLimit, valid: st.MapSpeedLimitValid, at: at}}) {
			r.seenLimit = true
			r.lastLimit, r.lastLimitValid = st.MapSpeedLimit, st.MapSpeedLimitValid
		}
	}

	if cycle%r.every != 0 {
		return false
	}
	return r.push(item{sample: &db.StateSample{Cycle: cycle, At: at, State: st.Clone()}})
}

// Observe adapts Offer to loop.Observer.
func (r *Recorder) Observe(cycle uint64, at time.Time, st vehicle.VehicleState) {
	r.Offer(cycle, at, st)
}

func (r *Recorder) push(it item) bool {
	select {
	case r.queue <- it:
		r.queued.Add(1)
		return true
	default:
		r.dropped.Add(1)
		r.logf("[recorder] queue full, dropping")
		return false
	}
}

// Run writes queued samples until ctx is done, then flushes what is left and
// returns ctx.Err().
func (r *Recorder) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	batch := make([]db.StateSample, 0, r.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.store.RecordStates(r.sessionID, batch); err != nil {
			r.writeErrs.Add(1)
			r.logf("[recorder] failed to write %d states: %v", len(batch), err)
		} else {
			r.written.Add(uint64(len(batch)))
		}
		batch = batch[:0]
	}
	handle := func(it item) {
		if it.limit != nil {
			if err := r.store.RecordSpeedLimit(r.sessionID, it.limit.limit, it.limit.valid, it.limit.at); err != nil {
				r.writeErrs.Add(1)
				r.logf("[recorder] %v", err)
			} else {
				r.limits.Add(1)
			}
			return
		}
		batch = append(batch, *it.sample)
		if len(batch) >= r.batchSize {
			flush()
		}
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case it := <-r.queue:
					handle(it)
				default:
					flush()
					return ctx.Err()
				}
			}
		case it := <-r.queue:
			handle(it)
		case <-ticker.C():
			flush()
		}
	}
}

// Stats returns the recorder counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Offered:     r.offered.Load(),
		Queued:      r.queued.Load(),
		Dropped:     r.dropped.Load(),
		Written:     r.written.Load(),
		WriteErrors: r.writeErrs.Load(),
		Limits:      r.limits.Load(),
	}
}
