// Package loop runs the fixed-rate control cycle. Each tick it drains the
// frames the transports have queued, steps the car interface, asks the
// command source for an actuation request, sends the resulting frames and
// publishes the new vehicle state to subscribers without blocking.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/ocelot/internal/canbus"
	"github.com/banshee-data/ocelot/internal/carinterface"
	"github.com/banshee-data/ocelot/internal/monitoring"
	"github.com/banshee-data/ocelot/internal/timeutil"
	"github.com/banshee-data/ocelot/internal/vehicle"
)

// ErrNoController is returned by New when Options.Controller is nil.
var ErrNoController = errors.New("loop: no controller")

// FrameSource yields the frames received since the previous call.
// *canbus.FrameQueue implements it.
type FrameSource interface {
	Drain() []canbus.BusFrame
}

// FrameSink transmits one frame on a bus.
type FrameSink interface {
	Send(f canbus.BusFrame) error
}

// SinkFunc adapts a function to FrameSink.
type SinkFunc func(f canbus.BusFrame) error

func (fn SinkFunc) Send(f canbus.BusFrame) error { return fn(f) }

// Controller is the part of carinterface.CarInterface the loop drives.
type Controller interface {
	Step(frames []canbus.BusFrame, actuationEnabled bool, policy carinterface.LongitudinalPolicy) vehicle.VehicleState
	Apply(cmd carinterface.ControlCommand) ([]canbus.BusFrame, error)
	ControlsBoardEnabled() bool
}

// CommandSource produces the actuation request for a freshly decoded state.
type CommandSource func(st vehicle.VehicleState) carinterface.ControlCommand

// PassiveCommands requests nothing beyond following the cruise state.
func PassiveCommands(st vehicle.VehicleState) carinterface.ControlCommand {
	return carinterface.ControlCommand{Enabled: st.CruiseState.Enabled}
}

// Observer is called synchronously at the end of every cycle with the cycle
// number (from 1), the cycle start time and the state. It must not block.
type Observer func(cycle uint64, at time.Time, st vehicle.VehicleState)

// Options configure a Loop.
type Options struct {
	Clock      timeutil.Clock
	RateHz     float64
	Sources    []FrameSource
	Sinks      map[uint8]FrameSink
	Controller Controller
	Policy     carinterface.LongitudinalPolicy
	Commands   CommandSource
	Observers  []Observer
}

// Stats are cumulative counters since New.
type Stats struct {
	Cycles     uint64 `json:"cycles"`
	Frames     uint64 `json:"frames"`
	Sent       uint64 `json:"sent"`
	SendErrors uint64 `json:"send_errors"`
	ApplyErrs  uint64 `json:"apply_errors"`
	Dropped    uint64 `json:"dropped"`
	Overruns   uint64 `json:"overruns"`
}

// Loop is the control loop. RunOnce and Run must not be called concurrently;
// Latest, Subscribe and Stats are safe from any goroutine.
type Loop struct {
	clock     timeutil.Clock
	period    time.Duration
	sources   []FrameSource
	sinks     map[uint8]FrameSink
	ctrl      Controller
	policy    carinterface.LongitudinalPolicy
	commands  CommandSource
	observers []Observer
	logf      func(format string, v ...interface{})

	latest atomic.Pointer[vehicle.VehicleState]

	subMu  sync.Mutex
	subs   map[int]chan vehicle.VehicleState
	nextID int

	cycles, frames, sent, sendErrs, applyErrs, dropped, overruns atomic.Uint64
}

// New validates opts and builds a Loop. A zero RateHz selects 100 Hz.
func New(opts Options) (*Loop, error) {
	if opts.Controller == nil {
		return nil, ErrNoController
	}
	if opts.RateHz == 0 {
		opts.RateHz = 100
	}
	period := time.Duration(float64(time.Second) / opts.RateHz)
	if !(opts.RateHz > 0) || period <= 0 {
		return nil, fmt.Errorf("loop: invalid rate %v Hz", opts.RateHz)
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Commands == nil {
		opts.Commands = PassiveCommands
	}
	if opts.Policy == nil {
		opts.Policy = carinterface.StockPolicy
	}

	return &Loop{
		clock:     opts.Clock,
		period:    period,
		sources:   opts.Sources,
		sinks:     opts.Sinks,
		ctrl:      opts.Controller,
		policy:    opts.Policy,
		commands:  opts.Commands,
		observers: opts.Observers,
		logf:      monitoring.Limited(10*time.Second, 3),
		subs:      make(map[int]chan vehicle.VehicleState),
	}, nil
}

// Period returns the cycle period.
func (l *Loop) Period() time.Duration { return l.period }

// RunOnce performs a single control cycle and returns the decoded state.
func (l *Loop) RunOnce() vehicle.VehicleState {
	start := l.clock.Now()

	var frames []canbus.BusFrame
	for _, src := range l.sources {
		frames = append(frames, src.Drain()...)
	}
	l.frames.Add(uint64(len(frames)))

	// the board acknowledgement read here is from the previous cycle's frames
	st := l.ctrl.Step(frames, l.ctrl.ControlsBoardEnabled(), l.policy)

	out, err := l.ctrl.Apply(l.commands(st))
	if err != nil {
		l.applyErrs.Add(1)
		l.logf("[loop] %v", err)
	}
	for _, f := range out {
		sink, ok := l.sinks[f.Bus]
		if !ok {
			l.sendErrs.Add(1)
			l.logf("[loop] no sink for bus %d", f.Bus)
			continue
		}
		if err := sink.Send(f); err != nil {
			l.sendErrs.Add(1)
			l.logf("[loop] send on bus %d failed: %v", f.Bus, err)
			continue
		}
		l.sent.Add(1)
	}

	l.publish(st)
	cycle := l.cycles.Add(1)
	for _, obs := range l.observers {
		obs(cycle, start, st)
	}

	if l.clock.Since(start) > l.period {
		l.overruns.Add(1)
		l.logf("[loop] cycle overran %v", l.period)
	}
	return st
}

// Run ticks at the configured rate until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := l.clock.NewTicker(l.period)
	defer ticker.Stop()

	monitoring.Logf("[loop] running at %v per cycle", l.period)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			l.RunOnce()
		}
	}
}

func (l *Loop) publish(st vehicle.VehicleState) {
	latest := st.Clone()
	l.latest.Store(&latest)

	l.subMu.Lock()
	defer l.subMu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- st.Clone():
		default:
			l.dropped.Add(1)
		}
	}
}

// Latest returns the most recent state, or false before the first cycle.
func (l *Loop) Latest() (vehicle.VehicleState, bool) {
	p := l.latest.Load()
	if p == nil {
		return vehicle.VehicleState{}, false
	}
	return p.Clone(), true
}

// Subscribe returns a channel receiving every published state. When the
// channel is full the state is dropped for that subscriber.
func (l *Loop) Subscribe(buffer int) (int, <-chan vehicle.VehicleState) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan vehicle.VehicleState, buffer)

	l.subMu.Lock()
	defer l.subMu.Unlock()
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	return id, ch
}

// Unsubscribe closes and removes a subscription.
func (l *Loop) Unsubscribe(id int) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	if ch, ok := l.subs[id]; ok {
		close(ch)
		delete(l.subs, id)
	}
}

// Stats returns the loop counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Cycles:     l.cycles.Load(),
		Frames:     l.frames.Load(),
		Sent:       l.sent.Load(),
		SendErrors: l.sendErrs.Load(),
		ApplyErrs:  l.applyErrs.Load(),
		Dropped:    l.dropped.Load(),
		Overruns:   l.overruns.Load(),
	}
}
