// Package mapd carries the speed limit published by an external live-map
// process into the control loop. Only the latest value is kept.
package mapd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/banshee-data/ocelot/internal/monitoring"
)

// SpeedLimit is one update from the map feed. SpeedLimit is in m/s.
type SpeedLimit struct {
	SpeedLimit      float64   `json:"speedLimit"`
	SpeedLimitValid bool      `json:"speedLimitValid"`
	ReceivedAt      time.Time `json:"receivedAt"`
}

// Validate rejects values the decoder should never see.
func (s SpeedLimit) Validate() error {
	if math.IsNaN(s.SpeedLimit) || math.IsInf(s.SpeedLimit, 0) {
		return fmt.Errorf("speed limit must be finite, got %v", s.SpeedLimit)
	}
	if s.SpeedLimit < 0 {
		return fmt.Errorf("speed limit must be non-negative, got %v", s.SpeedLimit)
	}
	return nil
}

// Bridge is a single-slot mailbox. Publish replaces whatever is there and
// readers never block. Intermediate updates may be lost.
type Bridge struct {
	latest    atomic.Pointer[SpeedLimit]
	published atomic.Uint64
	now       func() time.Time
	logf      func(format string, v ...interface{})
}

// NewBridge returns an empty bridge.
func NewBridge() *Bridge {
	return &Bridge{now: time.Now, logf: monitoring.Limited(10*time.Second, 3)}
}

// Publish stores s as the latest value.
func (b *Bridge) Publish(s SpeedLimit) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.ReceivedAt.IsZero() {
		s.ReceivedAt = b.now()
	}
	b.latest.Store(&s)
	b.published.Add(1)
	return nil
}

// Latest returns the most recent value, if any.
func (b *Bridge) Latest() (SpeedLimit, bool) {
	p := b.latest.Load()
	if p == nil {
		return SpeedLimit{}, false
	}
	return *p, true
}

// LatestSpeedLimit returns the latest limit in m/s. An empty bridge or an
// update flagged invalid reads as no limit known.
func (b *Bridge) LatestSpeedLimit() (float64, bool) {
	s, ok := b.Latest()
	if !ok || !s.SpeedLimitValid {
		return 0, false
	}
	return s.SpeedLimit, true
}

// Published returns the number of accepted updates.
func (b *Bridge) Published() uint64 {
	return b.published.Load()
}

// Follow publishes every JSON line received on lines until ctx is done or
// the channel closes. Malformed lines are skipped and logged at a limited
// rate.
func (b *Bridge) Follow(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			b.handleLine(line)
		}
	}
}

func (b *Bridge) handleLine(line string) {
	if line == "" {
		return
	}
	var s SpeedLimit
	if err := json.Unmarshal([]byte(line), &s); err != nil {
		b.logf("[mapd] skipping malformed line %q: %v", line, err)
		return
	}
	s.ReceivedAt = time.Time{}
	if err := b.Publish(s); err != nil {
		b.logf("[mapd] skipping update: %v", err)
	}
}

// ReadLines splits r into lines and sends them on the returned channel, which
// is closed at EOF, on read error, or when ctx is done.
func ReadLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			monitoring.Logf("[mapd] feed read error: %v", err)
		}
	}()
	return out
}
