package serialmux

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/ocelot/internal/canbus"
	"github.com/banshee-data/ocelot/internal/monitoring"
)

// ErrAdapterNack is returned when the adapter rejects a command with BEL.
var ErrAdapterNack = errors.New("CAN adapter rejected command")

// ErrUnknownLine is returned for adapter lines that are neither frames nor
// known replies.
var ErrUnknownLine = errors.New("unknown adapter line")

// AdapterInfo holds what the adapter has reported about itself. It is
// updated as version, serial and status replies arrive.
type AdapterInfo struct {
	mu      sync.Mutex
	version string
	serial  string
	status  string
	nacks   uint64
	frames  uint64
}

// AdapterInfoSnapshot is a copy of AdapterInfo for reporting.
type AdapterInfoSnapshot struct {
	Version string `json:"version"`
	Serial  string `json:"serial"`
	Status  string `json:"status"`
	Nacks   uint64 `json:"nacks"`
	Frames  uint64 `json:"frames"`
}

// Snapshot returns the current info.
func (a *AdapterInfo) Snapshot() AdapterInfoSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AdapterInfoSnapshot{
		Version: a.version,
		Serial:  a.serial,
		Status:  a.status,
		Nacks:   a.nacks,
		Frames:  a.frames,
	}
}

// HandleFrame parses an SLCAN frame line and queues it for the control loop.
func HandleFrame(q *canbus.FrameQueue, bus uint8, payload string) error {
	f, err := canbus.ParseSLCAN(bus, payload)
	if err != nil {
		return err
	}
	if !q.Push(f) {
		return fmt.Errorf("frame queue full, dropped %s", f)
	}
	return nil
}

// HandleEvent dispatches one adapter line. Frames go into q; replies update
// info.
func HandleEvent(q *canbus.FrameQueue, info *AdapterInfo, bus uint8, payload string) error {
	switch ClassifyPayload(payload) {
	case EventTypeFrame:
		if err := HandleFrame(q, bus, payload); err != nil {
			return fmt.Errorf("failed to handle frame: %w", err)
		}
		info.mu.Lock()
		info.frames++
		info.mu.Unlock()
	case EventTypeAck:
	case EventTypeNack:
		info.mu.Lock()
		info.nacks++
		info.mu.Unlock()
		return ErrAdapterNack
	case EventTypeVersion:
		info.mu.Lock()
		info.version = payload[1:]
		info.mu.Unlock()
	case EventTypeSerial:
		info.mu.Lock()
		info.serial = payload[1:]
		info.mu.Unlock()
	case EventTypeStatus:
		info.mu.Lock()
		info.status = payload[1:]
		info.mu.Unlock()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLine, payload)
	}
	return nil
}

// Pump subscribes to mux and feeds every line into q until ctx is done or
// the mux closes the subscription. Bad lines are dropped and logged at a
// limited rate.
func Pump(ctx context.Context, mux SerialMuxInterface, q *canbus.FrameQueue, info *AdapterInfo, bus uint8) error {
	logf := monitoring.Limited(10*time.Second, 3)
	id, lines := mux.Subscribe()
	defer mux.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := HandleEvent(q, info, bus, line); err != nil {
				logf("[serialmux] bus %d: %v", bus, err)
			}
		}
	}
}

// SendFrame transmits a frame through the adapter.
func SendFrame(mux SerialMuxInterface, f canbus.BusFrame) error {
	return mux.SendCommand(canbus.FormatSLCAN(f))
}
