// Package canbus turns raw bus frames into named signal values. It provides
// the frame codecs used by the transports, the signal catalogs of the
// supported vehicle, and the per-bus Parser that tracks message freshness.
package canbus

import (
	"fmt"
	"sync"

	"github.com/brutella/can"
)

// Bus indices as wired on the retrofit harness.
const (
	BusChassis uint8 = 0
	BusPrimary uint8 = 1
)

// SocketCAN identifier flags carried in the high bits of can.Frame.ID.
const (
	FlagExtended uint32 = 0x80000000
	FlagRemote   uint32 = 0x40000000
	MaskStdID    uint32 = 0x000007FF
	MaskExtID    uint32 = 0x1FFFFFFF
)

// BusFrame is a frame together with the bus it was received on or is
// destined for.
type BusFrame struct {
	Bus   uint8
	Frame can.Frame
}

// ArbitrationID returns the identifier with the flag bits stripped.
func (f BusFrame) ArbitrationID() uint32 {
	if f.Frame.ID&FlagExtended != 0 {
		return f.Frame.ID & MaskExtID
	}
	return f.Frame.ID & MaskStdID
}

func (f BusFrame) String() string {
	return fmt.Sprintf("bus=%d id=0x%X len=%d data=% X", f.Bus, f.ArbitrationID(), f.Frame.Length, f.Frame.Data[:f.Frame.Length])
}

// NewFrame builds a standard-identifier frame. Data beyond 8 bytes is truncated.
func NewFrame(bus uint8, id uint32, data []byte) BusFrame {
	var payload [can.MaxFrameDataLength]uint8
	n := copy(payload[:], data)
	return BusFrame{
		Bus: bus,
		Frame: can.Frame{
			ID:     id & MaskStdID,
			Length: uint8(n),
			Data:   payload,
		},
	}
}

// FrameQueue collects frames pushed by transport goroutines until the control
// loop drains them once per cycle. When full, new frames are dropped and
// counted rather than blocking the transport.
type FrameQueue struct {
	mu      sync.Mutex
	frames  []BusFrame
	max     int
	dropped uint64
}

// NewFrameQueue creates a queue holding at most max frames between drains.
func NewFrameQueue(max int) *FrameQueue {
	if max <= 0 {
		max = 4096
	}
	return &FrameQueue{
		frames: make([]BusFrame, 0, max),
		max:    max,
	}
}

// Push appends a frame. It reports false if the frame was dropped.
func (q *FrameQueue) Push(f BusFrame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) >= q.max {
		q.dropped++
		return false
	}
	q.frames = append(q.frames, f)
	return true
}

// Drain returns all queued frames in arrival order and empties the queue.
func (q *FrameQueue) Drain() []BusFrame {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) == 0 {
		return nil
	}
	out := q.frames
	q.frames = make([]BusFrame, 0, q.max)
	return out
}

// Dropped returns the number of frames dropped because the queue was full.
func (q *FrameQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
