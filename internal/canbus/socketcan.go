package canbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brutella/can"

	"github.com/banshee-data/ocelot/internal/monitoring"
)

// SocketCANSource reads frames from a Linux SocketCAN interface and pushes
// them into a FrameQueue tagged with a fixed bus index.
type SocketCANSource struct {
	Interface string
	BusIndex  uint8

	queue *FrameQueue
	logf  func(format string, v ...interface{})

	mu  sync.Mutex
	bus *can.Bus
}

// NewSocketCANSource creates a source for iface ("can0", "vcan0", ...).
func NewSocketCANSource(iface string, busIndex uint8, queue *FrameQueue) *SocketCANSource {
	return &SocketCANSource{
		Interface: iface,
		BusIndex:  busIndex,
		queue:     queue,
		logf:      monitoring.Limited(10*time.Second, 3),
	}
}

// Run opens the interface and publishes frames until ctx is cancelled or the
// socket fails.
func (s *SocketCANSource) Run(ctx context.Context) error {
	bus, err := can.NewBusForInterfaceWithName(s.Interface)
	if err != nil {
		return fmt.Errorf("failed to open socketcan interface %s: %w", s.Interface, err)
	}

	bus.SubscribeFunc(s.receive)

	s.mu.Lock()
	s.bus = bus
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- bus.ConnectAndPublish()
	}()
	monitoring.Logf("[socketcan] listening on %s as bus %d", s.Interface, s.BusIndex)

	select {
	case <-ctx.Done():
		if err := bus.Disconnect(); err != nil {
			monitoring.Logf("[socketcan] %s: disconnect: %v", s.Interface, err)
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("socketcan %s: %w", s.Interface, err)
		}
		return nil
	}
}

// receive tags frm with the source's bus and queues it. Drops on a full
// queue are logged at a limited rate.
func (s *SocketCANSource) receive(frm can.Frame) {
	if !s.queue.Push(BusFrame{Bus: s.BusIndex, Frame: frm}) {
		s.logf("[socketcan] %s: frame queue full, dropping 0x%X", s.Interface, frm.ID)
	}
}

// Send transmits a frame on the interface. It fails if Run has not started.
func (s *SocketCANSource) Send(f BusFrame) error {
	s.mu.Lock()
	bus := s.bus
	s.mu.Unlock()
	if bus == nil {
		return fmt.Errorf("socketcan %s: not connected", s.Interface)
	}
	return bus.Publish(f.Frame)
}
