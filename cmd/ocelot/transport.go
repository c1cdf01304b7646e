package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/ocelot/internal/canbus"
	"github.com/banshee-data/ocelot/internal/loop"
	"github.com/banshee-data/ocelot/internal/serialmux"
)

// busConfig selects the transport of one bus. Socketcan wins over the serial
// port; with neither the bus is disabled.
type busConfig struct {
	Bus            uint8
	SerialPath     string
	SocketCAN      string
	Port           serialmux.PortOptions
	BitrateCommand string
	Dev            bool
	DevInterval    time.Duration
}

// busTransport is a running bus: frames arrive in Queue, the loop sends
// through Sink, and Workers must run for the lifetime of the process.
type busTransport struct {
	Name    string
	Queue   *canbus.FrameQueue
	Sink    loop.FrameSink
	Workers []func(ctx context.Context) error
	Admin   func(mux *http.ServeMux)
	Close   func() error
	Info    *serialmux.AdapterInfo
}

func openBus(ctx context.Context, cfg busConfig) (*busTransport, error) {
	q := canbus.NewFrameQueue(0)

	if cfg.SocketCAN != "" {
		src := canbus.NewSocketCANSource(cfg.SocketCAN, cfg.Bus, q)
		return &busTransport{
			Name:    "socketcan:" + cfg.SocketCAN,
			Queue:   q,
			Sink:    src,
			Workers: []func(context.Context) error{src.Run},
			Close:   func() error { return nil },
		}, nil
	}

	var (
		mux  serialmux.SerialMuxInterface
		name string
	)
	switch {
	case cfg.Dev:
		mux = serialmux.NewMockSerialMux(ctx, devLines(cfg.Bus), cfg.DevInterval)
		name = "dev"
	case cfg.SerialPath != "":
		port, err := serialmux.NewRealSerialMux(cfg.SerialPath, cfg.Port)
		if err != nil {
			return nil, err
		}
		mux = port
		name = cfg.SerialPath
	default:
		mux = serialmux.NewDisabledSerialMux()
		name = "disabled"
	}

	if err := mux.Initialise(cfg.BitrateCommand); err != nil {
		mux.Close()
		return nil, fmt.Errorf("failed to initialise CAN adapter %s: %w", name, err)
	}

	info := &serialmux.AdapterInfo{}
	return &busTransport{
		Name:  name,
		Queue: q,
		Sink: loop.SinkFunc(func(f canbus.BusFrame) error {
			return serialmux.SendFrame(mux, f)
		}),
		Workers: []func(context.Context) error{
			mux.Monitor,
			func(ctx context.Context) error { return serialmux.Pump(ctx, mux, q, info, cfg.Bus) },
		},
		Admin: mux.AttachAdminRoutes,
		Close: mux.Close,
		Info:  info,
	}, nil
}
