package serialmux

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/banshee-data/ocelot/internal/monitoring"
)

// MockSerialPort implements SerialPorter for dev mode. Reads come from
// Reader and writes go to WriteCloser.
type MockSerialPort struct {
	io.Reader
	io.WriteCloser
}

func (m *MockSerialPort) Write(p []byte) (n int, err error) {
	return m.WriteCloser.Write(p)
}

// Close closes the reader too when it supports it, unblocking the replay
// goroutine.
func (m *MockSerialPort) Close() error {
	if c, ok := m.Reader.(io.Closer); ok {
		c.Close()
	}
	return m.WriteCloser.Close()
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewMockSerialMux creates a SerialMux backed by a fake adapter that replays
// lines, one every interval, looping until ctx is done. Commands written to
// the mux are logged.
func NewMockSerialMux(ctx context.Context, lines []string, interval time.Duration) *SerialMux[*MockSerialPort] {
	r, w := io.Pipe()
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}

	mockPort := &MockSerialPort{
		Reader:      r,
		WriteCloser: nopWriteCloser{commandLogger{}},
	}

	go func() {
		defer w.Close()
		if len(lines) == 0 {
			<-ctx.Done()
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := io.WriteString(w, strings.TrimRight(lines[i%len(lines)], "\r\n")+"\r"); err != nil {
					return
				}
			}
		}
	}()

	return NewSerialMux(mockPort)
}

type commandLogger struct{}

func (commandLogger) Write(p []byte) (int, error) {
	monitoring.Logf("[serialmux] mock adapter received %q", strings.TrimRight(string(p), "\r"))
	return len(p), nil
}
