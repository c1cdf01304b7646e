package serialmux

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// fakeAdapter stands in for a USB-CAN adapter speaking SLCAN. Reads block
// until the test queues adapter output with Reply or Nack, or the port is
// closed.
type fakeAdapter struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  bytes.Buffer
	written  bytes.Buffer
	readErr  error
	writeErr error
	closed   bool
}

func newFakeAdapter() *fakeAdapter {
	a := &fakeAdapter{}
	a.cond = sync.NewCond(&a.mu)
	return a
}

func (a *fakeAdapter) Read(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for !a.closed && a.readErr == nil && a.pending.Len() == 0 {
		a.cond.Wait()
	}
	if a.readErr != nil {
		err := a.readErr
		a.readErr = nil
		return 0, err
	}
	if a.pending.Len() == 0 {
		return 0, io.EOF
	}
	return a.pending.Read(p)
}

func (a *fakeAdapter) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.writeErr != nil {
		return 0, a.writeErr
	}
	return a.written.Write(p)
}

func (a *fakeAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.cond.Broadcast()
	return nil
}

// Reply queues adapter output lines, each terminated with \r.
func (a *fakeAdapter) Reply(lines ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, l := range lines {
		a.pending.WriteString(l + "\r")
	}
	a.cond.Broadcast()
}

// Nack queues the bare BEL the adapter sends for a rejected command.
func (a *fakeAdapter) Nack() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending.WriteByte('\a')
	a.cond.Broadcast()
}

// Commands returns the SLCAN commands written so far, without terminators.
func (a *fakeAdapter) Commands() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := strings.TrimSuffix(a.written.String(), "\r")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\r")
}

func (a *fakeAdapter) failRead(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.readErr = err
	a.cond.Broadcast()
}

func (a *fakeAdapter) failWrites(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writeErr = err
}

func (a *fakeAdapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}
