// internal/protocol/testable_port.go
package protocol

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrPortClosed is returned by TestablePort once Close has been called
var ErrPortClosed = errors.New("serial port closed")

// TestablePort implements Port in memory with configurable behaviour for
// testing. Reads are served from queued chunks, one chunk per Read.
type TestablePort struct {
	mu sync.Mutex

	chunks   [][]byte
	notify   chan struct{}
	closedCh chan struct{}

	// Echo queues every successful write as read data
	Echo bool

	// EchoTransform rewrites echoed data when set
	EchoTransform func([]byte) []byte

	// ShortWrite caps the count a Write reports when positive
	ShortWrite int

	// BeforeWrite is called at the start of each Write with the attempt number
	BeforeWrite func(attempt int)

	// OnWrite is called after each successful write with the write count so far
	OnWrite func(count int)

	WriteError      error
	ReadError       error
	FlushError      error
	SetTimeoutError error
	CloseError      error

	// Writes captures data written to the port, one entry per call
	Writes [][]byte

	// WriteTimes records when each write happened
	WriteTimes []time.Time

	ReadTimeout time.Duration
	ReadCalls   int
	Flushes     int
	CloseCalls  int
	Closed      bool
}

// NewTestablePort creates a new TestablePort for testing
func NewTestablePort() *TestablePort {
	return &TestablePort{
		notify:   make(chan struct{}, 1),
		closedCh: make(chan struct{}),
	}
}

// AddReadData queues one chunk to be returned by a later Read
func (t *TestablePort) AddReadData(data []byte) {
	t.mu.Lock()
	t.chunks = append(t.chunks, append([]byte(nil), data...))
	t.mu.Unlock()
	t.signal()
}

func (t *TestablePort) signal() {
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// Write records data and optionally echoes it back
func (t *TestablePort) Write(data []byte) (int, error) {
	t.mu.Lock()
	before := t.BeforeWrite
	attempt := len(t.Writes) + 1
	t.mu.Unlock()
	if before != nil {
		before(attempt)
	}

	t.mu.Lock()
	if t.Closed {
		t.mu.Unlock()
		return 0, ErrPortClosed
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.mu.Unlock()
		return 0, err
	}

	n := len(data)
	if t.ShortWrite > 0 && t.ShortWrite < n {
		n = t.ShortWrite
	}
	t.Writes = append(t.Writes, append([]byte(nil), data[:n]...))
	t.WriteTimes = append(t.WriteTimes, time.Now())
	count := len(t.Writes)

	echoed := false
	if t.Echo {
		echo := append([]byte(nil), data[:n]...)
		if t.EchoTransform != nil {
			echo = t.EchoTransform(echo)
		}
		t.chunks = append(t.chunks, echo)
		echoed = true
	}
	hook := t.OnWrite
	t.mu.Unlock()

	if echoed {
		t.signal()
	}
	if hook != nil {
		hook(count)
	}
	return n, nil
}

// Read returns the next queued chunk, waiting up to the read timeout for one
// to arrive. A timeout is reported as (0, nil).
func (t *TestablePort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++
	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	deadline := time.Now().Add(t.ReadTimeout)
	for {
		if t.Closed {
			return 0, ErrPortClosed
		}
		if len(t.chunks) > 0 {
			chunk := t.chunks[0]
			n := copy(p, chunk)
			if n < len(chunk) {
				t.chunks[0] = chunk[n:]
			} else {
				t.chunks = t.chunks[1:]
			}
			return n, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, nil
		}

		t.mu.Unlock()
		timer := time.NewTimer(remaining)
		select {
		case <-t.notify:
		case <-timer.C:
		case <-t.closedCh:
		}
		timer.Stop()
		t.mu.Lock()
	}
}

// SetReadTimeout stores the timeout used by the next Read
func (t *TestablePort) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.SetTimeoutError != nil {
		return t.SetTimeoutError
	}
	t.ReadTimeout = timeout
	return nil
}

// Flush drops queued read data
func (t *TestablePort) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Flushes++
	if t.FlushError != nil {
		return t.FlushError
	}
	t.chunks = nil
	return nil
}

// Close marks the port closed and wakes blocked readers
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.CloseCalls++
	if t.Closed {
		return nil
	}
	t.Closed = true
	close(t.closedCh)
	return t.CloseError
}

// WriteCount returns the number of successful writes
func (t *TestablePort) WriteCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Writes)
}

// Written returns a copy of every write in order
func (t *TestablePort) Written() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([][]byte, len(t.Writes))
	copy(out, t.Writes)
	return out
}

// WriteTimestamps returns a copy of the write times
func (t *TestablePort) WriteTimestamps() []time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]time.Time, len(t.WriteTimes))
	copy(out, t.WriteTimes)
	return out
}

// IsClosed reports whether Close has been called
func (t *TestablePort) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Closed
}

// TestableFactory hands out a prepared TestablePort
type TestableFactory struct {
	mu sync.Mutex

	Port      *TestablePort
	OpenError error
	Opened    []*SerialConfig
}

// Open records the configuration and returns the prepared port
func (f *TestableFactory) Open(ctx context.Context, config *SerialConfig) (Port, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.Opened = append(f.Opened, config)
	if f.OpenError != nil {
		return nil, f.OpenError
	}
	return f.Port, nil
}

// OpenCount returns how many times Open was called with a valid config
func (f *TestableFactory) OpenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Opened)
}
