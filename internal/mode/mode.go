// internal/mode/mode.go
package mode

import (
	"context"
	"fmt"
	"time"

	"uart-assist/internal/model"
	"uart-assist/internal/observe"
	"uart-assist/internal/protocol"
)

// ReceiveWindow is how long a single receive attempt waits for data
const ReceiveWindow = 2 * time.Second

// RecvBufferSize bounds the bytes taken from a single read
const RecvBufferSize = 512

// Mode is one test protocol run against an open port
type Mode interface {
	Name() model.TestMode
	Run(ctx context.Context, port protocol.Port, params Params) (*Outcome, error)
}

// Params carries everything a mode needs besides the port
type Params struct {
	Payload  string
	Format   model.OutputFormat
	Interval time.Duration
	Count    int
	Script   *model.ScriptGroup
	Sink     observe.Sink
}

func (p Params) sink() observe.Sink {
	if p.Sink == nil {
		return observe.Discard
	}
	return p.Sink
}

// Outcome is the result of a mode that ended without error
type Outcome struct {
	Stats     model.RunStats `json:"stats"`
	Cancelled bool           `json:"cancelled"`
}

// sendOnce writes the whole payload, treating a short write as a device fault
func sendOnce(port protocol.Port, payload []byte) error {
	n, err := port.Write(payload)
	if err != nil {
		return deviceError("write", err)
	}
	if n != len(payload) {
		return fmt.Errorf("%w: short write: %d of %d bytes", model.ErrDevice, n, len(payload))
	}
	return nil
}

// wait pauses for d unless ctx ends first; it reports whether the full
// duration elapsed
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func flush(port protocol.Port) error {
	if err := port.Flush(); err != nil {
		return deviceError("flush", err)
	}
	return nil
}

func deviceError(op string, err error) error {
	return fmt.Errorf("%w: %s failed: %v", model.ErrDevice, op, err)
}

func emit(sink observe.Sink, kind observe.EventKind, stats model.RunStats, format string, args ...interface{}) {
	sink.Observe(observe.NewEvent(kind, fmt.Sprintf(format, args...), stats))
}
