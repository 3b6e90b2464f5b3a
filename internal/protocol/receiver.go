// internal/protocol/receiver.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"uart-assist/internal/model"
)

// RecvResult distinguishes the three ways a bounded receive can end
type RecvResult int

const (
	// RecvData means at least one byte arrived
	RecvData RecvResult = iota
	// RecvTimeout means the window elapsed with nothing to read
	RecvTimeout
	// RecvCancelled means the caller's context ended while waiting
	RecvCancelled
)

func (r RecvResult) String() string {
	switch r {
	case RecvData:
		return "data"
	case RecvTimeout:
		return "timeout"
	case RecvCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("RecvResult(%d)", int(r))
	}
}

type readResult struct {
	n   int
	err error
}

// ReceiveWithTimeout waits up to timeout for the port to deliver data and
// copies at most len(buf) bytes of a single read into buf. Timeouts and
// cancellation are not errors; only a channel fault is.
func ReceiveWithTimeout(ctx context.Context, port Port, buf []byte, timeout time.Duration) (RecvResult, int, error) {
	if len(buf) == 0 {
		return RecvTimeout, 0, fmt.Errorf("%w: empty receive buffer", model.ErrDevice)
	}

	select {
	case <-ctx.Done():
		return RecvCancelled, 0, nil
	default:
	}

	if err := port.SetReadTimeout(timeout); err != nil {
		return RecvTimeout, 0, wrapDeviceError(err)
	}

	// The read owns tmp until it returns; an abandoned read is unblocked when
	// the port is closed.
	tmp := make([]byte, len(buf))
	done := make(chan readResult, 1)
	go func() {
		n, err := port.Read(tmp)
		done <- readResult{n: n, err: err}
	}()

	select {
	case <-ctx.Done():
		return RecvCancelled, 0, nil
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, io.EOF) && r.n > 0 {
				return RecvData, copy(buf, tmp[:r.n]), nil
			}
			return RecvTimeout, 0, wrapDeviceError(r.err)
		}
		if r.n == 0 {
			return RecvTimeout, 0, nil
		}
		return RecvData, copy(buf, tmp[:r.n]), nil
	}
}

func wrapDeviceError(err error) error {
	if errors.Is(err, model.ErrDevice) {
		return err
	}
	return fmt.Errorf("%w: %v", model.ErrDevice, err)
}
