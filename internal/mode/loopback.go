// internal/mode/loopback.go
package mode

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"uart-assist/internal/codec"
	"uart-assist/internal/model"
	"uart-assist/internal/observe"
	"uart-assist/internal/protocol"
)

// Loopback sends the payload once and expects the identical bytes back
type Loopback struct {
	logger *zap.Logger
	window time.Duration
}

// NewLoopback creates the loopback protocol
func NewLoopback(logger *zap.Logger) *Loopback {
	return &Loopback{
		logger: logger,
		window: ReceiveWindow,
	}
}

// Name returns the mode identifier
func (l *Loopback) Name() model.TestMode {
	return model.ModeLoopback
}

// Run performs exactly one send and one receive attempt
func (l *Loopback) Run(ctx context.Context, port protocol.Port, params Params) (*Outcome, error) {
	start := time.Now()
	outcome := &Outcome{}
	sink := params.sink()
	defer func() { outcome.Stats.Elapsed = time.Since(start) }()

	payload, err := codec.EncodePayload(params.Payload, params.Format)
	if err != nil {
		return outcome, err
	}

	emit(sink, observe.EventInfo, outcome.Stats, "Loopback test started (send %d bytes, format: %s)",
		len(payload), params.Format.Label())

	if err := flush(port); err != nil {
		return outcome, err
	}

	if err := sendOnce(port, payload); err != nil {
		return outcome, err
	}
	outcome.Stats.Sent = 1
	outcome.Stats.SentBytes = len(payload)
	emit(sink, observe.EventProgress, outcome.Stats, "Send : %s (%d bytes)", display(payload, params.Format), len(payload))

	buf := make([]byte, RecvBufferSize)
	res, n, err := protocol.ReceiveWithTimeout(ctx, port, buf, l.window)
	if err != nil {
		return outcome, err
	}

	switch res {
	case protocol.RecvCancelled:
		outcome.Cancelled = true
		emit(sink, observe.EventResult, outcome.Stats, "Loopback test cancelled before data arrived")
		return outcome, nil
	case protocol.RecvTimeout:
		return outcome, fmt.Errorf("%w: no data received within %s", model.ErrTimeout, l.window)
	}

	received := buf[:n]
	outcome.Stats.Received = 1
	outcome.Stats.ReceivedBytes = n
	emit(sink, observe.EventData, outcome.Stats, "Recv : %s (%d bytes)", display(received, params.Format), n)

	if !bytes.Equal(payload, received) {
		mismatch := &model.MismatchError{
			Sent:     append([]byte(nil), payload...),
			Received: append([]byte(nil), received...),
		}
		emit(sink, observe.EventError, outcome.Stats, "Loopback test FAILED: %s", mismatch.Error())
		emit(sink, observe.EventError, outcome.Stats, "  sent:     %s", display(mismatch.Sent, params.Format))
		emit(sink, observe.EventError, outcome.Stats, "  received: %s", display(mismatch.Received, params.Format))
		return outcome, mismatch
	}

	l.logger.Debug("Loopback echo matched", zap.Int("bytes", n))
	emit(sink, observe.EventResult, outcome.Stats, "Loopback test PASSED (%d bytes)", n)
	return outcome, nil
}

// display renders bytes for a single observation line
func display(b []byte, format model.OutputFormat) string {
	if format == model.FormatHex {
		return codec.Render(b, format)
	}
	return `"` + codec.RenderASCII(b) + `"`
}
