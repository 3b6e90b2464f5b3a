// internal/mode/send.go
package mode

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"uart-assist/internal/codec"
	"uart-assist/internal/model"
	"uart-assist/internal/observe"
	"uart-assist/internal/protocol"
)

// Interval bounds for the send protocol
const (
	MinInterval = time.Millisecond
	MaxInterval = 10 * time.Second
)

// Send writes the payload repeatedly with a fixed pause between writes
type Send struct {
	logger *zap.Logger
}

// NewSend creates the send protocol
func NewSend(logger *zap.Logger) *Send {
	return &Send{logger: logger}
}

// Name returns the mode identifier
func (s *Send) Name() model.TestMode {
	return model.ModeSend
}

// Run sends until Count writes are done, or until ctx is cancelled when
// Count is zero
func (s *Send) Run(ctx context.Context, port protocol.Port, params Params) (*Outcome, error) {
	start := time.Now()
	outcome := &Outcome{}
	sink := params.sink()
	defer func() { outcome.Stats.Elapsed = time.Since(start) }()

	if params.Interval < MinInterval || params.Interval > MaxInterval {
		return outcome, fmt.Errorf("%w: invalid interval %s (should be %s-%s)",
			model.ErrConfig, params.Interval, MinInterval, MaxInterval)
	}
	if params.Count < 0 {
		return outcome, fmt.Errorf("%w: invalid count %d (should be >= 0)", model.ErrConfig, params.Count)
	}

	payload, err := codec.EncodePayload(params.Payload, params.Format)
	if err != nil {
		return outcome, err
	}

	count := "infinite"
	if params.Count > 0 {
		count = fmt.Sprintf("%d", params.Count)
	}
	emit(sink, observe.EventInfo, outcome.Stats, "Send test started (%d bytes, interval: %s, count: %s, format: %s)",
		len(payload), params.Interval, count, params.Format.Label())

	if err := flush(port); err != nil {
		return outcome, err
	}

	for {
		if ctx.Err() != nil {
			outcome.Cancelled = true
			break
		}

		if err := sendOnce(port, payload); err != nil {
			return outcome, err
		}
		outcome.Stats.Sent++
		outcome.Stats.SentBytes += len(payload)
		emit(sink, observe.EventProgress, outcome.Stats, "Send [%d] : %s (%d bytes, total: %d bytes)",
			outcome.Stats.Sent, display(payload, params.Format), len(payload), outcome.Stats.SentBytes)

		if params.Count > 0 && outcome.Stats.Sent >= params.Count {
			break
		}

		// An interrupted wait is picked up by the check at the loop top
		wait(ctx, params.Interval)
	}

	s.logger.Debug("Send loop finished",
		zap.Int("sent", outcome.Stats.Sent),
		zap.Bool("cancelled", outcome.Cancelled),
	)
	emit(sink, observe.EventResult, outcome.Stats, "Total sent: %d packets, %d bytes",
		outcome.Stats.Sent, outcome.Stats.SentBytes)
	return outcome, nil
}
