// internal/mode/receive.go
package mode

import (
	"context"
	"time"

	"go.uber.org/zap"

	"uart-assist/internal/codec"
	"uart-assist/internal/model"
	"uart-assist/internal/observe"
	"uart-assist/internal/protocol"
)

// Receive prints everything that arrives until the run is cancelled
type Receive struct {
	logger *zap.Logger
	window time.Duration
}

// NewReceive creates the receive protocol
func NewReceive(logger *zap.Logger) *Receive {
	return &Receive{
		logger: logger,
		window: ReceiveWindow,
	}
}

// Name returns the mode identifier
func (r *Receive) Name() model.TestMode {
	return model.ModeReceive
}

// Run loops on bounded receives. It ends only by cancellation or a device
// fault; an empty window just reports that it is still waiting.
func (r *Receive) Run(ctx context.Context, port protocol.Port, params Params) (*Outcome, error) {
	start := time.Now()
	outcome := &Outcome{}
	sink := params.sink()
	defer func() { outcome.Stats.Elapsed = time.Since(start) }()

	emit(sink, observe.EventInfo, outcome.Stats, "Receive test started (format: %s, press Ctrl+C to stop)",
		params.Format.Label())

	if err := flush(port); err != nil {
		return outcome, err
	}

	buf := make([]byte, RecvBufferSize)
loop:
	for {
		if ctx.Err() != nil {
			outcome.Cancelled = true
			break
		}

		res, n, err := protocol.ReceiveWithTimeout(ctx, port, buf, r.window)
		if err != nil {
			return outcome, err
		}

		switch res {
		case protocol.RecvCancelled:
			outcome.Cancelled = true
			break loop
		case protocol.RecvTimeout:
			emit(sink, observe.EventWaiting, outcome.Stats, "Waiting for data...")
		case protocol.RecvData:
			outcome.Stats.Received++
			outcome.Stats.ReceivedBytes += n
			r.report(sink, buf[:n], params.Format, outcome.Stats)
		}
	}

	r.logger.Debug("Receive loop finished",
		zap.Int("packets", outcome.Stats.Received),
		zap.Int("bytes", outcome.Stats.ReceivedBytes),
	)
	emit(sink, observe.EventResult, outcome.Stats, "Total received: %d packets, %d bytes",
		outcome.Stats.Received, outcome.Stats.ReceivedBytes)
	return outcome, nil
}

func (r *Receive) report(sink observe.Sink, data []byte, format model.OutputFormat, stats model.RunStats) {
	if format == model.FormatHex {
		emit(sink, observe.EventData, stats, "Recv [%d] : %d bytes (total: %d bytes)\n%s",
			stats.Received, len(data), stats.ReceivedBytes, codec.RenderHex(data))
		return
	}
	emit(sink, observe.EventData, stats, "Recv [%d] : \"%s\" (%d bytes, total: %d bytes)",
		stats.Received, codec.RenderASCII(data), len(data), stats.ReceivedBytes)
}
