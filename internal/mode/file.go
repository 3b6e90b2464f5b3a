// internal/mode/file.go
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

// File replays a validated send script
type File struct {
	logger *zap.Logger
}

// NewFile creates the scripted replay protocol
func NewFile(logger *zap.Logger) *File {
	return &File{logger: logger}
}

// Name returns the mode identifier
func (f *File) Name() model.TestMode {
	return model.ModeFile
}

// Run sends every enabled item in order, CycleCount times. Disabled items
// get neither a send nor a delay. The first failed send aborts the run.
func (f *File) Run(ctx context.Context, port protocol.Port, params Params) (*Outcome, error) {
	start := time.Now()
	outcome := &Outcome{}
	sink := params.sink()
	defer func() { outcome.Stats.Elapsed = time.Since(start) }()

	group := params.Script
	if group == nil {
		return outcome, fmt.Errorf("%w: no script loaded", model.ErrScriptValidation)
	}
	if group.CycleCount < 1 || len(group.SendList) == 0 {
		return outcome, fmt.Errorf("%w: script %q has nothing to send", model.ErrScriptValidation, group.GroupName)
	}

	payloads, err := decodeItems(group)
	if err != nil {
		return outcome, err
	}

	emit(sink, observe.EventInfo, outcome.Stats, "Script %q started (%d cycles, %d of %d items enabled)",
		group.GroupName, group.CycleCount, group.EnabledCount(), len(group.SendList))

	if err := flush(port); err != nil {
		return outcome, err
	}

cycles:
	for cycle := 1; cycle <= group.CycleCount; cycle++ {
		emit(sink, observe.EventInfo, outcome.Stats, "=== Cycle %d/%d ===", cycle, group.CycleCount)

		for i, item := range group.SendList {
			if ctx.Err() != nil {
				outcome.Cancelled = true
				break cycles
			}
			if !item.Enable {
				continue
			}

			payload := payloads[i]
			if err := sendOnce(port, payload); err != nil {
				f.logger.Error("Script item send failed",
					zap.Int("cycle", cycle),
					zap.Int("number", item.Number),
					zap.Error(err),
				)
				return outcome, fmt.Errorf("item #%d (cycle %d): %w", item.Number, cycle, err)
			}
			outcome.Stats.Sent++
			outcome.Stats.SentBytes += len(payload)
			emit(sink, observe.EventProgress, outcome.Stats, "[cycle %d/%d] #%d : hex=%s (%d bytes), delay=%dms",
				cycle, group.CycleCount, item.Number, codec.Render(payload, model.FormatHex), len(payload), item.Delay)

			wait(ctx, time.Duration(item.Delay)*time.Millisecond)
		}
	}

	emit(sink, observe.EventResult, outcome.Stats, "Script %q finished: %d packets, %d bytes sent",
		group.GroupName, outcome.Stats.Sent, outcome.Stats.SentBytes)
	return outcome, nil
}

// decodeItems returns the wire bytes of every item, decoding any item whose
// payload was not filled in by the loader
func decodeItems(group *model.ScriptGroup) ([][]byte, error) {
	payloads := make([][]byte, len(group.SendList))
	for i, item := range group.SendList {
		if len(item.Payload) > 0 {
			payloads[i] = item.Payload
			continue
		}
		payload, err := codec.HexDecode(item.HexData, codec.SendBufferSize)
		if err != nil {
			return nil, fmt.Errorf("%w: SendList[%d].HexData: %v", model.ErrScriptValidation, i, err)
		}
		payloads[i] = payload
	}
	return payloads, nil
}
