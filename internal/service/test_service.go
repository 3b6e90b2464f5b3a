// internal/service/test_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"uart-assist/internal/codec"
	"uart-assist/internal/config"
	"uart-assist/internal/mode"
	"uart-assist/internal/model"
	"uart-assist/internal/observe"
	"uart-assist/internal/protocol"
	"uart-assist/internal/repository"
	"uart-assist/internal/script"
	"uart-assist/internal/utils"
)

// saveTimeout bounds the history write; it uses its own context so a
// cancelled run is still recorded
const saveTimeout = 5 * time.Second

// RunRequest describes one test run
type RunRequest struct {
	Mode       model.TestMode
	Device     string
	Framing    model.Framing
	Format     model.OutputFormat
	Payload    string
	Interval   time.Duration
	Count      int
	ScriptPath string
	Script     *model.ScriptGroup
}

// RequestFromConfig builds a run request from validated configuration
func RequestFromConfig(cfg *config.Config) (*RunRequest, error) {
	testMode, err := cfg.TestMode()
	if err != nil {
		return nil, err
	}
	format, err := cfg.OutputFormat()
	if err != nil {
		return nil, err
	}
	framing, err := cfg.Framing()
	if err != nil {
		return nil, err
	}

	return &RunRequest{
		Mode:       testMode,
		Device:     cfg.Serial.Device,
		Framing:    framing,
		Format:     format,
		Payload:    cfg.Test.Send,
		Interval:   cfg.IntervalDuration(),
		Count:      cfg.Test.Count,
		ScriptPath: cfg.Test.File,
	}, nil
}

// TestService runs one test mode against a device it owns for the run
type TestService struct {
	factory  protocol.Factory
	registry *mode.Registry
	loader   *script.Loader
	runs     repository.RunRepository
	tracker  *observe.Tracker
	sink     observe.Sink
	logger   *utils.ServiceLogger
}

// NewTestService creates a new test service. runs may be nil when no
// history is kept.
func NewTestService(
	factory protocol.Factory,
	registry *mode.Registry,
	loader *script.Loader,
	runs repository.RunRepository,
	tracker *observe.Tracker,
	sink observe.Sink,
	logger *zap.Logger,
) *TestService {
	if tracker == nil {
		tracker = observe.NewTracker()
	}
	if sink == nil {
		sink = observe.Discard
	}
	return &TestService{
		factory:  factory,
		registry: registry,
		loader:   loader,
		runs:     runs,
		tracker:  tracker,
		sink:     sink,
		logger:   utils.NewServiceLogger(logger, "test-service"),
	}
}

// Tracker returns the tracker holding the current run state
func (s *TestService) Tracker() *observe.Tracker {
	return s.tracker
}

// Run validates the request, opens the device, runs the mode and records
// the result. The returned record is nil only when validation fails.
// Cancellation ends the run with status CANCELLED and a nil error.
func (s *TestService) Run(ctx context.Context, req *RunRequest) (*model.RunRecord, error) {
	group, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	m, err := s.registry.Create(req.Mode)
	if err != nil {
		return nil, err
	}

	record := &model.RunRecord{
		ID:        uuid.New(),
		Mode:      req.Mode,
		Device:    req.Device,
		Framing:   req.Framing,
		Format:    req.Format,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now(),
	}
	s.tracker.Begin(record)

	runLogger := utils.NewRunLogger(s.logger.Logger, string(req.Mode), record.ID.String())
	runLogger.Start(
		zap.String("device", req.Device),
		zap.String("framing", req.Framing.String()),
		zap.String("format", string(req.Format)),
	)

	outcome, err := s.execute(ctx, m, req, group, record)
	s.finish(record, outcome, err)

	if err != nil {
		runLogger.Error(err, zap.String("status", string(record.Status)))
	} else {
		runLogger.Success(
			zap.String("status", string(record.Status)),
			zap.Int("sent_bytes", record.Stats.SentBytes),
			zap.Int("received_bytes", record.Stats.ReceivedBytes),
			zap.String("throughput", record.Stats.Throughput().String()),
		)
	}

	s.tracker.Finish(record)
	s.save(record)
	return record, err
}

// execute owns the port for the duration of the mode
func (s *TestService) execute(
	ctx context.Context,
	m mode.Mode,
	req *RunRequest,
	group *model.ScriptGroup,
	record *model.RunRecord,
) (*mode.Outcome, error) {
	port, err := s.factory.Open(ctx, &protocol.SerialConfig{Port: req.Device, Framing: req.Framing})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := port.Close(); err != nil {
			s.logger.Warn("Failed to close device", zap.String("device", req.Device), zap.Error(err))
		}
	}()

	sink := observe.Multi(s.sink, s.tracker)
	sink.Observe(observe.NewEvent(observe.EventInfo,
		fmt.Sprintf("UART device opened: %s, %d, %s", req.Device, req.Framing.Baud, req.Framing.Notation()),
		record.Stats,
	))

	return m.Run(ctx, port, mode.Params{
		Payload:  req.Payload,
		Format:   req.Format,
		Interval: req.Interval,
		Count:    req.Count,
		Script:   group,
		Sink:     sink,
	})
}

// validate rejects a bad request before any device is touched and loads
// the script for file mode
func (s *TestService) validate(req *RunRequest) (*model.ScriptGroup, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty run request", model.ErrConfig)
	}
	if _, err := model.ParseTestMode(string(req.Mode)); err != nil {
		return nil, err
	}
	if !s.registry.IsSupported(req.Mode) {
		return nil, fmt.Errorf("%w: mode %q is not available", model.ErrConfig, req.Mode)
	}
	if _, err := model.ParseOutputFormat(string(req.Format)); err != nil {
		return nil, err
	}
	if req.Device == "" {
		return nil, fmt.Errorf("%w: device is required", model.ErrConfig)
	}
	if err := req.Framing.Validate(); err != nil {
		return nil, err
	}

	switch req.Mode {
	case model.ModeLoopback, model.ModeSend:
		if _, err := codec.EncodePayload(req.Payload, req.Format); err != nil {
			return nil, err
		}
		if req.Mode == model.ModeSend {
			if req.Interval < mode.MinInterval || req.Interval > mode.MaxInterval {
				return nil, fmt.Errorf("%w: invalid interval %s (should be %s-%s)",
					model.ErrConfig, req.Interval, mode.MinInterval, mode.MaxInterval)
			}
			if req.Count < 0 {
				return nil, fmt.Errorf("%w: invalid count %d (should be >= 0)", model.ErrConfig, req.Count)
			}
		}
	case model.ModeFile:
		if req.Script != nil {
			if err := s.loader.Validate(req.Script); err != nil {
				return nil, err
			}
			return req.Script, nil
		}
		if req.ScriptPath == "" {
			return nil, fmt.Errorf("%w: file mode requires a script file", model.ErrConfig)
		}
		return s.loader.Load(req.ScriptPath)
	}

	return nil, nil
}

// finish sets the final status and counters on record
func (s *TestService) finish(record *model.RunRecord, outcome *mode.Outcome, err error) {
	now := time.Now()
	record.CompletedAt = &now
	if outcome != nil {
		record.Stats = outcome.Stats
	}

	switch {
	case err != nil:
		record.Status = model.RunStatusFailed
		msg := err.Error()
		record.ErrorMessage = &msg
	case outcome != nil && outcome.Cancelled:
		record.Status = model.RunStatusCancelled
	default:
		record.Status = model.RunStatusPassed
	}
}

// save records the run; a failed write never fails the run
func (s *TestService) save(record *model.RunRecord) {
	if s.runs == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := s.runs.Save(ctx, record); err != nil {
		s.logger.Error("Failed to save run history",
			zap.String("run_id", record.ID.String()),
			zap.Error(err),
		)
	}
}

