// internal/protocol/factory.go
package protocol

import (
	"context"

	"go.uber.org/zap"
)

// Factory creates the device handle a test run owns
type Factory interface {
	// Open opens and configures a port. On error nothing is left open.
	Open(ctx context.Context, config *SerialConfig) (Port, error)
}

// SerialFactory opens real serial devices
type SerialFactory struct {
	opener Opener
	logger *zap.Logger
}

// NewSerialFactory creates a factory; a nil opener uses serial.Open
func NewSerialFactory(opener Opener, logger *zap.Logger) *SerialFactory {
	return &SerialFactory{
		opener: opener,
		logger: logger,
	}
}

// Open validates the configuration, then opens and configures the device
func (f *SerialFactory) Open(ctx context.Context, config *SerialConfig) (Port, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	conn := NewSerialConnection(config, f.opener, f.logger)
	if err := conn.Open(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	f.logger.Info("Serial port ready",
		zap.String("port", config.Port),
		zap.String("framing", config.Framing.String()),
	)
	return conn, nil
}
