// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"uart-assist/internal/model"
)

// Opener opens a serial device with the given mode
type Opener func(path string, mode *serial.Mode) (serial.Port, error)

// SerialConnection implements Port on top of go.bug.st/serial
type SerialConnection struct {
	config   *SerialConfig
	opener   Opener
	port     serial.Port
	logger   *zap.Logger
	mutex    sync.RWMutex
	state    ConnectionState
	released bool
	stats    *ProtocolStats
}

// NewSerialConnection creates a new serial connection in the Closed state
func NewSerialConnection(config *SerialConfig, opener Opener, logger *zap.Logger) *SerialConnection {
	if opener == nil {
		opener = serial.Open
	}
	return &SerialConnection{
		config: config,
		opener: opener,
		logger: logger.With(
			zap.String("protocol", "serial"),
			zap.String("port", config.Port),
		),
		state: StateClosed,
		stats: &ProtocolStats{},
	}
}

// Open opens the device and programs the framing. A released connection
// cannot be opened again.
func (sc *SerialConnection) Open(ctx context.Context) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.released {
		return fmt.Errorf("%w: connection already released", model.ErrDevice)
	}
	if sc.state == StateReady {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	mode, err := sc.config.SerialMode()
	if err != nil {
		return err
	}

	sc.logger.Debug("Opening serial port",
		zap.Int("baud_rate", mode.BaudRate),
		zap.String("framing", sc.config.Framing.Notation()),
	)

	port, err := sc.opener(sc.config.Port, mode)
	if err != nil {
		sc.state = StateFailed
		sc.logger.Error("Failed to open serial port", zap.Error(err))
		return fmt.Errorf("%w: failed to open %s: %v", model.ErrDevice, sc.config.Port, err)
	}

	sc.port = port
	sc.state = StateReady
	sc.stats.IsConnected = true
	sc.stats.LastActivity = time.Now()

	sc.logger.Debug("Serial port opened successfully")
	return nil
}

// Close releases the device. Only the first call does any work.
func (sc *SerialConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.released {
		return nil
	}
	sc.released = true
	sc.stats.IsConnected = false

	if sc.port == nil {
		sc.state = StateClosed
		return nil
	}

	err := sc.port.Close()
	sc.port = nil
	sc.state = StateClosed
	if err != nil {
		sc.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("%w: failed to close serial port: %v", model.ErrDevice, err)
	}

	sc.logger.Debug("Serial port closed")
	return nil
}

// State returns the current lifecycle state
func (sc *SerialConnection) State() ConnectionState {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.state
}

// Stats returns a copy of the channel statistics
func (sc *SerialConnection) Stats() ProtocolStats {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return *sc.stats
}

// Write writes data to the serial port
func (sc *SerialConnection) Write(data []byte) (int, error) {
	port, err := sc.readyPort()
	if err != nil {
		return 0, err
	}

	startTime := time.Now()
	n, err := port.Write(data)
	if err != nil {
		sc.fail()
		sc.logger.Error("Serial write failed", zap.Error(err))
		return n, fmt.Errorf("%w: failed to write to serial port: %v", model.ErrDevice, err)
	}

	sc.mutex.Lock()
	sc.stats.BytesWritten += int64(n)
	sc.stats.OperationCount++
	sc.stats.LastActivity = time.Now()
	sc.updateAverageLatency(time.Since(startTime))
	sc.mutex.Unlock()

	sc.logger.Debug("Serial write completed",
		zap.Int("bytes", n),
		zap.Binary("data", data[:n]),
	)
	return n, nil
}

// Read performs one read bounded by the configured read timeout. The lock is
// not held across the blocking call so Close can interrupt it.
func (sc *SerialConnection) Read(p []byte) (int, error) {
	port, err := sc.readyPort()
	if err != nil {
		return 0, err
	}

	n, err := port.Read(p)
	if err != nil {
		sc.fail()
		return n, fmt.Errorf("%w: failed to read from serial port: %v", model.ErrDevice, err)
	}

	if n > 0 {
		sc.mutex.Lock()
		sc.stats.BytesRead += int64(n)
		sc.stats.OperationCount++
		sc.stats.LastActivity = time.Now()
		sc.mutex.Unlock()

		sc.logger.Debug("Serial read completed",
			zap.Int("bytes", n),
			zap.Binary("data", p[:n]),
		)
	}
	return n, nil
}

// SetReadTimeout bounds how long the next Read blocks
func (sc *SerialConnection) SetReadTimeout(timeout time.Duration) error {
	port, err := sc.readyPort()
	if err != nil {
		return err
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		sc.fail()
		return fmt.Errorf("%w: failed to set read timeout: %v", model.ErrDevice, err)
	}
	return nil
}

// Flush discards pending input and output
func (sc *SerialConnection) Flush() error {
	port, err := sc.readyPort()
	if err != nil {
		return err
	}
	if err := port.ResetInputBuffer(); err != nil {
		sc.fail()
		return fmt.Errorf("%w: failed to flush input buffer: %v", model.ErrDevice, err)
	}
	if err := port.ResetOutputBuffer(); err != nil {
		sc.fail()
		return fmt.Errorf("%w: failed to flush output buffer: %v", model.ErrDevice, err)
	}
	return nil
}

func (sc *SerialConnection) readyPort() (serial.Port, error) {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()

	if sc.state != StateReady || sc.port == nil {
		return nil, fmt.Errorf("%w: serial port not ready (state %s)", model.ErrDevice, sc.state)
	}
	return sc.port, nil
}

func (sc *SerialConnection) fail() {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	sc.stats.ErrorCount++
	if sc.state == StateReady {
		sc.state = StateFailed
	}
}

// updateAverageLatency updates the running average latency
func (sc *SerialConnection) updateAverageLatency(newLatency time.Duration) {
	if sc.stats.AverageLatency == 0 {
		sc.stats.AverageLatency = newLatency
	} else {
		sc.stats.AverageLatency = (sc.stats.AverageLatency + newLatency) / 2
	}
}
