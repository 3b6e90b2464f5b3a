// internal/protocol/protocol.go
package protocol

import (
	"time"
)

// Port is the narrow capability set the test modes drive a serial channel with
type Port interface {
	// Write sends data and returns the number of bytes accepted by the channel.
	// A write in progress always completes; callers check cancellation
	// between writes.
	Write(data []byte) (int, error)

	// Read performs one blocking read bounded by the current read timeout.
	// A timeout is reported as (0, nil).
	Read(p []byte) (int, error)

	// SetReadTimeout bounds how long a single Read waits for data
	SetReadTimeout(timeout time.Duration) error

	// Flush discards anything pending in the input and output buffers
	Flush() error

	// Close releases the channel; later calls are no-ops
	Close() error
}

// ConnectionState tracks the lifecycle of a device handle
type ConnectionState string

const (
	StateClosed ConnectionState = "CLOSED"
	StateReady  ConnectionState = "READY"
	StateFailed ConnectionState = "FAILED"
)

// ProtocolStats provides channel-level statistics
type ProtocolStats struct {
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	OperationCount int64         `json:"operation_count"`
	ErrorCount     int64         `json:"error_count"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}
