// internal/model/run.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RunStatus represents how a test run ended
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusPassed    RunStatus = "PASSED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// RunStats holds the counters a test run reports
type RunStats struct {
	Sent          int           `json:"sent"`
	SentBytes     int           `json:"sent_bytes"`
	Received      int           `json:"received"`
	ReceivedBytes int           `json:"received_bytes"`
	Elapsed       time.Duration `json:"elapsed"`
}

// Throughput returns the combined bytes per second, rounded to two places
func (s RunStats) Throughput() decimal.Decimal {
	if s.Elapsed <= 0 {
		return decimal.Zero
	}
	total := decimal.NewFromInt(int64(s.SentBytes + s.ReceivedBytes))
	seconds := decimal.NewFromFloat(s.Elapsed.Seconds())
	return total.DivRound(seconds, 2)
}

// RunRecord describes one invocation of the harness
type RunRecord struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	Mode         TestMode     `json:"mode" db:"mode"`
	Device       string       `json:"device" db:"device"`
	Framing      Framing      `json:"framing" db:"-"`
	Format       OutputFormat `json:"format" db:"format"`
	Status       RunStatus    `json:"status" db:"status"`
	Stats        RunStats     `json:"stats" db:"-"`
	ErrorMessage *string      `json:"error_message,omitempty" db:"error_message"`
	StartedAt    time.Time    `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
}

// IsCompleted checks whether the run has reached a final status
func (r *RunRecord) IsCompleted() bool {
	return r.Status == RunStatusPassed ||
		r.Status == RunStatusFailed ||
		r.Status == RunStatusCancelled
}

// Duration returns the wall time of a completed run
func (r *RunRecord) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
