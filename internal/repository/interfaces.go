// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"uart-assist/internal/model"
)

// ErrRunNotFound is returned when no run matches the requested id
var ErrRunNotFound = errors.New("run not found")

// RunRepository defines run history data access operations
type RunRepository interface {
	// Save inserts the record, or replaces it when the id already exists
	Save(ctx context.Context, run *model.RunRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.RunRecord, error)

	// Listing and filtering
	List(ctx context.Context, filter *RunFilter) ([]*model.RunRecord, int, error)

	// Cleanup
	DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
}

// RunFilter represents run listing filters
type RunFilter struct {
	Mode    *model.TestMode  `json:"mode,omitempty"`
	Device  *string          `json:"device,omitempty"`
	Status  *model.RunStatus `json:"status,omitempty"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
}

const (
	defaultPerPage = 20
	maxPerPage     = 200
)

// Normalize clamps paging values into range
func (f *RunFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = defaultPerPage
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}
}

// Offset returns the number of rows skipped before the current page
func (f *RunFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

// Matches reports whether run passes every set criterion
func (f *RunFilter) Matches(run *model.RunRecord) bool {
	if f.Mode != nil && run.Mode != *f.Mode {
		return false
	}
	if f.Device != nil && run.Device != *f.Device {
		return false
	}
	if f.Status != nil && run.Status != *f.Status {
		return false
	}
	return true
}
