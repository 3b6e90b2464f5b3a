// internal/repository/memory_repository.go
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"uart-assist/internal/model"
)

// memoryRepository keeps run history for the lifetime of the process
type memoryRepository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*model.RunRecord
}

// NewMemoryRepository creates a process-local run repository
func NewMemoryRepository() RunRepository {
	return &memoryRepository{
		runs: make(map[uuid.UUID]*model.RunRecord),
	}
}

func (r *memoryRepository) Save(ctx context.Context, run *model.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *run
	r.runs[run.ID] = &stored
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	found := *run
	return &found, nil
}

func (r *memoryRepository) List(ctx context.Context, filter *RunFilter) ([]*model.RunRecord, int, error) {
	if filter == nil {
		filter = &RunFilter{}
	}
	filter.Normalize()

	r.mu.RLock()
	matched := make([]*model.RunRecord, 0, len(r.runs))
	for _, run := range r.runs {
		if filter.Matches(run) {
			copied := *run
			matched = append(matched, &copied)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	total := len(matched)
	start := filter.Offset()
	if start >= total {
		return []*model.RunRecord{}, total, nil
	}
	end := start + filter.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *memoryRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, run := range r.runs {
		if run.StartedAt.Before(olderThan) {
			delete(r.runs, id)
			deleted++
		}
	}
	return deleted, nil
}
