// internal/observe/tracker.go
package observe

import (
	"sync"

	"uart-assist/internal/model"
)

// Tracker keeps the latest state of the current run for readers such as
// the monitor endpoints
type Tracker struct {
	mu       sync.RWMutex
	record   *model.RunRecord
	stats    model.RunStats
	lastLine string
	events   int
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

// Begin starts tracking a new run
func (t *Tracker) Begin(record *model.RunRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cp := *record
	t.record = &cp
	t.stats = record.Stats
	t.lastLine = ""
	t.events = 0
}

// Observe records the stats carried by an event
func (t *Tracker) Observe(event Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats = event.Stats
	t.lastLine = event.Line
	t.events++
}

// Finish stores the final record of the run
func (t *Tracker) Finish(record *model.RunRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cp := *record
	t.record = &cp
	t.stats = record.Stats
}

// Snapshot is a point-in-time copy of the tracked run
type Snapshot struct {
	Record   *model.RunRecord `json:"record"`
	Stats    model.RunStats   `json:"stats"`
	LastLine string           `json:"last_line"`
	Events   int              `json:"events"`
}

// Snapshot returns a copy of the tracked state; Record is nil before any run
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{
		Stats:    t.stats,
		LastLine: t.lastLine,
		Events:   t.events,
	}
	if t.record != nil {
		cp := *t.record
		cp.Stats = t.stats
		snap.Record = &cp
	}
	return snap
}
