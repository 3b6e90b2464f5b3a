// internal/observe/event.go
package observe

import (
	"time"

	"uart-assist/internal/model"
)

// EventKind classifies an observation
type EventKind string

const (
	EventInfo     EventKind = "info"
	EventProgress EventKind = "progress"
	EventWaiting  EventKind = "waiting"
	EventData     EventKind = "data"
	EventResult   EventKind = "result"
	EventError    EventKind = "error"
)

// Event is one human-readable observation emitted by a running test
type Event struct {
	Kind      EventKind      `json:"kind"`
	Line      string         `json:"line"`
	Stats     model.RunStats `json:"stats"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent creates an event stamped with the current time
func NewEvent(kind EventKind, line string, stats model.RunStats) Event {
	return Event{
		Kind:      kind,
		Line:      line,
		Stats:     stats,
		Timestamp: time.Now(),
	}
}

// Sink receives observations
type Sink interface {
	Observe(event Event)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(event Event)

// Observe calls f(event)
func (f SinkFunc) Observe(event Event) {
	f(event)
}

// Discard drops every observation
var Discard Sink = SinkFunc(func(Event) {})

type multiSink []Sink

func (m multiSink) Observe(event Event) {
	for _, s := range m {
		s.Observe(event)
	}
}

// Multi fans each observation out to every non-nil sink in order
func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
