// internal/observe/line_sink.go
package observe

import (
	"io"
	"strings"
	"sync"
)

// TimestampLayout is the prefix format used when timestamps are enabled
const TimestampLayout = "2006-01-02 15:04:05.000"

// LineSink writes each observation as text, one event per line
type LineSink struct {
	w          io.Writer
	mu         sync.Mutex
	timestamps bool
}

// NewLineSink creates a sink writing to w, optionally prefixing a timestamp
func NewLineSink(w io.Writer, timestamps bool) *LineSink {
	return &LineSink{
		w:          w,
		timestamps: timestamps,
	}
}

// Observe writes the event line
func (s *LineSink) Observe(event Event) {
	var sb strings.Builder
	if s.timestamps {
		sb.WriteByte('[')
		sb.WriteString(event.Timestamp.Format(TimestampLayout))
		sb.WriteString("] ")
	}
	sb.WriteString(event.Line)
	if !strings.HasSuffix(event.Line, "\n") {
		sb.WriteByte('\n')
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	io.WriteString(s.w, sb.String())
}
