package console

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"consolefwd/pkg/engine"
	"consolefwd/pkg/model"
)

// DefaultMarker selects which origins are forwarded.
const DefaultMarker = "mirrord"

// Entry is a log event as handed to the Sink. Empty location fields
// are sent as absent.
type Entry struct {
	Level      model.Level
	Target     string
	Message    string
	ModulePath string
	File       string
	Line       uint32
}

// record converts e into its wire form. A zero level is sent as Info
// and invalid UTF-8 is replaced with U+FFFD.
func (e Entry) record() model.Record {
	level := e.Level
	if level == 0 {
		level = model.LevelInfo
	}
	rec := model.Record{
		Metadata: model.Metadata{Level: level, Target: e.Target},
		Message:  e.Message,
	}
	if e.ModulePath != "" {
		rec.ModulePath = &e.ModulePath
	}
	if e.File != "" {
		rec.File = &e.File
	}
	if e.Line != 0 {
		rec.Line = &e.Line
	}
	return rec.Sanitized()
}

// Sink turns entries from any goroutine into queued records.
type Sink struct {
	marker string
	queue  *engine.Queue
	diag   *engine.Diagnostics

	// level, when set, drops entries more verbose than its slog level.
	level slog.Leveler

	rejected atomic.Uint64
}

// NewSink forwards entries whose target contains marker. An empty
// marker selects DefaultMarker.
func NewSink(q *engine.Queue, marker string, diag *engine.Diagnostics) *Sink {
	if marker == "" {
		marker = DefaultMarker
	}
	if diag == nil {
		diag = engine.NewDiagnostics(nil)
	}
	return &Sink{marker: marker, queue: q, diag: diag}
}

// Enabled reports whether records from origin are forwarded.
func (s *Sink) Enabled(origin string) bool {
	return strings.Contains(origin, s.marker)
}

// Log queues entry if its target and level are enabled, blocking
// while the queue is full. It never fails: a forwarder that stopped on
// its own is reported once on the diagnostic channel and the entry is
// discarded. Entries logged after Shutdown are discarded silently.
func (s *Sink) Log(entry Entry) {
	if !s.Enabled(entry.Target) {
		return
	}
	rec := entry.record()
	if s.level != nil && rec.Metadata.Level > toLevel(s.level.Level()) {
		return
	}
	err := s.queue.Push(rec)
	if err == nil {
		return
	}
	s.rejected.Add(1)
	if errors.Is(err, engine.ErrQueueShutdown) {
		return
	}
	s.diag.Terminal("console forwarding stopped", fmt.Errorf("%w: %w", ErrSendFailure, err))
}

// Flush is a no-op; records are written by the delivery loop as they arrive.
func (s *Sink) Flush() {}

// Rejected returns the number of entries discarded because the
// forwarder had stopped.
func (s *Sink) Rejected() uint64 {
	return s.rejected.Load()
}
