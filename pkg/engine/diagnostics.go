package engine

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// Diagnostics reports forwarding failures out of band, on a logger that
// never feeds back into the forwarder. Only the first terminal failure
// is written; later ones are counted.
type Diagnostics struct {
	logger *slog.Logger

	once       sync.Once
	reported   atomic.Bool
	suppressed atomic.Uint64
}

// NewDiagnostics writes diagnostic lines to w, or to stderr when w is nil.
func NewDiagnostics(w io.Writer) *Diagnostics {
	if w == nil {
		w = os.Stderr
	}
	return NewDiagnosticsLogger(slog.New(slog.NewTextHandler(w, nil)))
}

// NewDiagnosticsLogger reports through an existing logger.
func NewDiagnosticsLogger(logger *slog.Logger) *Diagnostics {
	return &Diagnostics{logger: logger.With("component", "consolefwd")}
}

// Logger returns the logger used for non-terminal diagnostics.
func (d *Diagnostics) Logger() *slog.Logger {
	return d.logger
}

// Terminal reports a failure that ends forwarding. It returns true if
// this call wrote the line.
func (d *Diagnostics) Terminal(msg string, err error) bool {
	wrote := false
	d.once.Do(func() {
		d.logger.Error(msg, "error", err)
		d.reported.Store(true)
		wrote = true
	})
	if !wrote {
		d.suppressed.Add(1)
	}
	return wrote
}

// Reported reports whether a terminal failure has been written.
func (d *Diagnostics) Reported() bool {
	return d.reported.Load()
}

// Suppressed returns the number of terminal reports after the first.
func (d *Diagnostics) Suppressed() uint64 {
	return d.suppressed.Load()
}
