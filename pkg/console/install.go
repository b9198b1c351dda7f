package console

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

var (
	installMu sync.Mutex
	installed *Forwarder
)

// Init connects to the console at address and installs the forwarder
// as the process-wide logger. It can succeed once per process; later
// calls return a *SetLoggerError.
func Init(ctx context.Context, address string, opts ...Option) error {
	f, err := New(ctx, address, opts...)
	if err != nil {
		return err
	}
	if err := Install(f); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = f.Shutdown(shutdownCtx)
		return err
	}
	return nil
}

// Install makes f the process-wide logger: slog.Default forwards
// through it at every level down to LevelTrace.
func Install(f *Forwarder) error {
	installMu.Lock()
	defer installMu.Unlock()

	if installed != nil {
		return &SetLoggerError{}
	}
	installed = f
	f.Level().Set(LevelTrace)
	slog.SetDefault(f.Logger())
	return nil
}

// Installed returns the forwarder set by Init or Install, or nil.
func Installed() *Forwarder {
	installMu.Lock()
	defer installMu.Unlock()
	return installed
}
