package console

import (
	"context"
	"log"
	"log/slog"
	"testing"
	"time"
)

// resetInstalled clears the process-wide forwarder and restores the
// default loggers when the test ends.
func resetInstalled(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	prevOut, prevFlags := log.Writer(), log.Flags()
	t.Cleanup(func() {
		installMu.Lock()
		f := installed
		installed = nil
		installMu.Unlock()
		if f != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = f.Shutdown(ctx)
		}
		slog.SetDefault(prev)
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
}
