package launcher

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// RunWithSignals runs l.Run under a context cancelled by SIGINT/SIGTERM, so
// callers (cmd/launcher) get graceful child shutdown on Ctrl-C or a TERM
// from their process supervisor.
func (l *Launcher) RunWithSignals(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return l.Run(ctx)
}
