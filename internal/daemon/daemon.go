// Package daemon is the daemon process's top-level entry point: it wires
// the dependency graph via internal/bootstrap, installs signal handling,
// and runs until told to stop.
package daemon

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/servinel/daemon/internal/bootstrap"
	"github.com/servinel/daemon/internal/paths"
)

// Run builds the daemon and serves it until SIGINT/SIGTERM or ctx is
// cancelled. It is the body of the hidden `servinel daemon` subcommand.
func Run(ctx context.Context) error {
	dataDir, err := paths.EnsureDataDir()
	if err != nil {
		return fmt.Errorf("preparing data directory: %w", err)
	}

	d, cleanup, err := bootstrap.InitializeDaemon(dataDir)
	if err != nil {
		return fmt.Errorf("initializing daemon: %w", err)
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return d.Run(ctx)
}
