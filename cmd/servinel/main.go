// Command servinel is the CLI front end for the daemon process
// supervisor: it renders Request/Response pairs over the same IPC
// protocol the dashboard speaks, and (via its hidden `daemon`
// subcommand) is also the binary the daemon itself runs as.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/servinel/daemon/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := cli.NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
