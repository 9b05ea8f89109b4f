package cli

import (
	"github.com/servinel/daemon/internal/daemon"
	"github.com/spf13/cobra"
)

// newDaemonCommand is the hidden subcommand the client runtime spawns
// when no daemon is reachable.
func newDaemonCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "daemon",
		Short:  "Run the servinel supervisor daemon in the foreground",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return daemon.Run(cmd.Context())
		},
	}
}
