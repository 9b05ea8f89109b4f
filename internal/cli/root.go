// Package cli is the command-line front end: it produces Request values,
// sends them to the daemon over internal/ipc/client, and renders the
// Responses.
package cli

import (
	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags.
var version = "dev"

// NewRootCommand builds the servinel command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "servinel",
		Short:         "Local process orchestrator for long-lived services",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newUpCommand(),
		newStartCommand(),
		newStopCommand(),
		newRestartCommand(),
		newStatusCommand(),
		newProfilesCommand(),
		newLogsCommand(),
		newDashCommand(),
		newDoctorCommand(),
		newDaemonClearCommand(),
		newDaemonCommand(),
	)

	return root
}
