package cli

import (
	"github.com/servinel/daemon/internal/dash"
	ipcclient "github.com/servinel/daemon/internal/ipc/client"
	"github.com/spf13/cobra"
)

func newDashCommand() *cobra.Command {
	var app string

	cmd := &cobra.Command{
		Use:   "dash",
		Short: "Open the interactive terminal dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ipcclient.EnsureDaemon(cmd.Context()); err != nil {
				return err
			}
			return dash.Run(cmd.Context(), app)
		},
	}

	cmd.Flags().StringVar(&app, "app", "", "limit the dashboard to one app")

	return cmd
}
