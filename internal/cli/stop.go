package cli

import (
	"github.com/servinel/daemon/internal/ipc/protocol"
	"github.com/spf13/cobra"
)

func newStopCommand() *cobra.Command {
	var app string
	sel := selectorFlags{}

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop one or more services",
		RunE: func(cmd *cobra.Command, args []string) error {
			selector, err := sel.selector()
			if err != nil {
				return err
			}
			_, err = call(cmd.Context(), protocol.Request{
				Stop: &protocol.SelectorRequest{App: app, Selector: selector},
			})
			return err
		},
	}

	cmd.Flags().StringVar(&app, "app", "", "target app (defaults to the only running app)")
	sel.register(cmd)

	return cmd
}
