package cli

import (
	"github.com/servinel/daemon/internal/ipc/protocol"
	"github.com/spf13/cobra"
)

func newStartCommand() *cobra.Command {
	var file, app string
	sel := selectorFlags{}

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start one or more services of a registered (or freshly loaded) app",
		RunE: func(cmd *cobra.Command, args []string) error {
			selector, err := sel.selector()
			if err != nil {
				return err
			}
			req := protocol.StartRequest{App: app, Selector: selector}
			if file != "" {
				path, err := resolveComposePath(file)
				if err != nil {
					return err
				}
				req.File = path
			}
			_, err = call(cmd.Context(), protocol.Request{Start: &req})
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "load this manifest first (mirrors up)")
	cmd.Flags().StringVar(&app, "app", "", "target app (defaults to the only running app)")
	sel.register(cmd)

	return cmd
}
