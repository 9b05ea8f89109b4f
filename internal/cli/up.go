package cli

import (
	"github.com/servinel/daemon/internal/ipc/protocol"
	"github.com/spf13/cobra"
)

func newUpCommand() *cobra.Command {
	var file, profile string

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Load a manifest and start its services",
		Long: `up registers the app declared by a manifest file (servinel-compose.yaml
by default, discovered in the current directory) and starts every
service it declares, or just the services of one profile.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveComposePath(file)
			if err != nil {
				return err
			}
			_, err = call(cmd.Context(), protocol.Request{
				Up: &protocol.UpRequest{ComposePath: path, Profile: profile},
			})
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "manifest path (default: servinel-compose.yaml in cwd)")
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "start only this profile's services")

	return cmd
}
