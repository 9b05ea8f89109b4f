package cli

import (
	"fmt"

	"github.com/servinel/daemon/internal/ipc/protocol"
	"github.com/spf13/cobra"
)

func newProfilesCommand() *cobra.Command {
	var app string

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List the profiles declared by an app's manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := call(cmd.Context(), protocol.Request{Profiles: &protocol.ProfilesRequest{App: app}})
			if err != nil {
				return err
			}
			if len(resp.Profiles.Profiles) == 0 {
				fmt.Println("No profiles declared")
				return nil
			}
			for _, name := range resp.Profiles.Profiles {
				fmt.Println(name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&app, "app", "", "target app (defaults to the only running app)")

	return cmd
}
