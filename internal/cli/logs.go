package cli

import (
	"fmt"

	ipcclient "github.com/servinel/daemon/internal/ipc/client"
	"github.com/servinel/daemon/internal/ipc/protocol"
	"github.com/spf13/cobra"
)

func newLogsCommand() *cobra.Command {
	var app string
	var follow, merged bool
	var tail int
	sel := selectorFlags{}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show (and optionally follow) a service's captured output",
		RunE: func(cmd *cobra.Command, args []string) error {
			selector, err := sel.selector()
			if err != nil {
				return err
			}
			if err := ipcclient.EnsureDaemon(cmd.Context()); err != nil {
				return err
			}

			req := protocol.Request{Logs: &protocol.LogsRequest{
				App:      app,
				Selector: selector,
				Follow:   follow,
				Merged:   merged,
			}}
			if cmd.Flags().Changed("tail") {
				req.Logs.Tail = &tail
			}

			return ipcclient.StreamLogs(cmd.Context(), req, func(chunk protocol.LogChunk) {
				prefix := chunk.Service
				if merged {
					prefix = chunk.App + "/" + chunk.Service
				}
				fmt.Printf("%s | %s\n", prefix, chunk.Entry.Line)
			})
		},
	}

	cmd.Flags().StringVar(&app, "app", "", "target app (defaults to the only running app)")
	cmd.Flags().BoolVar(&follow, "follow", false, "keep streaming new lines as they arrive")
	cmd.Flags().IntVar(&tail, "tail", 0, "number of historical lines per service (default: every buffered line)")
	cmd.Flags().BoolVar(&merged, "merged", true, "prefix each line with app/service instead of just service")
	sel.register(cmd)

	return cmd
}
