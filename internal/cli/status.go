package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/servinel/daemon/internal/ipc/protocol"
	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	var app string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of every tracked service",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := call(cmd.Context(), protocol.Request{Status: &protocol.StatusRequest{App: app}})
			if err != nil {
				return err
			}
			printStatus(*resp.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&app, "app", "", "limit to one app")

	return cmd
}

func printStatus(snap protocol.StatusSnapshot) {
	if len(snap.Apps) == 0 {
		fmt.Println("No apps registered")
		return
	}

	for _, app := range snap.Apps {
		fmt.Printf("%s\n", app.AppName)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  SERVICE\tSTATUS\tPID\tUPTIME\tCPU\tMEM\tEXIT")
		for _, svc := range app.Services {
			pid := "-"
			if svc.PID != nil {
				pid = fmt.Sprintf("%d", *svc.PID)
			}
			uptime := "-"
			if svc.UptimeSecs != nil {
				uptime = fmt.Sprintf("%ds", *svc.UptimeSecs)
			}
			exit := "-"
			if svc.ExitCode != nil {
				exit = fmt.Sprintf("%d", *svc.ExitCode)
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%.1f%%\t%s\t%s\n",
				svc.Name, svc.Status, pid, uptime, svc.Metrics.CPU, humanBytes(svc.Metrics.Memory), exit)
		}
		w.Flush()
	}

	fmt.Printf("\nsystem  cpu=%.1f%%  mem=%s/%s\n",
		snap.SystemCPU, humanBytes(snap.SystemMemoryUsed), humanBytes(snap.SystemMemoryTotal))
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
