package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/servinel/daemon/internal/infrastructure/metrics/history"
	ipcclient "github.com/servinel/daemon/internal/ipc/client"
	"github.com/servinel/daemon/internal/ipc/protocol"
	"github.com/servinel/daemon/internal/paths"
	"github.com/spf13/cobra"
)

// trendSamples bounds how many recent points doctor prints per service.
const trendSamples = 5

// newDoctorCommand reports the daemon's data directory, whether its socket
// file exists, and whether it answers a ping, for debugging a daemon that
// won't answer. It does not inspect the process table.
func newDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the daemon's socket and reachability state",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, err := paths.DataDir()
			if err != nil {
				return err
			}
			sockPath := filepath.Join(dataDir, paths.SocketFileName)

			fmt.Printf("data dir:    %s\n", dataDir)
			fmt.Printf("socket:      %s ", sockPath)
			if _, err := os.Stat(sockPath); err == nil {
				fmt.Println("(exists)")
			} else {
				fmt.Println("(absent)")
			}

			ctx := cmd.Context()
			resp, err := ipcclient.RequestResponse(ctx, protocol.Request{DashAttach: true})
			if err != nil {
				fmt.Println("daemon:      unreachable")
				return nil
			}
			if resp.Error != nil {
				fmt.Printf("daemon:      responded with error: %s\n", resp.Error.Message)
				return nil
			}
			fmt.Println("daemon:      reachable")

			status, err := ipcclient.RequestResponse(ctx, protocol.Request{Status: &protocol.StatusRequest{}})
			if err == nil && status.Status != nil {
				fmt.Printf("apps:        %d\n", len(status.Status.Apps))
				hist, histErr := history.OpenReadOnly(filepath.Join(dataDir, "metrics.db"))
				if histErr == nil {
					defer hist.Close()
				}
				for _, app := range status.Status.Apps {
					fmt.Printf("  %s: %d services\n", app.AppName, len(app.Services))
					if hist == nil {
						continue
					}
					for _, svc := range app.Services {
						printTrend(hist, app.AppName, svc.Name)
					}
				}
			}
			return nil
		},
	}
	return cmd
}

// printTrend renders a service's recent CPU/memory samples, read from the
// bbolt-backed trend store the supervisor's refresh tick writes to.
func printTrend(hist *history.Store, app, service string) {
	samples, err := hist.Recent(app, service, trendSamples)
	if err != nil || len(samples) == 0 {
		return
	}
	fmt.Printf("    %s trend:", service)
	for _, s := range samples {
		fmt.Printf("  %.1f%%/%s", s.CPU, humanBytes(s.Memory))
	}
	fmt.Println()
}
