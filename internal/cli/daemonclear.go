package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/servinel/daemon/internal/paths"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/spf13/cobra"
)

// newDaemonClearCommand is the operator escape hatch for a wedged daemon:
// it force-kills any process matching the daemon's process-table
// signature and removes a stale socket file.
func newDaemonClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon-clear",
		Short: "Force-kill any stuck daemon process and remove a stale socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			killed, err := killDaemonProcesses()
			if err != nil {
				return err
			}
			for _, pid := range killed {
				fmt.Printf("killed daemon process %d\n", pid)
			}

			dataDir, err := paths.DataDir()
			if err != nil {
				return err
			}
			sockPath := filepath.Join(dataDir, paths.SocketFileName)
			if err := os.Remove(sockPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing socket: %w", err)
			}
			fmt.Println("socket cleared")
			return nil
		},
	}
	return cmd
}

func killDaemonProcesses() ([]int32, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	self := int32(os.Getpid())
	var killed []int32
	for _, p := range procs {
		// This command's own "servinel daemon-clear" command line matches
		// the signature too.
		if p.Pid == self {
			continue
		}
		cmdline, err := p.Cmdline()
		if err != nil {
			continue
		}
		if strings.Contains(cmdline, "servinel") && strings.Contains(cmdline, "daemon") {
			if err := p.Kill(); err == nil {
				killed = append(killed, p.Pid)
			}
		}
	}
	return killed, nil
}
