package cli

import (
	"fmt"

	"github.com/servinel/daemon/internal/ipc/protocol"
	"github.com/spf13/cobra"
)

// selectorFlags holds the --service/--profile flags shared by the
// commands that act on a subset of an app's services.
type selectorFlags struct {
	services []string
	profile  string
}

func (f *selectorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.services, "service", nil, "target one or more services by name (repeatable)")
	cmd.Flags().StringVar(&f.profile, "profile", "", "target every service in a named profile")
}

// selector resolves the parsed flags to a wire ServiceSelector, defaulting
// to All when neither --service nor --profile was given.
func (f *selectorFlags) selector() (protocol.ServiceSelector, error) {
	if len(f.services) > 0 && f.profile != "" {
		return protocol.ServiceSelector{}, fmt.Errorf("--service and --profile are mutually exclusive")
	}
	switch {
	case len(f.services) == 1:
		return protocol.ServiceSelector{Service: f.services[0]}, nil
	case len(f.services) > 1:
		return protocol.ServiceSelector{Services: f.services}, nil
	case f.profile != "":
		return protocol.ServiceSelector{Profile: f.profile}, nil
	default:
		return protocol.ServiceSelector{All: true}, nil
	}
}
