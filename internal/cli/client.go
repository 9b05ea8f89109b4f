package cli

import (
	"context"
	"fmt"
	"path/filepath"

	ipcclient "github.com/servinel/daemon/internal/ipc/client"
	"github.com/servinel/daemon/internal/ipc/protocol"
	"github.com/servinel/daemon/internal/manifest"
)

// call ensures a daemon is reachable (auto-spawning one if needed) and
// sends req, returning an error if the daemon itself reported one.
func call(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if err := ipcclient.EnsureDaemon(ctx); err != nil {
		return protocol.Response{}, err
	}
	resp, err := ipcclient.RequestResponse(ctx, req)
	if err != nil {
		return resp, err
	}
	if resp.Error != nil {
		return resp, fmt.Errorf("%s", resp.Error.Message)
	}
	return resp, nil
}

// resolveComposePath absolutizes an explicit --file, or discovers the
// default manifest in the invoker's directory. Resolution has to happen
// here: the daemon's own working directory is not the user's, so a
// relative path sent over the wire would point somewhere else entirely.
func resolveComposePath(file string) (string, error) {
	if file != "" {
		return filepath.Abs(file)
	}
	path, ok, err := manifest.FindCompose()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no %s found in current directory", manifest.DefaultFileName)
	}
	return path, nil
}
