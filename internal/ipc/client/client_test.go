package client_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/servinel/daemon/internal/infrastructure/metrics"
	"github.com/servinel/daemon/internal/ipc/client"
	"github.com/servinel/daemon/internal/ipc/protocol"
	"github.com/servinel/daemon/internal/ipc/server"
	"github.com/servinel/daemon/internal/paths"
	"github.com/servinel/daemon/internal/state"
	"github.com/servinel/daemon/internal/supervisor"
	"github.com/stretchr/testify/require"
)

// withTestSocket points paths.SocketPath at a temp dir via HOME, so the
// client talks to an isolated daemon per test.
func withTestSocket(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	dataDir := filepath.Join(home, ".servinel")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
}

func startServer(t *testing.T) {
	t.Helper()
	sockPath, err := paths.SocketPath()
	require.NoError(t, err)

	store := state.NewStore()
	super := supervisor.New(store, &metrics.FakeSampler{})
	srv := server.New(sockPath, store, super)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
}

func TestRequestResponsePing(t *testing.T) {
	withTestSocket(t)
	startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.RequestResponse(ctx, protocol.Request{DashAttach: true})
	require.NoError(t, err)
	require.True(t, resp.Ok)
}

func TestEnsureDaemonSucceedsWhenAlreadyRunning(t *testing.T) {
	withTestSocket(t)
	startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, client.EnsureDaemon(ctx))
}
