package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/servinel/daemon/internal/infrastructure/metrics"
	"github.com/servinel/daemon/internal/ipc/protocol"
	"github.com/servinel/daemon/internal/manifest"
	"github.com/servinel/daemon/internal/state"
	"github.com/servinel/daemon/internal/supervisor"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) (string, *state.Store) {
	t.Helper()
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "servinel.sock")

	store := state.NewStore()
	super := supervisor.New(store, &metrics.FakeSampler{})
	srv := New(sockPath, store, super)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)
	t.Cleanup(func() {
		for _, name := range store.AppNames() {
			if app, err := store.App(name); err == nil {
				super.StopAll(app)
			}
		}
		cancel()
		srv.Close()
	})

	return sockPath, store
}

func writeManifest(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, manifest.DefaultFileName)
	content := "app_name: testapp\nservices:\n  - name: web\n    command: \"sh -c 'echo hi; sleep 30'\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestServerPing(t *testing.T) {
	sockPath, _ := startTestServer(t)

	conn, err := dialWithRetry(sockPath)
	require.NoError(t, err)
	defer conn.Close()

	w := protocol.NewWriter(conn)
	r := protocol.NewReader(conn)

	require.NoError(t, w.WriteRequest(protocol.Request{DashAttach: true}))
	resp, err := r.ReadResponse()
	require.NoError(t, err)
	require.True(t, resp.Ok)
}

func TestServerUpAndStatus(t *testing.T) {
	sockPath, store := startTestServer(t)
	dir := t.TempDir()
	path := writeManifest(t, dir)

	conn, err := dialWithRetry(sockPath)
	require.NoError(t, err)
	defer conn.Close()

	w := protocol.NewWriter(conn)
	r := protocol.NewReader(conn)

	require.NoError(t, w.WriteRequest(protocol.Request{Up: &protocol.UpRequest{ComposePath: path}}))
	resp, err := r.ReadResponse()
	require.NoError(t, err)
	require.Nil(t, resp.Error)

	require.Eventually(t, func() bool {
		app, err := store.App("testapp")
		return err == nil && app.Services["web"].Status == state.Running
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServerStatusWithoutAppRejectsNonAllSelector(t *testing.T) {
	sockPath, _ := startTestServer(t)

	conn, err := dialWithRetry(sockPath)
	require.NoError(t, err)
	defer conn.Close()

	w := protocol.NewWriter(conn)
	r := protocol.NewReader(conn)

	req := protocol.Request{Status: &protocol.StatusRequest{
		Selector: protocol.ServiceSelector{Service: "web"},
	}}
	require.NoError(t, w.WriteRequest(req))
	resp, err := r.ReadResponse()
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	require.Contains(t, resp.Error.Message, "selector")
}

// roundTrip opens a fresh connection for one request/response exchange,
// the way the client runtime does: the server handles exactly one
// request per connection.
func roundTrip(t *testing.T, sockPath string, req protocol.Request) protocol.Response {
	t.Helper()
	conn, err := dialWithRetry(sockPath)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, protocol.NewWriter(conn).WriteRequest(req))
	resp, err := protocol.NewReader(conn).ReadResponse()
	require.NoError(t, err)
	return resp
}

func TestServerStopUnknownServiceReturnsNotFound(t *testing.T) {
	sockPath, _ := startTestServer(t)
	dir := t.TempDir()
	path := writeManifest(t, dir)

	resp := roundTrip(t, sockPath, protocol.Request{Up: &protocol.UpRequest{ComposePath: path}})
	require.Nil(t, resp.Error)

	resp = roundTrip(t, sockPath, protocol.Request{Stop: &protocol.SelectorRequest{
		App:      "testapp",
		Selector: protocol.ServiceSelector{Service: "ghost"},
	}})
	require.NotNil(t, resp.Error)
	require.Contains(t, resp.Error.Message, "service not found")
}

func TestServerLogsTailThenAck(t *testing.T) {
	sockPath, store := startTestServer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, manifest.DefaultFileName)
	content := "app_name: testapp\nservices:\n  - name: web\n    command: \"sh -c 'for i in 1 2 3; do echo line$i; done; sleep 30'\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	resp := roundTrip(t, sockPath, protocol.Request{Up: &protocol.UpRequest{ComposePath: path}})
	require.Nil(t, resp.Error)

	require.Eventually(t, func() bool {
		entries, err := store.ServiceHistory("testapp", "web", nil)
		return err == nil && len(entries) == 3
	}, 2*time.Second, 10*time.Millisecond)

	conn, err := dialWithRetry(sockPath)
	require.NoError(t, err)
	defer conn.Close()

	tail := 2
	req := protocol.Request{Logs: &protocol.LogsRequest{
		App:      "testapp",
		Selector: protocol.ServiceSelector{Service: "web"},
		Tail:     &tail,
	}}
	require.NoError(t, protocol.NewWriter(conn).WriteRequest(req))

	r := protocol.NewReader(conn)
	var lines []string
	for {
		resp, err := r.ReadResponse()
		require.NoError(t, err)
		if resp.Ok {
			break
		}
		require.NotNil(t, resp.LogChunk)
		lines = append(lines, resp.LogChunk.Entry.Line)
	}
	require.Equal(t, []string{"line2", "line3"}, lines)
}

func TestServerStartWithFileHonorsSelector(t *testing.T) {
	sockPath, store := startTestServer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, manifest.DefaultFileName)
	content := "app_name: testapp\nservices:\n  - name: web\n    command: \"sleep 30\"\n  - name: worker\n    command: \"sleep 30\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	resp := roundTrip(t, sockPath, protocol.Request{Start: &protocol.StartRequest{
		File:     path,
		Selector: protocol.ServiceSelector{Service: "web"},
	}})
	require.Nil(t, resp.Error)

	require.Eventually(t, func() bool {
		app, err := store.App("testapp")
		return err == nil && app.Services["web"].Status == state.Running
	}, 2*time.Second, 10*time.Millisecond)

	// The file load must not widen the selection: worker stays down.
	app, err := store.App("testapp")
	require.NoError(t, err)
	require.Equal(t, state.Stopped, app.Services["worker"].Status)
	require.Nil(t, app.Services["worker"].PID)
}

func TestServerProfiles(t *testing.T) {
	sockPath, _ := startTestServer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, manifest.DefaultFileName)
	content := "app_name: testapp\nservices:\n  - name: web\n    command: \"sleep 30\"\nprofiles:\n  backend:\n    - web\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	resp := roundTrip(t, sockPath, protocol.Request{Up: &protocol.UpRequest{ComposePath: path, Profile: "backend"}})
	require.Nil(t, resp.Error)

	resp = roundTrip(t, sockPath, protocol.Request{Profiles: &protocol.ProfilesRequest{App: "testapp"}})
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Profiles)
	require.Equal(t, []string{"backend"}, resp.Profiles.Profiles)
}
