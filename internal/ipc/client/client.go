// Package client is the client-side IPC runtime: it ensures a daemon is
// reachable (spawning one if needed), then speaks the same newline-JSON
// protocol as the server over a UNIX socket.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/servinel/daemon/internal/ipc/protocol"
	"github.com/servinel/daemon/internal/paths"
	"github.com/shirou/gopsutil/v4/process"
)

const (
	daemonRetryAttempts = 15
	daemonRetryDelay    = 300 * time.Millisecond
	pingTimeout         = 1 * time.Second
)

// ErrDaemonUnreachable is returned when no daemon can be reached or
// started within the retry budget.
var ErrDaemonUnreachable = errors.New("daemon not reachable")

// EnsureDaemon pings for a running daemon, and if none answers, cleans up
// a stale socket, spawns a detached daemon process, and retries until one
// answers or the retry budget is exhausted.
func EnsureDaemon(ctx context.Context) error {
	if _, err := paths.EnsureDataDir(); err != nil {
		return err
	}

	if err := ping(ctx); err == nil {
		return nil
	}

	if err := cleanupStaleSocket(); err != nil {
		return err
	}
	if !daemonProcessRunning() {
		if err := spawnDaemon(); err != nil {
			return fmt.Errorf("spawning daemon: %w", err)
		}
	}

	for i := 0; i < daemonRetryAttempts; i++ {
		if err := ping(ctx); err == nil {
			return nil
		}
		time.Sleep(daemonRetryDelay)
	}
	return ErrDaemonUnreachable
}

func ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	_, err := RequestResponse(ctx, protocol.Request{DashAttach: true})
	return err
}

// Connect dials the daemon's UNIX socket.
func Connect(ctx context.Context) (net.Conn, error) {
	sockPath, err := paths.SocketPath()
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", sockPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDaemonUnreachable, err)
	}
	return conn, nil
}

// RequestResponse sends one request and returns the single response the
// daemon sends back.
func RequestResponse(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	var resp protocol.Response

	conn, err := Connect(ctx)
	if err != nil {
		return resp, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := protocol.NewWriter(conn).WriteRequest(req); err != nil {
		return resp, fmt.Errorf("sending request: %w", err)
	}

	resp, err = protocol.NewReader(conn).ReadResponse()
	if err != nil {
		return resp, fmt.Errorf("%w: %v", ErrDaemonUnreachable, err)
	}
	return resp, nil
}

// StreamLogs sends a Logs request and invokes onChunk for every LogChunk
// the daemon sends, until it sends Ack, an Error, or the connection
// closes.
func StreamLogs(ctx context.Context, req protocol.Request, onChunk func(protocol.LogChunk)) error {
	conn, err := Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	if err := protocol.NewWriter(conn).WriteRequest(req); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}

	reader := protocol.NewReader(conn)
	for {
		resp, err := reader.ReadResponse()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading log stream: %w", err)
		}
		switch {
		case resp.LogChunk != nil:
			onChunk(*resp.LogChunk)
		case resp.Ok:
			return nil
		case resp.Error != nil:
			return errors.New(resp.Error.Message)
		}
	}
}

func cleanupStaleSocket() error {
	sockPath, err := paths.SocketPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(sockPath); err != nil {
		return nil
	}
	if daemonProcessRunning() {
		return nil
	}
	if err := os.Remove(sockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket: %w", err)
	}
	return nil
}

// daemonProcessRunning scans the process table for a servinel daemon,
// using gopsutil so the check works the same across platforms.
func daemonProcessRunning() bool {
	procs, err := process.Processes()
	if err != nil {
		return false
	}
	for _, p := range procs {
		cmdline, err := p.Cmdline()
		if err != nil {
			continue
		}
		if strings.Contains(cmdline, "servinel") && strings.Contains(cmdline, "daemon") {
			return true
		}
	}
	return false
}

// spawnDaemon launches this same executable's hidden `daemon` subcommand,
// detached from the current terminal. Output is discarded unless
// SERVINEL_VERBOSE_DAEMON is "1" or "true" (any case).
func spawnDaemon() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	cmd := exec.Command(exe, "daemon")
	cmd.Stdin = nil
	detach(cmd)

	if verboseDaemon() {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	return cmd.Start()
}

func verboseDaemon() bool {
	val := strings.ToLower(os.Getenv("SERVINEL_VERBOSE_DAEMON"))
	return val == "1" || val == "true"
}
