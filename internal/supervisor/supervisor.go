// Package supervisor owns the lifecycle of child processes: starting them
// under their own process group, pumping their stdout/stderr into the log
// buffer and each service's broadcast sender, reaping them, and
// periodically sampling resource usage. It never blocks on network or
// child I/O while holding the state store's guard.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/servinel/daemon/internal/infrastructure/metrics"
	"github.com/servinel/daemon/internal/infrastructure/metrics/history"
	"github.com/servinel/daemon/internal/infrastructure/process"
	"github.com/servinel/daemon/internal/logbuf"
	"github.com/servinel/daemon/internal/manifest"
	"github.com/servinel/daemon/internal/state"
)

// refreshInterval is how often the supervisor samples resource usage for
// every running service.
const refreshInterval = 800 * time.Millisecond

// shutdownGrace bounds how long StopService waits for the reap to settle.
// The group only ever gets SIGKILL, so this is purely a wait budget, not
// a second softer signal.
const shutdownGrace = 5 * time.Second

type runningProc struct {
	cmd    *exec.Cmd
	pid    int
	logTx  *Broadcaster
	exited chan struct{}

	// stopping is set by StopService before it signals the group, so
	// waitForExit can tell a deliberate stop from a natural exit and
	// leave the final status/exit-code write to StopService. Guarded by
	// Supervisor.mu.
	stopping bool
}

// Supervisor starts, stops, and monitors the services of every registered
// app, reflecting their lifecycle into a Store. Each runtime entry owns
// the broadcast sender for its service's live log entries.
type Supervisor struct {
	store   *state.Store
	sampler metrics.Sampler
	history *history.Store

	mu      sync.Mutex
	running map[string]*runningProc // key: app + "/" + service
}

// New builds a Supervisor bound to store for state and sampler for
// resource sampling.
func New(store *state.Store, sampler metrics.Sampler) *Supervisor {
	return &Supervisor{
		store:   store,
		sampler: sampler,
		running: make(map[string]*runningProc),
	}
}

func procKey(app, service string) string {
	return app + "/" + service
}

// SetHistory attaches the optional trend recorder the `doctor` subcommand
// reads; when set, every refresh tick appends a sample per running
// service alongside the live ServiceMetrics update.
func (sv *Supervisor) SetHistory(h *history.Store) {
	sv.history = h
}

// StartService launches cfg's command under app, records its PID and start
// time, and begins pumping its output. It is a no-op if the service is
// already running: the table lock is held from the exists-check through
// spawn and insert, so two racing starts can never create two children
// for the same key.
func (sv *Supervisor) StartService(app string, cfg manifest.ServiceConfig) error {
	key := procKey(app, cfg.Name)

	workdir := cfg.WorkingDirectory
	if workdir == "" {
		if cwd, err := os.Getwd(); err == nil {
			workdir = cwd
		}
	}
	cmd := process.BuildCommand(cfg.Command, workdir)

	sv.mu.Lock()
	if _, alive := sv.running[key]; alive {
		sv.mu.Unlock()
		return nil
	}

	// Only now is it safe to clean up a recorded pid: the key has no live
	// runtime, so any group still alive under that pid is an orphan from
	// an earlier daemon lifetime, not a child we supervise.
	sv.killOrphan(app, cfg.Name)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		sv.mu.Unlock()
		return fmt.Errorf("opening stdout for %s: %w", cfg.Name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		sv.mu.Unlock()
		return fmt.Errorf("opening stderr for %s: %w", cfg.Name, err)
	}

	if err := cmd.Start(); err != nil {
		sv.mu.Unlock()
		_ = sv.store.UpdateServiceStatus(app, cfg.Name, state.Exited)
		return fmt.Errorf("starting %s: %w", cfg.Name, err)
	}

	rp := &runningProc{cmd: cmd, pid: cmd.Process.Pid, logTx: newBroadcaster(), exited: make(chan struct{})}
	sv.running[key] = rp
	sv.mu.Unlock()

	pid := uint32(cmd.Process.Pid)
	now := time.Now()
	_ = sv.store.SetServicePID(app, cfg.Name, &pid)
	_ = sv.store.SetServiceStartTime(app, cfg.Name, now)
	_ = sv.store.SetExitCode(app, cfg.Name, nil)
	_ = sv.store.UpdateServiceStatus(app, cfg.Name, state.Running)

	var pumpWG sync.WaitGroup
	pumpWG.Add(2)
	go sv.pump(&pumpWG, app, cfg.Name, rp.logTx, logbuf.Stdout, stdout)
	go sv.pump(&pumpWG, app, cfg.Name, rp.logTx, logbuf.Stderr, stderr)

	go sv.waitForExit(key, app, cfg.Name, rp, &pumpWG)

	return nil
}

// killOrphan cleans up a pid left over from a snapshot restored across a
// daemon restart: the supervisor has no runningProc for it, so a normal
// StopService can't reach it, but the group may still be alive if the
// daemon crashed rather than shut down cleanly.
func (sv *Supervisor) killOrphan(app, service string) {
	st, err := sv.store.App(app)
	if err != nil {
		return
	}
	svc, ok := st.Services[service]
	if !ok || svc.PID == nil {
		return
	}
	pid := int(*svc.PID)
	if process.GroupAlive(pid) {
		_ = process.KillGroup(pid)
	}
}

// pump reads lines from r and publishes them to both the ring buffer and
// the service's broadcast sender until r is closed by the child's exit.
func (sv *Supervisor) pump(wg *sync.WaitGroup, app, service string, tx *Broadcaster, stream logbuf.Stream, r io.Reader) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		entry := logbuf.LogEntry{
			Timestamp: time.Now().Unix(),
			Stream:    stream,
			Line:      scanner.Text(),
		}
		if err := sv.store.PushLog(app, service, entry); err != nil {
			return
		}
		tx.Publish(entry)
	}
}

// waitForExit reaps the child non-blockingly from the caller's perspective
// (it runs on its own goroutine) and records the final status once both
// output pumps have drained.
func (sv *Supervisor) waitForExit(key, app, service string, rp *runningProc, pumpWG *sync.WaitGroup) {
	pumpWG.Wait()
	rp.logTx.Close()
	err := rp.cmd.Wait()

	sv.mu.Lock()
	stopping := rp.stopping
	delete(sv.running, key)
	sv.mu.Unlock()
	// Signalled only after the runtime entry is gone, so a StopService
	// that wakes on it never sees the old runtime in the table.
	close(rp.exited)

	if stopping {
		// A deliberate StopService call owns the final state transition
		// (Stopped, no exit code); recording Exited here would race it
		// and leave a stale exit code.
		return
	}

	code := exitCodeOf(err)
	_ = sv.store.SetExitCode(app, service, &code)
	_ = sv.store.SetServicePID(app, service, nil)
	_ = sv.store.UpdateServiceStatus(app, service, state.Exited)
}

func exitCodeOf(err error) int32 {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return int32(exitErr.ExitCode())
	}
	return -1
}

// StopService kills service's whole process group and waits up to
// shutdownGrace for the reap to complete. The final state is always
// Stopped with no pid and no exit code, even if the group had already
// exited on its own by the time this runs.
func (sv *Supervisor) StopService(app, service string) error {
	key := procKey(app, service)

	sv.mu.Lock()
	rp, alive := sv.running[key]
	if alive {
		rp.stopping = true
	}
	sv.mu.Unlock()

	if !alive {
		_ = sv.store.SetServicePID(app, service, nil)
		_ = sv.store.SetExitCode(app, service, nil)
		return sv.store.UpdateServiceStatus(app, service, state.Stopped)
	}

	if err := process.KillGroup(rp.pid); err != nil && process.GroupAlive(rp.pid) {
		return fmt.Errorf("stopping %s: %w", service, err)
	}

	select {
	case <-rp.exited:
	case <-time.After(shutdownGrace):
	}

	_ = sv.store.SetServicePID(app, service, nil)
	_ = sv.store.SetExitCode(app, service, nil)
	return sv.store.UpdateServiceStatus(app, service, state.Stopped)
}

// LogSender returns the broadcast sender for a running service, or false
// if no runtime exists for the key. Subscribers derived from it are
// independent of every other service's: each has its own bounded
// backlog, so one service's output volume never costs another's
// followers entries.
func (sv *Supervisor) LogSender(app, service string) (*Broadcaster, bool) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	rp, ok := sv.running[procKey(app, service)]
	if !ok {
		return nil, false
	}
	return rp.logTx, true
}

// StopAll stops every running service of app, in reverse declared order.
func (sv *Supervisor) StopAll(app *state.AppState) {
	for i := len(app.ServiceOrder) - 1; i >= 0; i-- {
		name := app.ServiceOrder[i]
		if err := sv.StopService(app.AppName, name); err != nil {
			log.Printf("supervisor: stopping %s/%s: %v", app.AppName, name, err)
		}
	}
}

// Run ticks the resource sampler every refreshInterval until ctx is
// cancelled, pushing fresh metrics into the store for every running
// service plus the system-wide sample.
func (sv *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sv.refresh()
		}
	}
}

func (sv *Supervisor) refresh() {
	snap, err := sv.sampler.Sample()
	if err != nil {
		log.Printf("supervisor: sampling resources: %v", err)
		return
	}

	// Supervisor-table lock is taken and released before any state-store
	// write, so refresh can never deadlock against a reader path that
	// acquires the guards in the opposite order.
	sv.mu.Lock()
	procs := make(map[string]int, len(sv.running))
	for key, rp := range sv.running {
		procs[key] = rp.pid
	}
	sv.mu.Unlock()

	sv.store.SetSystemMetrics(snap.GlobalCPU, snap.MemoryUsed, snap.MemoryTotal)

	for key, pid := range procs {
		sample, ok := snap.ByPID[int32(pid)]
		if !ok {
			continue
		}
		app, service := splitKey(key)
		m := state.ServiceMetrics{CPU: sample.CPU, Memory: sample.Memory, MemoryTotal: snap.MemoryTotal}
		if err := sv.store.SetMetrics(app, service, m); err != nil {
			log.Printf("supervisor: recording metrics for %s: %v", key, err)
		}
		if sv.history != nil {
			point := history.Sample{Timestamp: time.Now().Unix(), CPU: sample.CPU, Memory: sample.Memory}
			if err := sv.history.Append(app, service, point); err != nil {
				log.Printf("supervisor: recording trend for %s: %v", key, err)
			}
		}
	}
}

func splitKey(key string) (app, service string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
