package state

import (
	"sync"
	"time"

	"github.com/servinel/daemon/internal/logbuf"
)

// ErrAppNotFound is returned by any lookup against an unregistered app.
type ErrAppNotFound struct{ App string }

func (e ErrAppNotFound) Error() string { return "app not found: " + e.App }

// ErrServiceNotFound is returned by any lookup against an unknown service.
type ErrServiceNotFound struct{ Service string }

func (e ErrServiceNotFound) Error() string { return "service not found: " + e.Service }

// Store guards a DaemonState behind a reader/writer lock: many concurrent
// readers, or one writer, never both. Every mutator here is a small O(1)
// update; none of them touch the network or child pipes, so the lock is
// never held across blocking I/O.
type Store struct {
	mu    sync.RWMutex
	state *DaemonState
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{state: newDaemonState()}
}

// View runs fn with a read lock held. Use for snapshots; fn must not
// perform network or child I/O.
func (s *Store) View(fn func(*DaemonState)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

// InsertApp registers or replaces an app.
func (s *Store) InsertApp(app *AppState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Apps[app.AppName] = app
}

// RemoveApp deletes an app entirely.
func (s *Store) RemoveApp(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.Apps, name)
}

// App returns a lookup failure as an error rather than silently returning
// nil, so callers at the IPC boundary can surface it directly.
func (s *Store) App(name string) (*AppState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.state.Apps[name]
	if !ok {
		return nil, ErrAppNotFound{App: name}
	}
	return app, nil
}

// AppNames returns every registered app name.
func (s *Store) AppNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.state.Apps))
	for name := range s.state.Apps {
		names = append(names, name)
	}
	return names
}

func (s *Store) service(app, name string) (*ServiceState, error) {
	a, ok := s.state.Apps[app]
	if !ok {
		return nil, ErrAppNotFound{App: app}
	}
	svc, ok := a.Services[name]
	if !ok {
		return nil, ErrServiceNotFound{Service: name}
	}
	return svc, nil
}

// UpdateServiceStatus sets status, clearing StartedAt whenever the new
// status is not Running or Starting: only a live service has an uptime.
func (s *Store) UpdateServiceStatus(app, service string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, err := s.service(app, service)
	if err != nil {
		return err
	}
	svc.Status = status
	if status != Running && status != Starting {
		svc.StartedAt = nil
	}
	return nil
}

// SetServicePID records the child's PID, or clears it when pid is nil.
func (s *Store) SetServicePID(app, service string, pid *uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, err := s.service(app, service)
	if err != nil {
		return err
	}
	svc.PID = pid
	return nil
}

// SetServiceStartTime records when the service began running.
func (s *Store) SetServiceStartTime(app, service string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, err := s.service(app, service)
	if err != nil {
		return err
	}
	svc.StartedAt = &at
	return nil
}

// SetExitCode records the child's exit code.
func (s *Store) SetExitCode(app, service string, code *int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, err := s.service(app, service)
	if err != nil {
		return err
	}
	svc.ExitCode = code
	return nil
}

// PushLog appends one entry to a service's ring buffer.
func (s *Store) PushLog(app, service string, entry logbuf.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, err := s.service(app, service)
	if err != nil {
		return err
	}
	svc.Logs.Push(entry)
	return nil
}

// SetMetrics records a service's most recent resource sample.
func (s *Store) SetMetrics(app, service string, m ServiceMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, err := s.service(app, service)
	if err != nil {
		return err
	}
	svc.Metrics = m
	return nil
}

// SetSystemMetrics records the latest system-wide CPU/memory sample.
func (s *Store) SetSystemMetrics(cpu float32, memUsed, memTotal uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SystemCPU = cpu
	s.state.SystemMemoryUsed = memUsed
	s.state.SystemMemoryTotal = memTotal
}

// ClearServiceLogs empties a service's ring buffer.
func (s *Store) ClearServiceLogs(app, service string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, err := s.service(app, service)
	if err != nil {
		return err
	}
	svc.Logs.Clear()
	return nil
}

// ServiceHistory returns a snapshot of a service's tail/all log entries
// without holding the guard across the caller's own I/O; the returned
// slice is a fresh copy, not a view into the ring buffer.
func (s *Store) ServiceHistory(app, service string, tail *int) ([]logbuf.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, err := s.service(app, service)
	if err != nil {
		return nil, err
	}
	if tail == nil {
		return svc.Logs.All(), nil
	}
	return svc.Logs.Tail(*tail), nil
}
