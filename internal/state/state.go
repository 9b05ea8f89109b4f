// Package state provides the daemon's single in-memory catalog of apps,
// services, and their runtime status. All mutation goes through the
// methods on Store, which serialize access behind a reader/writer lock; no
// method here blocks on network or child I/O while holding that lock.
package state

import (
	"time"

	"github.com/servinel/daemon/internal/logbuf"
	"github.com/servinel/daemon/internal/manifest"
)

// ServiceMetrics is the most recent resource sample for one service.
type ServiceMetrics struct {
	CPU         float32 `json:"cpu"`
	Memory      uint64  `json:"memory"`
	MemoryTotal uint64  `json:"memory_total"`
}

// ServiceState is everything the daemon tracks about one supervised
// service.
type ServiceState struct {
	Config    manifest.ServiceConfig
	Status    Status
	PID       *uint32
	StartedAt *time.Time
	ExitCode  *int32
	Logs      *logbuf.LogBuffer
	Metrics   ServiceMetrics
}

// Uptime derives the service's uptime from StartedAt; it is never stored
// directly, so it can't go stale.
func (s *ServiceState) Uptime(now time.Time) *int64 {
	if s.StartedAt == nil {
		return nil
	}
	secs := int64(now.Sub(*s.StartedAt).Seconds())
	return &secs
}

// AppState is one registered app: its manifest-derived identity plus the
// live status of its declared services.
type AppState struct {
	AppName      string
	ComposePath  string
	Profiles     map[string][]string
	Services     map[string]*ServiceState
	ServiceOrder []string
}

// DaemonState is the complete catalog the daemon holds, plus the last
// system-wide resource sample.
type DaemonState struct {
	Apps              map[string]*AppState
	SystemCPU         float32
	SystemMemoryUsed  uint64
	SystemMemoryTotal uint64
}

func newDaemonState() *DaemonState {
	return &DaemonState{Apps: make(map[string]*AppState)}
}

// RegisterApp builds a fresh AppState from a manifest: every service
// starts Stopped with an empty log buffer. Apps are keyed by name, so
// inserting the result replaces any prior app of the same name.
func RegisterApp(m *manifest.Manifest) *AppState {
	app := &AppState{
		AppName:      m.AppName,
		ComposePath:  m.Path,
		Profiles:     m.Profiles,
		Services:     make(map[string]*ServiceState, len(m.Services)),
		ServiceOrder: make([]string, 0, len(m.Services)),
	}
	for _, svc := range m.Services {
		app.Services[svc.Name] = &ServiceState{
			Config: svc,
			Status: Stopped,
			Logs:   logbuf.New(),
		}
		app.ServiceOrder = append(app.ServiceOrder, svc.Name)
	}
	return app
}
