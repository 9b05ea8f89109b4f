package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/servinel/daemon/internal/logbuf"
	"github.com/servinel/daemon/internal/manifest"
)

const snapshotFile = "state.json"

// persistedService is the on-disk shape of a ServiceState: logs and live
// metrics are deliberately omitted.
type persistedService struct {
	Config    manifest.ServiceConfig `json:"config"`
	Status    Status                 `json:"status"`
	PID       *uint32                `json:"pid,omitempty"`
	StartedAt *int64                 `json:"started_at,omitempty"`
	ExitCode  *int32                 `json:"exit_code,omitempty"`
}

type persistedApp struct {
	AppName      string                      `json:"app_name"`
	ComposePath  string                      `json:"compose_path"`
	Profiles     map[string][]string         `json:"profiles"`
	ServiceOrder []string                    `json:"service_order"`
	Services     map[string]persistedService `json:"services"`
}

type persistedState struct {
	Apps map[string]persistedApp `json:"apps"`
}

// Save writes the state, minus logs and live metrics, as pretty JSON to
// <dataDir>/state.json. Persistence is best-effort and advisory: its
// failure must never abort the caller's request.
func (s *Store) Save(dataDir string) error {
	s.mu.RLock()
	snapshot := persistedState{Apps: make(map[string]persistedApp, len(s.state.Apps))}
	for name, app := range s.state.Apps {
		pApp := persistedApp{
			AppName:      app.AppName,
			ComposePath:  app.ComposePath,
			Profiles:     app.Profiles,
			ServiceOrder: app.ServiceOrder,
			Services:     make(map[string]persistedService, len(app.Services)),
		}
		for svcName, svc := range app.Services {
			var startedAt *int64
			if svc.StartedAt != nil {
				unix := svc.StartedAt.Unix()
				startedAt = &unix
			}
			pApp.Services[svcName] = persistedService{
				Config:    svc.Config,
				Status:    svc.Status,
				PID:       svc.PID,
				StartedAt: startedAt,
				ExitCode:  svc.ExitCode,
			}
		}
		snapshot.Apps[name] = pApp
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state snapshot: %w", err)
	}

	path := filepath.Join(dataDir, snapshotFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads a previously saved snapshot if present. Metrics reset to
// their zero value and logs start empty; identity, status, pid, start
// time, and exit code survive a daemon restart.
func (s *Store) Load(dataDir string) error {
	path := filepath.Join(dataDir, snapshotFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read state snapshot: %w", err)
	}

	var snapshot persistedState
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("parse state snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, pApp := range snapshot.Apps {
		app := &AppState{
			AppName:      pApp.AppName,
			ComposePath:  pApp.ComposePath,
			Profiles:     pApp.Profiles,
			ServiceOrder: pApp.ServiceOrder,
			Services:     make(map[string]*ServiceState, len(pApp.Services)),
		}
		for svcName, pSvc := range pApp.Services {
			svc := &ServiceState{
				Config:   pSvc.Config,
				Status:   pSvc.Status,
				PID:      pSvc.PID,
				ExitCode: pSvc.ExitCode,
				Logs:     logbuf.New(),
			}
			if pSvc.StartedAt != nil {
				at := time.Unix(*pSvc.StartedAt, 0)
				svc.StartedAt = &at
			}
			app.Services[svcName] = svc
		}
		s.state.Apps[name] = app
	}
	return nil
}
