// Package bootstrap provides Wire dependency injection for the daemon: a
// wireinject graph (wire.go, excluded from normal builds) describes the
// dependency graph, and wire_gen.go is what actually compiles.
package bootstrap

import (
	"path/filepath"

	"github.com/servinel/daemon/internal/infrastructure/metrics"
	"github.com/servinel/daemon/internal/infrastructure/metrics/history"
	"github.com/servinel/daemon/internal/ipc/server"
	"github.com/servinel/daemon/internal/paths"
	"github.com/servinel/daemon/internal/state"
	"github.com/servinel/daemon/internal/supervisor"
)

// ProvideStore constructs the daemon's state store, loading a prior
// crash-recovery snapshot from dataDir if one exists.
func ProvideStore(dataDir string) (*state.Store, error) {
	store := state.NewStore()
	if err := store.Load(dataDir); err != nil {
		return nil, err
	}
	return store, nil
}

// ProvideSampler constructs the gopsutil-backed resource sampler used by
// the supervisor's refresh tick.
func ProvideSampler() metrics.Sampler {
	return metrics.NewGopsutilSampler()
}

// ProvideSupervisor wires the process supervisor to its store and
// sampler.
func ProvideSupervisor(store *state.Store, sampler metrics.Sampler) *supervisor.Supervisor {
	return supervisor.New(store, sampler)
}

// ProvideHistory opens the bbolt-backed metrics trend store the `doctor`
// subcommand reads, at <dataDir>/metrics.db.
func ProvideHistory(dataDir string) (*history.Store, error) {
	return history.Open(filepath.Join(dataDir, "metrics.db"))
}

// ProvideServer wires the IPC dispatcher to the socket path, store, and
// supervisor.
func ProvideServer(dataDir string, store *state.Store, super *supervisor.Supervisor) *server.Server {
	return server.New(filepath.Join(dataDir, paths.SocketFileName), store, super)
}
