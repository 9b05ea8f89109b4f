package bootstrap

import (
	"context"
	"log"
	"time"

	"github.com/servinel/daemon/internal/infrastructure/metrics/history"
	"github.com/servinel/daemon/internal/ipc/server"
	"github.com/servinel/daemon/internal/state"
	"github.com/servinel/daemon/internal/supervisor"
)

// saveInterval is how often the state store is flushed to disk so a
// daemon killed mid-session still leaves a reasonably fresh snapshot.
const saveInterval = 5 * time.Second

// Daemon is the root object of the dependency graph Wire builds: every
// collaborator the daemon process needs for its lifetime.
type Daemon struct {
	DataDir    string
	Store      *state.Store
	Supervisor *supervisor.Supervisor
	Server     *server.Server
	History    *history.Store
}

// NewDaemon assembles a Daemon from its already-constructed parts. Kept
// as a trivial constructor so Wire's generated graph has a single
// terminal provider.
func NewDaemon(dataDir string, store *state.Store, sv *supervisor.Supervisor, srv *server.Server, hist *history.Store) *Daemon {
	return &Daemon{DataDir: dataDir, Store: store, Supervisor: sv, Server: srv, History: hist}
}

// Run binds the IPC listener and blocks serving connections and running
// the supervisor's refresh tick until ctx is cancelled. It never returns
// an error from a failed individual request: only an unrecoverable
// listener failure propagates.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Server.Listen(); err != nil {
		return err
	}
	defer d.Server.Close()

	go d.Supervisor.Run(ctx)
	go d.periodicSave(ctx)

	return d.Server.Serve(ctx)
}

// periodicSave flushes the state store on a slow timer, plus once more on
// shutdown. Persistence failures are logged and otherwise ignored.
func (d *Daemon) periodicSave(ctx context.Context) {
	ticker := time.NewTicker(saveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := d.Store.Save(d.DataDir); err != nil {
				log.Printf("daemon: final state save: %v", err)
			}
			return
		case <-ticker.C:
			if err := d.Store.Save(d.DataDir); err != nil {
				log.Printf("daemon: periodic state save: %v", err)
			}
		}
	}
}
