// Package server implements the daemon side of the UNIX-socket protocol:
// one listener, one goroutine per connection, each connection handling
// exactly one request and replying with one or more response frames
// before closing.
package server

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/servinel/daemon/internal/ipc/protocol"
	"github.com/servinel/daemon/internal/manifest"
	"github.com/servinel/daemon/internal/state"
	"github.com/servinel/daemon/internal/supervisor"
)

// Server owns the UNIX socket listener and dispatches incoming requests
// against the shared state store and supervisor.
type Server struct {
	socketPath string
	store      *state.Store
	super      *supervisor.Supervisor

	listener net.Listener
}

// New builds a Server bound to socketPath. Call Serve to accept
// connections.
func New(socketPath string, store *state.Store, super *supervisor.Supervisor) *Server {
	return &Server{socketPath: socketPath, store: store, super: super}
}

// Listen removes any stale socket file and binds the UNIX listener.
func (s *Server) Listen() error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Serve accepts connections until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

// Close releases the listener and removes the socket file.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	_ = os.Remove(s.socketPath)
	return err
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	reader := protocol.NewReader(conn)
	writer := protocol.NewWriter(conn)

	req, err := reader.ReadRequest()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			log.Printf("ipc: reading request: %v", err)
		}
		return
	}

	// The client sends nothing after its one request, so a further read
	// only returns once it hangs up (or the connection is closed below);
	// that ends any log follow still running on this connection.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_, _ = reader.ReadRequest()
		cancel()
	}()

	s.dispatch(ctx, writer, req)
}

func (s *Server) dispatch(ctx context.Context, w *protocol.Writer, req protocol.Request) {
	resp := s.dispatchSimple(req)
	if resp != nil {
		if err := w.WriteResponse(*resp); err != nil {
			log.Printf("ipc: writing response: %v", err)
		}
		return
	}

	// Logs is the one request that can emit many responses.
	if req.Logs != nil {
		s.handleLogs(ctx, w, *req.Logs)
		return
	}

	if err := w.WriteResponse(protocol.Err(protocol.ErrKindInput, "unrecognized request")); err != nil {
		log.Printf("ipc: writing response: %v", err)
	}
}

// dispatchSimple handles every request variant that produces exactly one
// response. It returns nil for variants (today, only Logs) requiring a
// stream of responses.
func (s *Server) dispatchSimple(req protocol.Request) *protocol.Response {
	switch {
	case req.DashAttach:
		return respOK()
	case req.Up != nil:
		return s.handleUp(*req.Up)
	case req.Start != nil:
		return s.handleStart(*req.Start)
	case req.Stop != nil:
		return s.handleSelector(*req.Stop, s.super.StopService)
	case req.Restart != nil:
		return s.handleRestart(*req.Restart)
	case req.Status != nil:
		return s.handleStatus(*req.Status)
	case req.Profiles != nil:
		return s.handleProfiles(*req.Profiles)
	case req.Down != nil:
		return s.handleDown(*req.Down)
	case req.Logs != nil:
		return nil
	default:
		return respErr(protocol.ErrKindInput, "empty request")
	}
}

func respOK() *protocol.Response {
	r := protocol.OK()
	return &r
}

func respErr(kind protocol.ErrorKind, format string, args ...any) *protocol.Response {
	r := protocol.Err(kind, format, args...)
	return &r
}

func (s *Server) handleUp(req protocol.UpRequest) *protocol.Response {
	path := req.ComposePath
	if path == "" {
		found, ok, err := manifest.FindCompose()
		if err != nil {
			return respErr(protocol.ErrKindInput, "locating manifest: %v", err)
		}
		if !ok {
			return respErr(protocol.ErrKindInput, "no %s found in current directory", manifest.DefaultFileName)
		}
		path = found
	}

	app, errResp := s.loadAndRegister(path)
	if errResp != nil {
		return errResp
	}

	var names []string
	if req.Profile != "" {
		list, ok := app.Profiles[req.Profile]
		if !ok {
			return respErr(protocol.ErrKindInput, "profile %q not declared in %s", req.Profile, path)
		}
		names = list
	} else {
		names = app.ServiceOrder
	}

	for _, name := range names {
		cfg, ok := app.Services[name]
		if !ok {
			return respErr(protocol.ErrKindNotFound, "service %q not found", name)
		}
		if err := s.super.StartService(app.AppName, cfg.Config); err != nil {
			return respErr(protocol.ErrKindChildIO, "starting %s: %v", name, err)
		}
	}
	return respOK()
}

// loadAndRegister parses a manifest and swaps it into the catalog,
// stopping any services of a previously registered app of the same name
// before the replacement forgets them.
func (s *Server) loadAndRegister(path string) (*state.AppState, *protocol.Response) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, respErr(protocol.ErrKindInput, "%v", err)
	}
	app := state.RegisterApp(m)
	if existing, err := s.store.App(app.AppName); err == nil {
		s.super.StopAll(existing)
	}
	s.store.InsertApp(app)
	return app, nil
}

// handleStart optionally loads a manifest the way Up does, then starts
// only the requested selection; the file load never widens what the
// selector asked for.
func (s *Server) handleStart(req protocol.StartRequest) *protocol.Response {
	appName := req.App
	if req.File != "" {
		app, errResp := s.loadAndRegister(req.File)
		if errResp != nil {
			return errResp
		}
		appName = app.AppName
	}
	return s.handleSelector(protocol.SelectorRequest{App: appName, Selector: req.Selector}, s.startServiceByName)
}

func (s *Server) resolveApp(appName string) (string, *protocol.Response) {
	if appName != "" {
		return appName, nil
	}
	name, err := s.store.ResolveAppName()
	if err != nil {
		return "", respErr(protocol.ErrKindInput, "%v", err)
	}
	return name, nil
}

func (s *Server) handleSelector(req protocol.SelectorRequest, action func(app, service string) error) *protocol.Response {
	appName, errResp := s.resolveApp(req.App)
	if errResp != nil {
		return errResp
	}

	names, err := s.store.Resolve(appName, req.Selector.ToState())
	if err != nil {
		return respErr(protocol.ErrKindNotFound, "%v", err)
	}

	for _, name := range names {
		if err := action(appName, name); err != nil {
			return respErr(protocol.ErrKindChildIO, "%s: %v", name, err)
		}
	}
	return respOK()
}

func (s *Server) startServiceByName(app, service string) error {
	appState, err := s.store.App(app)
	if err != nil {
		return err
	}
	svc, ok := appState.Services[service]
	if !ok {
		return state.ErrServiceNotFound{Service: service}
	}
	return s.super.StartService(app, svc.Config)
}

// handleRestart runs two passes: every selected service is stopped
// before any of them is started again, rather than stopping and starting
// one at a time.
func (s *Server) handleRestart(req protocol.SelectorRequest) *protocol.Response {
	appName, errResp := s.resolveApp(req.App)
	if errResp != nil {
		return errResp
	}
	names, err := s.store.Resolve(appName, req.Selector.ToState())
	if err != nil {
		return respErr(protocol.ErrKindNotFound, "%v", err)
	}
	app, err := s.store.App(appName)
	if err != nil {
		return respErr(protocol.ErrKindNotFound, "%v", err)
	}

	for _, name := range names {
		if err := s.super.StopService(appName, name); err != nil {
			return respErr(protocol.ErrKindChildIO, "stopping %s: %v", name, err)
		}
	}
	for _, name := range names {
		cfg, ok := app.Services[name]
		if !ok {
			return respErr(protocol.ErrKindNotFound, "service %q not found", name)
		}
		if err := s.super.StartService(appName, cfg.Config); err != nil {
			return respErr(protocol.ErrKindChildIO, "starting %s: %v", name, err)
		}
	}
	return respOK()
}

func (s *Server) handleStatus(req protocol.StatusRequest) *protocol.Response {
	var names []string
	if req.App != "" {
		names = []string{req.App}
	} else {
		if req.Selector.ToState().Kind != state.SelectAll {
			return respErr(protocol.ErrKindInput, "status selector must be All when app is omitted")
		}
		names = s.store.AppNames()
	}

	snapshot := protocol.StatusSnapshot{}
	now := time.Now()
	s.store.View(func(ds *state.DaemonState) {
		snapshot.SystemCPU = ds.SystemCPU
		snapshot.SystemMemoryUsed = ds.SystemMemoryUsed
		snapshot.SystemMemoryTotal = ds.SystemMemoryTotal
		for _, name := range names {
			app, ok := ds.Apps[name]
			if !ok {
				continue
			}
			appSnap := protocol.AppSnapshot{AppName: app.AppName}
			for _, svcName := range app.ServiceOrder {
				svc := app.Services[svcName]
				appSnap.Services = append(appSnap.Services, protocol.ServiceSnapshot{
					Name:       svcName,
					Status:     svc.Status.String(),
					PID:        svc.PID,
					UptimeSecs: svc.Uptime(now),
					ExitCode:   svc.ExitCode,
					Metrics:    svc.Metrics,
				})
			}
			snapshot.Apps = append(snapshot.Apps, appSnap)
		}
	})

	if req.App != "" && len(snapshot.Apps) == 0 {
		return respErr(protocol.ErrKindNotFound, "app %q not found", req.App)
	}
	return &protocol.Response{Status: &snapshot}
}

func (s *Server) handleProfiles(req protocol.ProfilesRequest) *protocol.Response {
	appName, errResp := s.resolveApp(req.App)
	if errResp != nil {
		return errResp
	}
	names, err := s.store.ProfileNames(appName)
	if err != nil {
		return respErr(protocol.ErrKindNotFound, "%v", err)
	}
	return &protocol.Response{Profiles: &protocol.ProfilesResponse{Profiles: names}}
}

func (s *Server) handleDown(req protocol.DownRequest) *protocol.Response {
	var names []string
	if req.App != "" {
		names = []string{req.App}
	} else {
		names = s.store.AppNames()
	}
	if len(names) == 0 {
		return respErr(protocol.ErrKindNotFound, "no apps running")
	}

	for _, name := range names {
		app, err := s.store.App(name)
		if err != nil {
			continue
		}
		s.super.StopAll(app)
		s.store.RemoveApp(name)
	}
	return respOK()
}
