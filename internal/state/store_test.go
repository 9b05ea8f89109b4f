package state_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servinel/daemon/internal/logbuf"
	"github.com/servinel/daemon/internal/manifest"
	"github.com/servinel/daemon/internal/state"
)

func sampleApp() *state.AppState {
	m := &manifest.Manifest{
		AppName: "web",
		Services: []manifest.ServiceConfig{
			{Name: "api", Command: "sleep 5"},
		},
		Profiles: map[string][]string{"all": {"api"}},
	}
	return state.RegisterApp(m)
}

func TestStore_InsertAndLookup(t *testing.T) {
	s := state.NewStore()
	s.InsertApp(sampleApp())

	app, err := s.App("web")
	require.NoError(t, err)
	assert.Equal(t, "web", app.AppName)

	_, err = s.App("ghost")
	assert.ErrorAs(t, err, &state.ErrAppNotFound{})
}

func TestStore_UpdateServiceStatus_ClearsStartedAtWhenNotRunning(t *testing.T) {
	s := state.NewStore()
	s.InsertApp(sampleApp())

	require.NoError(t, s.SetServiceStartTime("web", "api", time.Now()))
	require.NoError(t, s.UpdateServiceStatus("web", "api", state.Running))

	app, _ := s.App("web")
	assert.NotNil(t, app.Services["api"].StartedAt)

	require.NoError(t, s.UpdateServiceStatus("web", "api", state.Stopped))
	assert.Nil(t, app.Services["api"].StartedAt)
}

func TestStore_PushLogAndHistory(t *testing.T) {
	s := state.NewStore()
	s.InsertApp(sampleApp())

	require.NoError(t, s.PushLog("web", "api", logbuf.LogEntry{Line: "hello"}))
	entries, err := s.ServiceHistory("web", "api", nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Line)
}

func TestStore_Resolve(t *testing.T) {
	s := state.NewStore()
	s.InsertApp(sampleApp())

	names, err := s.Resolve("web", state.Selector{Kind: state.SelectAll})
	require.NoError(t, err)
	assert.Equal(t, []string{"api"}, names)

	_, err = s.Resolve("web", state.Selector{Kind: state.SelectService, Name: "ghost"})
	assert.ErrorAs(t, err, &state.ErrServiceNotFound{})

	_, err = s.Resolve("web", state.Selector{Kind: state.SelectProfile, Name: "ghost"})
	assert.ErrorAs(t, err, &state.ErrProfileNotFound{})
}

func TestStore_ResolveAppName(t *testing.T) {
	s := state.NewStore()
	_, err := s.ResolveAppName()
	assert.Error(t, err)

	s.InsertApp(sampleApp())
	name, err := s.ResolveAppName()
	require.NoError(t, err)
	assert.Equal(t, "web", name)

	second := sampleApp()
	second.AppName = "other"
	s.InsertApp(second)
	_, err = s.ResolveAppName()
	assert.Error(t, err)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := state.NewStore()
	app := sampleApp()
	pid := uint32(123)
	app.Services["api"].PID = &pid
	app.Services["api"].Status = state.Running
	s.InsertApp(app)

	require.NoError(t, s.Save(dir))

	s2 := state.NewStore()
	require.NoError(t, s2.Load(dir))

	loaded, err := s2.App("web")
	require.NoError(t, err)
	assert.Equal(t, state.Running, loaded.Services["api"].Status)
	require.NotNil(t, loaded.Services["api"].PID)
	assert.Equal(t, uint32(123), *loaded.Services["api"].PID)
	// Logs and metrics never survive a reload.
	assert.Equal(t, 0, loaded.Services["api"].Logs.Len())
	assert.Equal(t, state.ServiceMetrics{}, loaded.Services["api"].Metrics)
}
