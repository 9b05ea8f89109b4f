package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servinel/daemon/internal/manifest"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "servinel-compose.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
app_name: web
services:
  - name: api
    command: "sleep 5"
  - name: worker
    command: "sleep 5"
    working_directory: sub
profiles:
  backend:
    - api
    - worker
`)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))

	m, err := manifest.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "web", m.AppName)
	assert.Len(t, m.Services, 2)
	assert.Equal(t, filepath.Join(dir, "sub"), m.Services[1].WorkingDirectory)
	assert.Equal(t, []string{"api", "worker"}, m.Profiles["backend"])
}

func TestLoad_DuplicateServiceName(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
app_name: web
services:
  - name: api
    command: "sleep 5"
  - name: api
    command: "sleep 6"
`)
	_, err := manifest.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoad_UnknownProfileService(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
app_name: web
services:
  - name: api
    command: "sleep 5"
profiles:
  backend:
    - ghost
`)
	_, err := manifest.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown service")
}

func TestLoad_MissingAppName(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
services:
  - name: api
    command: "sleep 5"
`)
	_, err := manifest.Load(path)
	require.Error(t, err)
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
app_name: web
services:
  - name: api
    command: "sleep 5"
`)
	m, err := manifest.Load(path)
	require.NoError(t, err)

	svc, ok := m.Find("api")
	require.True(t, ok)
	assert.Equal(t, "sleep 5", svc.Command)

	_, ok = m.Find("ghost")
	assert.False(t, ok)
}
