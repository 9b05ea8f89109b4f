// Package manifest loads and validates the declarative file naming an app's
// services. The daemon only ever sees the validated, normalized Manifest
// value this package produces.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the manifest file name discovered in the current
// working directory when no explicit path is given.
const DefaultFileName = "servinel-compose.yaml"

// Manifest is the validated, normalized declaration of an app and its
// services, produced from a YAML file.
type Manifest struct {
	AppName  string              `yaml:"app_name"`
	Services []ServiceConfig     `yaml:"services"`
	Profiles map[string][]string `yaml:"profiles,omitempty"`
	Path     string              `yaml:"-"`
}

// ServiceConfig describes one long-lived child process.
type ServiceConfig struct {
	Name             string `yaml:"name"`
	Command          string `yaml:"command"`
	WorkingDirectory string `yaml:"working_directory,omitempty"`
	// Restart is reserved for future use; the core never acts on it.
	Restart string `yaml:"restart,omitempty"`
}

// Load reads, parses, normalizes, and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest yaml: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	m.Path = absPath

	normalize(&m)

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// normalize resolves relative working directories against the manifest's
// own directory and defaults an unset working directory to that same
// directory, so every ServiceConfig leaves here with an absolute path.
func normalize(m *Manifest) {
	base := filepath.Dir(m.Path)
	for i := range m.Services {
		wd := m.Services[i].WorkingDirectory
		switch {
		case wd == "":
			m.Services[i].WorkingDirectory = base
		case !filepath.IsAbs(wd):
			m.Services[i].WorkingDirectory = filepath.Join(base, wd)
		}
	}
}

// Validate checks the manifest's structural invariants: a non-empty app
// name, unique non-empty service names, and profiles that only reference
// declared services.
func (m *Manifest) Validate() error {
	if m.AppName == "" {
		return fmt.Errorf("app_name is required")
	}

	seen := make(map[string]struct{}, len(m.Services))
	for _, svc := range m.Services {
		if svc.Name == "" {
			return fmt.Errorf("service name cannot be empty")
		}
		if _, dup := seen[svc.Name]; dup {
			return fmt.Errorf("duplicate service name: %s", svc.Name)
		}
		if svc.Command == "" {
			return fmt.Errorf("service %s: command is required", svc.Name)
		}
		seen[svc.Name] = struct{}{}
	}

	for profile, names := range m.Profiles {
		for _, name := range names {
			if _, ok := seen[name]; !ok {
				return fmt.Errorf("profile %q references unknown service %q", profile, name)
			}
		}
	}

	return nil
}

// Find returns the named service's configuration, or false if unknown.
func (m *Manifest) Find(name string) (*ServiceConfig, bool) {
	for i := range m.Services {
		if m.Services[i].Name == name {
			return &m.Services[i], true
		}
	}
	return nil, false
}

// FindCompose locates the default manifest file in the current directory.
func FindCompose() (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, err
	}
	candidate := filepath.Join(cwd, DefaultFileName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, true, nil
	}
	return "", false, nil
}
