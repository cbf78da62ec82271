// Package plugin implements WASM-backed plugin discovery. A feature pack
// may declare a plugin entry (a WASM module plus a YAML manifest describing
// its declared options); the registry compiles and instantiates the module
// long enough to read back those declared options. Running an install
// plugin remains out of scope: discovery only.
package plugin

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OptionDecl is a single option declared by a plugin manifest.
type OptionDecl struct {
	Name       string `yaml:"name"`
	Required   bool   `yaml:"required"`
	Persistent bool   `yaml:"persistent"`
	Default    string `yaml:"default"`
}

// Manifest is the parsed plugin manifest.
type Manifest struct {
	ID         string       `yaml:"id"`
	Version    string       `yaml:"version"`
	Author     string       `yaml:"author"`
	Entrypoint string       `yaml:"entrypoint"`
	Options    []OptionDecl `yaml:"options"`

	// Path is the file the manifest was loaded from.
	Path string `yaml:"-"`

	// WasmPath is the resolved on-disk path to the WASM module.
	WasmPath string `yaml:"-"`
}

// ManifestLoader loads plugin manifests from a directory tree.
type ManifestLoader struct {
	BaseDir string
}

// NewManifestLoader creates a manifest loader rooted at baseDir.
func NewManifestLoader(baseDir string) *ManifestLoader {
	return &ManifestLoader{BaseDir: baseDir}
}

// LoadFromFile parses a single plugin manifest and resolves its WASM path.
func (l *ManifestLoader) LoadFromFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plugin manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse plugin manifest YAML: %w", err)
	}
	m.Path = path

	if err := l.validate(&m); err != nil {
		return nil, fmt.Errorf("invalid plugin manifest: %w", err)
	}

	if filepath.IsAbs(m.Entrypoint) {
		m.WasmPath = m.Entrypoint
	} else {
		m.WasmPath = filepath.Join(filepath.Dir(path), m.Entrypoint)
	}
	if _, err := os.Stat(m.WasmPath); err != nil {
		return nil, fmt.Errorf("plugin WASM module not found at %s: %w", m.WasmPath, err)
	}

	return &m, nil
}

func (l *ManifestLoader) validate(m *Manifest) error {
	if m.ID == "" {
		return fmt.Errorf("plugin id is required")
	}
	if m.Entrypoint == "" {
		return fmt.Errorf("plugin entrypoint is required")
	}
	for _, opt := range m.Options {
		if opt.Name == "" {
			return fmt.Errorf("plugin %s: option with empty name", m.ID)
		}
	}
	return nil
}

// Discover loads every "*.yaml" file directly inside dir as a manifest
// (one plugin per feature pack's plugins/ subtree, spec §3 on-disk
// layout). Subdirectories are not searched.
func (l *ManifestLoader) Discover(dir string) ([]*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read plugins dir: %w", err)
	}

	var manifests []*Manifest
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		m, err := l.LoadFromFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}
