package layout

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fplayout/fplayout/pkg/location"
)

// FeaturePackSpec is the parsed `fplayout-spec.yaml` metadata carried by a
// feature-pack archive: declared dependencies, declared plugins, default
// packages, and (if this archive is a patch) its target producer.
type FeaturePackSpec struct {
	// Dependencies lists the non-patch feature packs this spec declares,
	// split into transitive and direct entries.
	TransitiveDeps []DependencySpec `yaml:"transitiveDependencies,omitempty"`
	DirectDeps     []DependencySpec `yaml:"directDependencies,omitempty"`

	// Plugins lists declared install-plugin artifact references (WASM
	// modules).
	Plugins []PluginRef `yaml:"plugins,omitempty"`

	// DefaultPackages lists packages enabled by default when no config
	// selects a subset explicitly.
	DefaultPackages []string `yaml:"defaultPackages,omitempty"`

	// IsPatch marks this spec as belonging to a patch archive.
	IsPatch bool `yaml:"isPatch,omitempty"`

	// PatchFor names the producer this patch applies to, either as a bare
	// producer name or in ProducerSpec.String() form; required when
	// IsPatch is true.
	PatchFor string `yaml:"patchFor,omitempty"`

	// PatchDeps lists feature-pack deps of a patch that are themselves
	// patches, loaded recursively by loadPatch.
	PatchDeps []DependencySpec `yaml:"patchDependencies,omitempty"`
}

// DependencySpec names one declared dependency, either in coordinate form
// (Coordinate non-empty) or full form.
type DependencySpec struct {
	Universe   string `yaml:"universe,omitempty"`
	Producer   string `yaml:"producer,omitempty"`
	Channel    string `yaml:"channel,omitempty"`
	Frequency  string `yaml:"frequency,omitempty"`
	Build      string `yaml:"build,omitempty"`
	Coordinate string `yaml:"coordinate,omitempty"`
}

// Location returns the FPL this dependency spec names.
func (d DependencySpec) Location() location.FeaturePackLocation {
	return location.FeaturePackLocation{
		Universe:   location.UniverseSpec{Factory: d.Universe},
		Producer:   d.Producer,
		Channel:    d.Channel,
		Frequency:  d.Frequency,
		Build:      d.Build,
		Coordinate: d.Coordinate,
	}
}

// PluginRef names a declared plugin artifact.
type PluginRef struct {
	ID         string `yaml:"id"`
	Coordinate string `yaml:"coordinate"`
	RepoID     string `yaml:"repoId,omitempty"`
}

// LoadSpec reads and parses a feature-pack spec file from an archive's
// directory (the well-known `fplayout-spec.yaml` at its root).
func LoadSpec(dir string) (*FeaturePackSpec, error) {
	data, err := os.ReadFile(specPath(dir))
	if err != nil {
		return nil, fmt.Errorf("layout: reading feature-pack spec: %w", err)
	}
	var spec FeaturePackSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("layout: parsing feature-pack spec: %w", err)
	}
	if spec.IsPatch && spec.PatchFor == "" {
		return nil, fmt.Errorf("layout: patch spec in %s declares isPatch but no patchFor target", dir)
	}
	return &spec, nil
}

func specPath(dir string) string {
	return dir + string(os.PathSeparator) + "fplayout-spec.yaml"
}

// withDependencyReplaced returns a copy of spec with the dependency at the
// given (transitive/direct) slot replaced, preserving every other
// dependency's position exactly.
func (s *FeaturePackSpec) withDependencyReplaced(transitive bool, idx int, loc location.FeaturePackLocation) *FeaturePackSpec {
	out := *s
	if transitive {
		out.TransitiveDeps = append([]DependencySpec(nil), s.TransitiveDeps...)
		out.TransitiveDeps[idx] = locationToDependencySpec(loc)
	} else {
		out.DirectDeps = append([]DependencySpec(nil), s.DirectDeps...)
		out.DirectDeps[idx] = locationToDependencySpec(loc)
	}
	return &out
}

func locationToDependencySpec(loc location.FeaturePackLocation) DependencySpec {
	return DependencySpec{
		Universe:   loc.Universe.Factory,
		Producer:   loc.Producer,
		Channel:    loc.Channel,
		Frequency:  loc.Frequency,
		Build:      loc.Build,
		Coordinate: loc.Coordinate,
	}
}
