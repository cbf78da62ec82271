// Package pconfig holds the immutable installation-configuration model:
// FeaturePackConfig entries (direct and transitive), the ProvisioningConfig
// that aggregates them, and the Builder used to produce new, modified
// instances.
package pconfig

import "github.com/fplayout/fplayout/pkg/location"

// VersionConvergence selects the policy used when two branches of the
// dependency graph disagree on the build for the same producer.
type VersionConvergence string

const (
	// FirstProcessed accepts the first build seen and ignores later
	// disagreements silently (default).
	FirstProcessed VersionConvergence = "FIRST_PROCESSED"

	// Fail records every build mismatch for a producer whose branch build
	// isn't otherwise pinned and raises one VersionConflict listing all of
	// them once the build finishes.
	Fail VersionConvergence = "FAIL"
)

// OptionVersionConvergence is the well-known option name controlling
// VersionConvergence.
const OptionVersionConvergence = "VERSION_CONVERGENCE"

// FeaturePackConfig is one entry in a ProvisioningConfig: a location, a
// transitive flag, attached patch FPIDs, and feature-pack-specific options.
// Entries are immutable; all mutation goes through Builder.
type FeaturePackConfig struct {
	Location   location.FeaturePackLocation `json:"location" validate:"required"`
	Transitive bool                         `json:"transitive"`
	Patches    []location.FPID              `json:"patches,omitempty"`
	Options    map[string]string            `json:"options,omitempty"`
}

// Producer returns the producer identity of this entry's location.
func (c FeaturePackConfig) Producer() location.ProducerSpec {
	return c.Location.ProducerSpec()
}

// HasPatch reports whether fpid is already attached to this entry.
func (c FeaturePackConfig) HasPatch(fpid location.FPID) bool {
	for _, p := range c.Patches {
		if p.Equal(fpid) {
			return true
		}
	}
	return false
}

// clone returns a deep-enough copy for builder mutation (patches and
// options slices/maps are copied, the location value is already immutable).
func (c FeaturePackConfig) clone() FeaturePackConfig {
	out := c
	if c.Patches != nil {
		out.Patches = append([]location.FPID(nil), c.Patches...)
	}
	if c.Options != nil {
		out.Options = make(map[string]string, len(c.Options))
		for k, v := range c.Options {
			out.Options[k] = v
		}
	}
	return out
}

// ProvisioningConfig is the immutable installation configuration: an
// ordered list of direct entries, a set of transitive entries addressed by
// producer, a global options map, and universe aliases.
type ProvisioningConfig struct {
	direct      []FeaturePackConfig
	transitive  map[string]FeaturePackConfig // keyed by ProducerSpec.String()
	options     map[string]string
	aliases     map[string]location.UniverseSpec // universe alias name -> spec
}

// New returns an empty ProvisioningConfig.
func New() *ProvisioningConfig {
	return &ProvisioningConfig{
		transitive: make(map[string]FeaturePackConfig),
		options:    make(map[string]string),
		aliases:    make(map[string]location.UniverseSpec),
	}
}

// Direct returns the ordered direct entries. The returned slice must not be
// mutated by callers.
func (c *ProvisioningConfig) Direct() []FeaturePackConfig {
	return c.direct
}

// Transitive returns the transitive entries, unordered.
func (c *ProvisioningConfig) Transitive() []FeaturePackConfig {
	out := make([]FeaturePackConfig, 0, len(c.transitive))
	for _, v := range c.transitive {
		out = append(out, v)
	}
	return out
}

// FindDirect returns the direct entry for a producer, if any.
func (c *ProvisioningConfig) FindDirect(p location.ProducerSpec) (FeaturePackConfig, int, bool) {
	for i, d := range c.direct {
		if d.Producer().Equal(p) {
			return d, i, true
		}
	}
	return FeaturePackConfig{}, -1, false
}

// FindTransitive returns the transitive entry for a producer, if any.
func (c *ProvisioningConfig) FindTransitive(p location.ProducerSpec) (FeaturePackConfig, bool) {
	e, ok := c.transitive[p.String()]
	return e, ok
}

// HasProducer reports whether p is referenced, directly or transitively.
func (c *ProvisioningConfig) HasProducer(p location.ProducerSpec) bool {
	if _, _, ok := c.FindDirect(p); ok {
		return true
	}
	_, ok := c.FindTransitive(p)
	return ok
}

// Options returns a copy of the global options map.
func (c *ProvisioningConfig) Options() map[string]string {
	out := make(map[string]string, len(c.options))
	for k, v := range c.options {
		out[k] = v
	}
	return out
}

// OptionValue returns a global option value.
func (c *ProvisioningConfig) OptionValue(name string) (string, bool) {
	v, ok := c.options[name]
	return v, ok
}

// Aliases returns the universe alias table.
func (c *ProvisioningConfig) Aliases() map[string]location.UniverseSpec {
	out := make(map[string]location.UniverseSpec, len(c.aliases))
	for k, v := range c.aliases {
		out[k] = v
	}
	return out
}

// clone deep-copies for the Builder to mutate without aliasing the
// original.
func (c *ProvisioningConfig) clone() *ProvisioningConfig {
	out := &ProvisioningConfig{
		direct:     make([]FeaturePackConfig, len(c.direct)),
		transitive: make(map[string]FeaturePackConfig, len(c.transitive)),
		options:    make(map[string]string, len(c.options)),
		aliases:    make(map[string]location.UniverseSpec, len(c.aliases)),
	}
	for i, d := range c.direct {
		out.direct[i] = d.clone()
	}
	for k, v := range c.transitive {
		out.transitive[k] = v.clone()
	}
	for k, v := range c.options {
		out.options[k] = v
	}
	for k, v := range c.aliases {
		out.aliases[k] = v
	}
	return out
}
