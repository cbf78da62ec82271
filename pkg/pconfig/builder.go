package pconfig

import "github.com/fplayout/fplayout/pkg/location"

// Builder produces new ProvisioningConfig instances from a base config plus
// a sequence of edits. A Builder is never shared across goroutines; it is
// always started fresh from From and consumed once with Build.
type Builder struct {
	cfg *ProvisioningConfig
}

// From starts a builder seeded with a deep copy of base. base may be nil,
// in which case the builder starts empty.
func From(base *ProvisioningConfig) *Builder {
	if base == nil {
		return &Builder{cfg: New()}
	}
	return &Builder{cfg: base.clone()}
}

// Build returns the accumulated ProvisioningConfig. The builder must not be
// reused afterward.
func (b *Builder) Build() *ProvisioningConfig {
	return b.cfg
}

// AddDirect appends a new direct entry. If the producer is already direct,
// it is replaced in place rather than duplicated.
func (b *Builder) AddDirect(entry FeaturePackConfig) *Builder {
	entry.Transitive = false
	for i, d := range b.cfg.direct {
		if d.Producer().Equal(entry.Producer()) {
			b.cfg.direct[i] = entry
			return b
		}
	}
	b.cfg.direct = append(b.cfg.direct, entry)
	return b
}

// InsertDirectAt inserts a new direct entry at a specific index, used by
// install's transitive->direct promotion: the insertion position is the
// earliest index of any existing direct entry that declares the promoted
// producer as a dependency.
func (b *Builder) InsertDirectAt(index int, entry FeaturePackConfig) *Builder {
	entry.Transitive = false
	if index < 0 || index > len(b.cfg.direct) {
		index = len(b.cfg.direct)
	}
	b.cfg.direct = append(b.cfg.direct, FeaturePackConfig{})
	copy(b.cfg.direct[index+1:], b.cfg.direct[index:])
	b.cfg.direct[index] = entry
	return b
}

// RemoveDirect removes the direct entry for a producer, if present.
func (b *Builder) RemoveDirect(p location.ProducerSpec) *Builder {
	out := b.cfg.direct[:0]
	for _, d := range b.cfg.direct {
		if !d.Producer().Equal(p) {
			out = append(out, d)
		}
	}
	b.cfg.direct = out
	return b
}

// AddTransitive inserts or replaces the transitive entry for a producer.
func (b *Builder) AddTransitive(entry FeaturePackConfig) *Builder {
	entry.Transitive = true
	b.cfg.transitive[entry.Producer().String()] = entry
	return b
}

// RemoveTransitive removes a transitive entry.
func (b *Builder) RemoveTransitive(p location.ProducerSpec) *Builder {
	delete(b.cfg.transitive, p.String())
	return b
}

// PromoteToDirect moves a transitive entry to direct at index, keeping its
// location/patches/options.
func (b *Builder) PromoteToDirect(p location.ProducerSpec, index int) *Builder {
	entry, ok := b.cfg.transitive[p.String()]
	if !ok {
		return b
	}
	delete(b.cfg.transitive, p.String())
	return b.InsertDirectAt(index, entry)
}

// DemoteToTransitive moves a direct entry to transitive.
func (b *Builder) DemoteToTransitive(p location.ProducerSpec) *Builder {
	entry, _, ok := b.cfg.FindDirect(p)
	if !ok {
		return b
	}
	b.RemoveDirect(p)
	return b.AddTransitive(entry)
}

// EarliestDependentIndex returns the lowest index among direct entries
// whose declared dependency set contains p, or -1 if none does. deps maps
// a direct entry's producer string to the set of producers it declares as
// dependencies (supplied by the layout builder, which knows each entry's
// resolved spec).
func (b *Builder) EarliestDependentIndex(p location.ProducerSpec, deps map[string]map[string]bool) int {
	for i, d := range b.cfg.direct {
		set := deps[d.Producer().String()]
		if set != nil && set[p.String()] {
			return i
		}
	}
	return -1
}

// AddPatch attaches a patch FPID to the entry (direct or transitive) for
// target, returning false if target is not present in either list.
func (b *Builder) AddPatch(target location.ProducerSpec, patch location.FPID) bool {
	if i := b.directIndex(target); i >= 0 {
		e := b.cfg.direct[i]
		if !e.HasPatch(patch) {
			e.Patches = append(e.Patches, patch)
			b.cfg.direct[i] = e
		}
		return true
	}
	if e, ok := b.cfg.transitive[target.String()]; ok {
		if !e.HasPatch(patch) {
			e.Patches = append(e.Patches, patch)
			b.cfg.transitive[target.String()] = e
		}
		return true
	}
	return false
}

// RemovePatch detaches a patch FPID from target's entry.
func (b *Builder) RemovePatch(target location.ProducerSpec, patch location.FPID) {
	if i := b.directIndex(target); i >= 0 {
		e := b.cfg.direct[i]
		e.Patches = removeFPID(e.Patches, patch)
		b.cfg.direct[i] = e
		return
	}
	if e, ok := b.cfg.transitive[target.String()]; ok {
		e.Patches = removeFPID(e.Patches, patch)
		b.cfg.transitive[target.String()] = e
	}
}

func (b *Builder) directIndex(p location.ProducerSpec) int {
	for i, d := range b.cfg.direct {
		if d.Producer().Equal(p) {
			return i
		}
	}
	return -1
}

func removeFPID(list []location.FPID, target location.FPID) []location.FPID {
	out := list[:0]
	for _, f := range list {
		if !f.Equal(target) {
			out = append(out, f)
		}
	}
	return out
}

// SetOption sets a global option.
func (b *Builder) SetOption(name, value string) *Builder {
	b.cfg.options[name] = value
	return b
}

// RemoveOption removes a global option.
func (b *Builder) RemoveOption(name string) *Builder {
	delete(b.cfg.options, name)
	return b
}

// ClearOptions drops all global options, used when uninstall leaves the
// config with no direct entries.
func (b *Builder) ClearOptions() *Builder {
	b.cfg.options = make(map[string]string)
	return b
}

// SetAlias records a universe alias.
func (b *Builder) SetAlias(name string, spec location.UniverseSpec) *Builder {
	b.cfg.aliases[name] = spec
	return b
}
