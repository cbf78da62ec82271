package layout

import (
	"context"
	"path/filepath"

	"github.com/fplayout/fplayout/pkg/location"
	"github.com/fplayout/fplayout/pkg/pconfig"
	"github.com/fplayout/fplayout/pkg/plugin"
)

// Config returns the layout's current configuration.
func (l *ProvisioningLayout[F]) Config() *pconfig.ProvisioningConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.config
}

// HasFeaturePacks reports whether any feature pack is laid out.
func (l *ProvisioningLayout[F]) HasFeaturePacks() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.featurePacks) > 0
}

// FeaturePack returns the resolved F for producer, if installed.
func (l *ProvisioningLayout[F]) FeaturePack(producer location.ProducerSpec) (F, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fp, ok := l.featurePacks[producer.String()]
	return fp, ok
}

// OrderedFeaturePacks returns the full dependency-ordered sequence (spec
// §8 "dependency order" property).
func (l *ProvisioningLayout[F]) OrderedFeaturePacks() []F {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]F, len(l.ordered))
	copy(out, l.ordered)
	return out
}

// Patches returns the ordered patch stack applied to fpid, or nil.
func (l *ProvisioningLayout[F]) Patches(fpid location.FPID) []F {
	l.mu.Lock()
	defer l.mu.Unlock()
	list := l.fpPatches[fpid.String()]
	out := make([]F, len(list))
	copy(out, list)
	return out
}

// HasPatches reports whether fpid carries any applied patches.
func (l *ProvisioningLayout[F]) HasPatches(fpid location.FPID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fpPatches[fpid.String()]) > 0
}

// HasPlugins reports whether the aggregated plugins/ directory has any
// content.
func (l *ProvisioningLayout[F]) HasPlugins() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.work.HasPlugins()
}

// PluginsDir returns the aggregated plugins/ directory, creating it if
// needed.
func (l *ProvisioningLayout[F]) PluginsDir() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.work.Plugins()
}

// HasResources reports whether the aggregated resources/ tree has any
// content.
func (l *ProvisioningLayout[F]) HasResources() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.work.HasResources()
}

// Resource joins path segments onto the aggregated resources/ tree,
// creating the directory if needed.
func (l *ProvisioningLayout[F]) Resource(parts ...string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	root, err := l.work.Resources()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{root}, parts...)...), nil
}

// TmpPath returns the caller-visible scratch directory, joined with
// further path segments.
func (l *ProvisioningLayout[F]) TmpPath(parts ...string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.work.Tmp(parts...)
}

// NewStagedDir acquires a fresh, emptied staged/ output directory.
func (l *ProvisioningLayout[F]) NewStagedDir() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.work.NewStagedDir()
}

// VisitPlugins visits every discovered plugin of the given kind, reading
// its declared options through the shared plugin registry.
func (l *ProvisioningLayout[F]) VisitPlugins(ctx context.Context, kind plugin.Kind, visitor plugin.Visitor) error {
	l.mu.Lock()
	registry := l.deps.Plugins
	l.mu.Unlock()
	if registry == nil {
		return nil
	}
	return registry.VisitPlugins(ctx, kind, visitor)
}

// IsOptionSet reports whether name is present in the current config's
// global options.
func (l *ProvisioningLayout[F]) IsOptionSet(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.config.OptionValue(name)
	return ok
}

// OptionValue returns a global option's value.
func (l *ProvisioningLayout[F]) OptionValue(name string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.config.OptionValue(name)
}

// Options returns a copy of the current global options map.
func (l *ProvisioningLayout[F]) Options() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.config.Options()
}

// Close releases this layout's strong reference to the work area and, on
// the handle's final close, its plugin registry. Double close is a no-op;
// cleanup errors are swallowed.
func (l *ProvisioningLayout[F]) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	_ = l.work.Close(ctx)
	if l.deps.Plugins != nil {
		_ = l.deps.Plugins.Close(ctx)
	}
	return nil
}
