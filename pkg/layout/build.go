package layout

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/fplayout/fplayout/pkg/location"
	"github.com/fplayout/fplayout/pkg/pconfig"
	"github.com/fplayout/fplayout/pkg/perrors"
	"github.com/fplayout/fplayout/pkg/plugin"
	"github.com/fplayout/fplayout/pkg/telemetry"
	"github.com/fplayout/fplayout/pkg/workarea"
)

// layoutEntry is the common shape step 1 and step 2 of `layout` iterate
// over: a location plus any patches attached at this reference site. A
// config-level entry carries real patches; a spec-declared dependency
// reference never does (only config entries can attach patches).
type layoutEntry struct {
	Loc     location.FeaturePackLocation
	Patches []location.FPID
}

func directConfigEntries(cfg *pconfig.ProvisioningConfig) []layoutEntry {
	direct := cfg.Direct()
	out := make([]layoutEntry, len(direct))
	for i, d := range direct {
		out[i] = layoutEntry{Loc: d.Location, Patches: d.Patches}
	}
	return out
}

func transitiveConfigEntries(cfg *pconfig.ProvisioningConfig) []layoutEntry {
	trans := cfg.Transitive()
	out := make([]layoutEntry, len(trans))
	for i, t := range trans {
		out[i] = layoutEntry{Loc: t.Location, Patches: t.Patches}
	}
	return out
}

func directSpecEntries(spec *FeaturePackSpec) []layoutEntry {
	out := make([]layoutEntry, len(spec.DirectDeps))
	for i, d := range spec.DirectDeps {
		out[i] = layoutEntry{Loc: d.Location()}
	}
	return out
}

func transitiveSpecEntries(spec *FeaturePackSpec) []layoutEntry {
	out := make([]layoutEntry, len(spec.TransitiveDeps))
	for i, d := range spec.TransitiveDeps {
		out[i] = layoutEntry{Loc: d.Location()}
	}
	return out
}

// New acquires a fresh work area and runs the initial build against cfg.
// On any build failure the work area is closed before the error is
// returned.
func New[F FeaturePack](ctx context.Context, cfg *pconfig.ProvisioningConfig, deps Dependencies[F]) (*ProvisioningLayout[F], error) {
	work, err := workarea.Acquire(deps.BaseDir)
	if err != nil {
		return nil, err
	}
	l := &ProvisioningLayout[F]{
		deps:   deps,
		work:   work,
		config: cfg,
	}
	if err := l.Build(ctx, true, nil); err != nil {
		_ = work.Close(ctx)
		return nil, err
	}
	return l, nil
}

// Build drives layout(config, branch, DIRECT_DEP) starting from an empty
// branch map, then post-processes: conflict check, transitive cleanup,
// resolved-version pinning, patch application, plugin materialization.
func (l *ProvisioningLayout[F]) Build(ctx context.Context, cleanupTransitive bool, progress ProgressTracker) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buildLocked(ctx, cleanupTransitive, progress)
}

// buildLocked is Build's body, callable by mutation methods that already
// hold l.mu.
func (l *ProvisioningLayout[F]) buildLocked(ctx context.Context, cleanupTransitive bool, progress ProgressTracker) (err error) {
	if progress == nil {
		progress = noopProgress{}
	}

	buildID := uuid.NewString()
	if l.deps.Telemetry != nil {
		ctx = l.deps.Telemetry.WithContext(ctx)
	}
	ctx = telemetry.WithBuildContext(ctx, buildID, "build")
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		telemetry.EndBuildContext(ctx, buildID, status, err)
	}()

	l.featurePacks = make(map[string]F)
	l.ordered = nil
	l.allPatches = make(map[string]F)
	l.fpPatches = make(map[string][]F)
	l.transitiveDeps = make(map[string]location.ProducerSpec)
	l.resolvedVersions = make(map[string]location.FeaturePackLocation)
	l.mavenProducers = make(map[string]F)
	l.conflicts = make(map[string]map[string]bool)
	l.pluginLocations = make(map[string]PluginLocation)
	l.pendingPatches = make(map[string][]location.FPID)
	l.failOnConvergence = l.convergenceFailsOnDivergence()

	l.work.Reset()

	branch := make(map[string]location.FeaturePackLocation)
	if err := l.layout(ctx, progress, transitiveConfigEntries(l.config), directConfigEntries(l.config), branch, DirectDep); err != nil {
		return err
	}

	if err := l.postBuild(ctx, cleanupTransitive); err != nil {
		return err
	}

	progress.OnComplete()
	return nil
}

func (l *ProvisioningLayout[F]) convergenceFailsOnDivergence() bool {
	v, ok := l.config.OptionValue(pconfig.OptionVersionConvergence)
	if !ok {
		return false
	}
	switch pconfig.VersionConvergence(v) {
	case pconfig.Fail:
		return true
	case pconfig.FirstProcessed, "":
		return false
	default:
		return false
	}
}

// layout is the recursive graph traversal: transitive entries, then direct
// entries, then a post-queue pass over everything freshly registered in
// this call, then unpin.
func (l *ProvisioningLayout[F]) layout(ctx context.Context, progress ProgressTracker, transitiveEntries, directEntries []layoutEntry, branch map[string]location.FeaturePackLocation, kind Type) error {
	var pinnedHere []string
	var enqueue []F

	// 1. Transitive entries.
	for _, e := range transitiveEntries {
		producer := e.Loc.ProducerSpec()
		l.recordPendingPatches(producer, e.Patches)

		if pin, pinned := branch[producer.String()]; pinned {
			if pin.Channel != "" && e.Loc.Channel != "" && pin.Channel != e.Loc.Channel {
				l.recordConflict(producer, pin.String(), e.Loc.String())
				continue
			}
		}

		loc := e.Loc
		if loc.IsCoordinateForm() {
			fp, resolved, err := l.resolveCoordinateEntry(ctx, loc, TransitiveDep)
			if err != nil {
				return err
			}
			loc = resolved
			producer = loc.ProducerSpec()
			l.mavenProducers[e.Loc.Coordinate] = fp
			l.featurePacks[producer.String()] = fp
			enqueue = append(enqueue, fp)
			progress.OnProducer(producer, TransitiveDep)
		}

		l.transitiveDeps[producer.String()] = producer
		if _, pinned := branch[producer.String()]; !pinned {
			branch[producer.String()] = loc
			pinnedHere = append(pinnedHere, producer.String())
		}
	}

	// 2. Direct entries.
	for _, e := range directEntries {
		producer := e.Loc.ProducerSpec()
		l.recordPendingPatches(producer, e.Patches)

		var branchPin *location.FeaturePackLocation
		if pin, ok := branch[producer.String()]; ok {
			pinCopy := pin
			branchPin = &pinCopy
		}

		effective, err := l.resolveVersion(ctx, e.Loc, branchPin)
		if err != nil {
			return err
		}

		if !effective.IsCoordinateForm() {
			if existing, ok := l.featurePacks[producer.String()]; ok {
				l.converge(branchPin, existing.FPID(), effective)
				continue
			}
		} else {
			resolved, err := l.resolveCoordinateLocation(ctx, effective)
			if err != nil {
				return err
			}
			effective = resolved
		}

		fp, err := l.resolveFeaturePack(ctx, effective, kind)
		if err != nil {
			return err
		}

		if e.Loc.IsCoordinateForm() {
			realProducer := fp.FPID().Producer()
			reResolved, err := l.resolveVersion(ctx, fp.FPID().Location(), branchPin)
			if err != nil {
				return err
			}
			if existing, ok := l.featurePacks[realProducer.String()]; ok {
				l.converge(branchPin, existing.FPID(), reResolved)
				continue
			}
			if !reResolved.Equal(fp.FPID().Location()) {
				fp, err = l.resolveFeaturePack(ctx, reResolved, kind)
				if err != nil {
					return err
				}
			}
			l.mavenProducers[e.Loc.Coordinate] = fp
			producer = realProducer
		}

		l.featurePacks[producer.String()] = fp
		enqueue = append(enqueue, fp)
		progress.OnProducer(producer, kind)

		if branchPin == nil {
			branch[producer.String()] = fp.FPID().Location()
			pinnedHere = append(pinnedHere, producer.String())
		}
	}

	// 3. Post-queue.
	for _, fp := range enqueue {
		spec := fp.Spec()
		if err := l.layout(ctx, progress, transitiveSpecEntries(spec), directSpecEntries(spec), branch, TransitiveDep); err != nil {
			return err
		}
		for _, pref := range spec.Plugins {
			l.pluginLocations[pref.ID] = PluginLocation{
				ID:         pref.ID,
				Coordinate: pref.Coordinate,
				RepoID:     pref.RepoID,
				Producer:   fp.FPID().Producer().String(),
				Kind:       fp.Kind(),
			}
		}
		if err := l.work.CopyFeaturePack(fp.Dir()); err != nil {
			return err
		}
		l.ordered = append(l.ordered, fp)
	}

	// 4. Unpin.
	for _, p := range pinnedHere {
		delete(branch, p)
	}

	return nil
}

// resolveVersion reconciles a dependency's declared location against any
// branch pin already in effect for its producer.
func (l *ProvisioningLayout[F]) resolveVersion(ctx context.Context, fpl location.FeaturePackLocation, pin *location.FeaturePackLocation) (location.FeaturePackLocation, error) {
	if pin == nil {
		return l.normalize(ctx, fpl)
	}
	if pin.Channel == "" || pin.Channel == fpl.Channel {
		if pin.Build == "" {
			return l.normalize(ctx, fpl)
		}
		return fpl.WithBuild(pin.Build), nil
	}
	l.recordConflict(fpl.ProducerSpec(), fpl.String(), pin.String())
	return *pin, nil
}

// normalize fills in a feature-pack location's channel and build when
// either is left unspecified, consulting the universe's default channel
// and the channel's latest build.
func (l *ProvisioningLayout[F]) normalize(ctx context.Context, fpl location.FeaturePackLocation) (location.FeaturePackLocation, error) {
	if fpl.IsCoordinateForm() {
		return fpl, nil
	}
	if fpl.Channel != "" && fpl.Build != "" {
		return fpl, nil
	}
	if fpl.Channel != "" {
		channel, err := l.deps.Universe.GetChannel(ctx, fpl)
		if err != nil {
			return fpl, err
		}
		build, err := channel.LatestBuild(ctx, fpl)
		if err != nil {
			return fpl, err
		}
		resolved := fpl.WithBuild(build)
		l.resolvedVersions[fpl.ProducerSpec().String()] = resolved
		return resolved, nil
	}
	universe, err := l.deps.Universe.GetUniverse(ctx, fpl.Universe)
	if err != nil {
		return fpl, err
	}
	defaultChannel, err := universe.DefaultChannel(ctx, fpl.Producer)
	if err != nil {
		return fpl, err
	}
	return l.normalize(ctx, fpl.WithChannel(defaultChannel, fpl.Frequency))
}

// converge accepts the first build seen for a producer silently, unless
// channels differ (always a conflict) or VERSION_CONVERGENCE=FAIL and
// builds differ.
func (l *ProvisioningLayout[F]) converge(pin *location.FeaturePackLocation, current location.FPID, effective location.FeaturePackLocation) {
	if pin != nil && pin.HasBuild() {
		return
	}
	currentLoc := current.Location()
	if currentLoc.Equal(effective) {
		return
	}
	if currentLoc.Channel != effective.Channel {
		l.recordConflict(currentLoc.ProducerSpec(), currentLoc.String(), effective.String())
		return
	}
	if l.failOnConvergence && currentLoc.Build != effective.Build {
		l.recordConflict(currentLoc.ProducerSpec(), currentLoc.String(), effective.String())
	}
}

// resolveCoordinateEntry resolves a coordinate-form location to a concrete
// F, used by step 1 for transitive coordinate-form entries.
func (l *ProvisioningLayout[F]) resolveCoordinateEntry(ctx context.Context, loc location.FeaturePackLocation, kind Type) (F, location.FeaturePackLocation, error) {
	var zero F
	resolved, err := l.resolveCoordinateLocation(ctx, loc)
	if err != nil {
		return zero, location.FeaturePackLocation{}, err
	}
	fp, err := l.resolveFeaturePack(ctx, resolved, kind)
	if err != nil {
		return zero, location.FeaturePackLocation{}, err
	}
	return fp, resolved, nil
}

// resolveCoordinateLocation resolves a coordinate-form location to its
// concrete (producer, channel, build) location via the universe resolver,
// recording it among the resolved versions.
func (l *ProvisioningLayout[F]) resolveCoordinateLocation(ctx context.Context, loc location.FeaturePackLocation) (location.FeaturePackLocation, error) {
	fpid, err := l.deps.Universe.ResolveLatestBuild(ctx, loc)
	if err != nil {
		return location.FeaturePackLocation{}, err
	}
	resolved := fpid.Location()
	l.resolvedVersions[resolved.ProducerSpec().String()] = resolved
	return resolved, nil
}

// resolveFeaturePack resolves a normalized (non-coordinate, concrete-build)
// location to an F, translating any coordinate-form dependencies its spec
// declares into full form.
func (l *ProvisioningLayout[F]) resolveFeaturePack(ctx context.Context, loc location.FeaturePackLocation, kind Type) (fp F, err error) {
	var zero F
	if !loc.HasBuild() && !loc.IsCoordinateForm() {
		normalized, err := l.normalize(ctx, loc)
		if err != nil {
			return zero, err
		}
		loc = normalized
	}
	fpid, err := loc.ToFPID()
	if err != nil {
		return zero, perrors.Wrap(perrors.ReasonUnknownFeaturePack, "resolving feature pack location", err)
	}

	producer := fpid.Producer().String()
	ctx = telemetry.WithFeaturePackContext(ctx, telemetry.BuildIDFromContext(ctx), fpid.String(), producer, string(kind))
	defer func() { telemetry.EndFeaturePackContext(ctx, telemetry.BuildIDFromContext(ctx), producer, string(kind), err) }()

	dir, err := l.deps.Archives.ResolveFeaturePack(ctx, fpid)
	if err != nil {
		return zero, perrors.Wrap(perrors.ReasonUnknownFeaturePack, "resolving feature pack archive", err).WithFPID(fpid.String())
	}
	spec, err := LoadSpec(dir)
	if err != nil {
		return zero, err
	}
	spec, err = l.translateCoordinateDeps(ctx, spec)
	if err != nil {
		return zero, err
	}
	return l.deps.Factory(fpid, spec, dir, kind), nil
}

// translateCoordinateDeps rewrites every coordinate-form dependency in spec
// that resolves to full form, preserving declaration order exactly (spec
// §4.2.1).
func (l *ProvisioningLayout[F]) translateCoordinateDeps(ctx context.Context, spec *FeaturePackSpec) (*FeaturePackSpec, error) {
	working := spec
	for i, d := range working.TransitiveDeps {
		if d.Coordinate == "" {
			continue
		}
		resolved, err := l.deps.Universe.ResolveLatestBuild(ctx, d.Location())
		if err != nil {
			return nil, err
		}
		working = working.withDependencyReplaced(true, i, resolved.Location())
	}
	for i, d := range working.DirectDeps {
		if d.Coordinate == "" {
			continue
		}
		resolved, err := l.deps.Universe.ResolveLatestBuild(ctx, d.Location())
		if err != nil {
			return nil, err
		}
		working = working.withDependencyReplaced(false, i, resolved.Location())
	}
	return working, nil
}

func (l *ProvisioningLayout[F]) recordConflict(producer location.ProducerSpec, fpids ...string) {
	key := producer.String()
	set, ok := l.conflicts[key]
	if !ok {
		set = make(map[string]bool)
		l.conflicts[key] = set
	}
	for _, f := range fpids {
		set[f] = true
	}
}

func (l *ProvisioningLayout[F]) recordPendingPatches(producer location.ProducerSpec, patches []location.FPID) {
	if len(patches) == 0 {
		return
	}
	l.pendingPatches[producer.String()] = append(l.pendingPatches[producer.String()], patches...)
}

// postBuild runs the passes that only make sense once every feature pack
// in the layout is known: conflict check, transitive cleanup,
// resolved-version pinning, patch application, and plugin materialization.
// Option reconciliation is not part of it; mutations run it afterwards.
func (l *ProvisioningLayout[F]) postBuild(ctx context.Context, cleanupTransitive bool) error {
	if len(l.conflicts) > 0 {
		conflicts := make(map[string][]string, len(l.conflicts))
		for producer, set := range l.conflicts {
			list := make([]string, 0, len(set))
			for f := range set {
				list = append(list, f)
			}
			conflicts[producer] = list
		}
		return perrors.VersionConflict(conflicts)
	}

	var notFound []string
	builder := pconfig.From(l.config)
	changed := false
	for key, producer := range l.transitiveDeps {
		if _, ok := l.featurePacks[key]; ok {
			continue
		}
		if cleanupTransitive && !l.config.HasProducer(producer) {
			continue
		}
		if cleanupTransitive {
			builder.RemoveTransitive(producer)
			changed = true
			continue
		}
		notFound = append(notFound, key)
	}
	if len(notFound) > 0 {
		return perrors.TransitiveDependencyNotFound(notFound)
	}

	for _, resolved := range l.resolvedVersions {
		producer := resolved.ProducerSpec()
		if _, _, ok := l.config.FindDirect(producer); ok {
			continue
		}
		if existing, ok := l.config.FindTransitive(producer); ok && existing.Location.Equal(resolved) {
			continue
		}
		builder.AddTransitive(pconfig.FeaturePackConfig{Location: resolved, Transitive: true})
		changed = true
	}
	if changed {
		l.config = builder.Build()
	}

	if err := l.applyPatches(ctx); err != nil {
		return err
	}

	return l.materializePlugins(ctx)
}

// materializePlugins resolves every accumulated plugin artifact reference
// to a local manifest path and loads it into the plugin registry for
// option discovery.
func (l *ProvisioningLayout[F]) materializePlugins(ctx context.Context) error {
	if len(l.pluginLocations) == 0 {
		return nil
	}
	if _, err := l.work.Plugins(); err != nil {
		return err
	}
	for id, pl := range l.pluginLocations {
		resolver, ok := l.deps.ArtifactResolver(pl.RepoID)
		if !ok {
			return perrors.New(perrors.ReasonArtifactResolverMissing, "no artifact resolver registered for repo").
				WithDetail("repoId", pl.RepoID).WithDetail("plugin", id)
		}
		manifestPath, err := resolver.Resolve(ctx, pl.Coordinate)
		if err != nil {
			return fmt.Errorf("layout: materializing plugin %s: %w", id, err)
		}
		if l.deps.Plugins == nil {
			continue
		}
		loader := plugin.NewManifestLoader(filepath.Dir(manifestPath))
		manifest, err := loader.LoadFromFile(manifestPath)
		if err != nil {
			return fmt.Errorf("layout: loading plugin manifest for %s: %w", id, err)
		}
		kind := plugin.KindFeaturePack
		if pl.Kind == PatchType {
			kind = plugin.KindPatch
		}
		if err := l.deps.Plugins.Load(ctx, pl.Producer, kind, manifest); err != nil {
			return fmt.Errorf("layout: loading plugin module for %s: %w", id, err)
		}
	}
	return nil
}
