package layout

import (
	"context"

	"github.com/fplayout/fplayout/pkg/location"
	"github.com/fplayout/fplayout/pkg/pconfig"
	"github.com/fplayout/fplayout/pkg/perrors"
	"github.com/fplayout/fplayout/pkg/telemetry"
)

func mutationStatus(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// Install runs the common rebuild shape
// (builder edit, rebuild, options reconciliation) wrapping the four-way
// case split on patch / coordinate-form / already-installed / new entry.
func (l *ProvisioningLayout[F]) Install(ctx context.Context, entry pconfig.FeaturePackConfig, options map[string]string) (err error) {
	ctx = telemetry.WithMutationContext(ctx, "install")
	defer func() { telemetry.EndMutationContext(ctx, "install", mutationStatus(err), err) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.deps.Policy != nil {
		producer := entry.Location.ProducerSpec()
		if err = l.deps.Policy.GateOperation(ctx, "install", producer, map[string]string{
			"location":   entry.Location.String(),
			"transitive": boolString(entry.Transitive),
		}); err != nil {
			return err
		}
	}

	builder := pconfig.From(l.config)
	if err = l.applyInstall(ctx, builder, entry); err != nil {
		return err
	}
	l.config = builder.Build()
	return l.rebuildAndReconcile(ctx, options, true)
}

// Uninstall removes a producer or patch from the configuration and rebuilds.
func (l *ProvisioningLayout[F]) Uninstall(ctx context.Context, fpid location.FPID, options map[string]string) (err error) {
	ctx = telemetry.WithMutationContext(ctx, "uninstall")
	defer func() { telemetry.EndMutationContext(ctx, "uninstall", mutationStatus(err), err) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.deps.Policy != nil {
		if err = l.deps.Policy.GateOperation(ctx, "uninstall", fpid.Producer(), map[string]string{
			"fpid": fpid.String(),
		}); err != nil {
			return err
		}
	}

	builder := pconfig.From(l.config)
	if err = l.applyUninstall(builder, fpid); err != nil {
		return err
	}
	l.config = builder.Build()
	return l.rebuildAndReconcile(ctx, options, true)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Apply reconciles an update plan against the configuration, then runs
// its installs, then its uninstalls, then a single rebuild.
func (l *ProvisioningLayout[F]) Apply(ctx context.Context, plan ProvisioningPlan, options map[string]string) (err error) {
	ctx = telemetry.WithMutationContext(ctx, "apply")
	defer func() { telemetry.EndMutationContext(ctx, "apply", mutationStatus(err), err) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	builder := pconfig.From(l.config)

	for _, update := range plan.Updates {
		producer := update.Installed.ProducerSpec()
		if direct, _, ok := l.config.FindDirect(producer); ok && direct.Location.Equal(update.Installed) {
			direct.Location = update.New
			direct.Patches = append(direct.Patches, update.NewPatches...)
			builder.AddDirect(direct)
			continue
		}
		if trans, ok := l.config.FindTransitive(producer); ok && trans.Location.Equal(update.Installed) {
			trans.Location = update.New
			trans.Patches = append(trans.Patches, update.NewPatches...)
			builder.AddTransitive(trans)
			continue
		}
		builder.AddTransitive(pconfig.FeaturePackConfig{Location: update.New, Transitive: true, Patches: update.NewPatches})
	}

	for _, entry := range plan.Installs {
		if l.deps.Policy != nil {
			if err = l.deps.Policy.GateOperation(ctx, "install", entry.Location.ProducerSpec(), map[string]string{
				"location": entry.Location.String(),
			}); err != nil {
				return err
			}
		}
		if err = l.applyInstall(ctx, builder, entry); err != nil {
			return err
		}
	}
	for _, fpid := range plan.Uninstalls {
		if l.deps.Policy != nil {
			if err = l.deps.Policy.GateOperation(ctx, "uninstall", fpid.Producer(), map[string]string{
				"fpid": fpid.String(),
			}); err != nil {
				return err
			}
		}
		if err = l.applyUninstall(builder, fpid); err != nil {
			return err
		}
	}

	l.config = builder.Build()
	return l.rebuildAndReconcile(ctx, options, true)
}

// applyInstall mutates builder through the install case split (patch /
// coordinate-form / already-installed / new entry), reading current
// install state from l.config/l.featurePacks, the pre-rebuild snapshot.
func (l *ProvisioningLayout[F]) applyInstall(ctx context.Context, builder *pconfig.Builder, entry pconfig.FeaturePackConfig) error {
	loc := entry.Location

	if loc.IsCoordinateForm() {
		resolved, err := l.resolveCoordinateLocation(ctx, loc)
		if err != nil {
			return err
		}
		loc = resolved
		entry.Location = loc
	} else if !loc.HasBuild() {
		fpid, err := l.deps.Universe.ResolveLatestBuild(ctx, loc)
		if err != nil {
			return err
		}
		loc = fpid.Location()
		entry.Location = loc
	}

	fp, err := l.resolveFeaturePack(ctx, loc, DirectDep)
	if err != nil {
		return err
	}

	if fp.Spec().IsPatch {
		patchFPID, err := entry.Location.ToFPID()
		if err != nil {
			return err
		}
		return l.applyPatchInstall(builder, patchFPID, fp.Spec().PatchFor)
	}

	producer := loc.ProducerSpec()

	if direct, _, ok := l.config.FindDirect(producer); ok {
		if !entry.Transitive {
			builder.AddDirect(entry)
			return nil
		}
		_ = direct
		builder.DemoteToTransitive(producer)
		return nil
	}
	if _, ok := l.config.FindTransitive(producer); ok {
		if entry.Transitive {
			builder.AddTransitive(entry)
			return nil
		}
		index := builder.EarliestDependentIndex(producer, l.dependencyGraph())
		builder.PromoteToDirect(producer, index)
		return nil
	}

	entry.Transitive = false
	builder.AddDirect(entry)
	return nil
}

// applyPatchInstall attaches a patch to its target producer's config
// entry, adding a transitive placeholder for the target if it carries no
// entry of its own yet.
func (l *ProvisioningLayout[F]) applyPatchInstall(builder *pconfig.Builder, patchFPID location.FPID, patchFor string) error {
	target, ok := l.findInstalledProducer(patchFor)
	if !ok {
		return perrors.New(perrors.ReasonPatchNotApplicable, "patch target is not installed").WithProducer(patchFor)
	}
	if direct, _, ok := l.config.FindDirect(target); ok && direct.HasPatch(patchFPID) {
		return perrors.New(perrors.ReasonPatchAlreadyApplied, "patch already applied").WithFPID(patchFPID.String())
	}
	if trans, ok := l.config.FindTransitive(target); ok && trans.HasPatch(patchFPID) {
		return perrors.New(perrors.ReasonPatchAlreadyApplied, "patch already applied").WithFPID(patchFPID.String())
	}
	if !l.config.HasProducer(target) {
		if existing, ok := l.featurePacks[target.String()]; ok {
			builder.AddTransitive(pconfig.FeaturePackConfig{Location: existing.FPID().Location(), Transitive: true})
		}
	}
	builder.AddPatch(target, patchFPID)
	return nil
}

// applyUninstall mutates builder to drop a direct, transitive, or patch entry.
func (l *ProvisioningLayout[F]) applyUninstall(builder *pconfig.Builder, fpid location.FPID) error {
	if patchF, ok := l.allPatches[fpid.String()]; ok {
		target, ok := l.findInstalledProducer(patchF.Spec().PatchFor)
		if !ok {
			return perrors.New(perrors.ReasonUnknownFeaturePack, "patch target is no longer installed").WithFPID(fpid.String())
		}
		builder.RemovePatch(target, fpid)
		return nil
	}

	producer := fpid.Producer()
	if direct, _, ok := l.config.FindDirect(producer); ok {
		if fpid.Build() != "" && direct.Location.Build != "" && direct.Location.Build != fpid.Build() {
			return perrors.New(perrors.ReasonUnknownFeaturePack, "installed build does not match uninstall request").
				WithProducer(producer.String()).WithFPID(fpid.String())
		}
		directCountAfter := len(l.config.Direct()) - 1
		builder.RemoveDirect(producer)
		if directCountAfter == 0 {
			builder.ClearOptions()
		}
		return nil
	}
	if _, ok := l.config.FindTransitive(producer); ok {
		builder.RemoveTransitive(producer)
		return nil
	}
	return perrors.New(perrors.ReasonUnknownFeaturePack, "producer is not installed").WithProducer(producer.String())
}

// findInstalledProducer resolves a patch's PatchFor string against the
// currently built feature packs, tolerating either a bare producer name or
// a full ProducerSpec.String() form.
func (l *ProvisioningLayout[F]) findInstalledProducer(patchFor string) (location.ProducerSpec, bool) {
	for _, fp := range l.featurePacks {
		if l.patchTargetsProducer(patchFor, fp.FPID().Producer()) {
			return fp.FPID().Producer(), true
		}
	}
	return location.ProducerSpec{}, false
}

// dependencyGraph snapshots each currently-built F's declared dependency
// producers, keyed by its own producer string, for
// Builder.EarliestDependentIndex.
func (l *ProvisioningLayout[F]) dependencyGraph() map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(l.featurePacks))
	for key, fp := range l.featurePacks {
		set := make(map[string]bool)
		for _, d := range fp.Spec().TransitiveDeps {
			set[d.Location().ProducerSpec().String()] = true
		}
		for _, d := range fp.Spec().DirectDeps {
			set[d.Location().ProducerSpec().String()] = true
		}
		out[key] = set
	}
	return out
}

// rebuildAndReconcile re-runs the builder against l.config and then
// re-derives options, the common tail of every mutation.
func (l *ProvisioningLayout[F]) rebuildAndReconcile(ctx context.Context, extraOptions map[string]string, cleanupTransitive bool) error {
	if err := l.buildLocked(ctx, cleanupTransitive, nil); err != nil {
		return err
	}
	return l.initPluginOptions(ctx, extraOptions, cleanupTransitive)
}
