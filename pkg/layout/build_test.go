package layout

import (
	"context"
	"testing"

	"github.com/fplayout/fplayout/pkg/location"
	"github.com/fplayout/fplayout/pkg/pconfig"
	"github.com/fplayout/fplayout/pkg/perrors"
)

func newTestDeps(archives *fakeArchives, baseDir string) Dependencies[*testFP] {
	return Dependencies[*testFP]{
		Factory:          newTestFP,
		Archives:         archives,
		Universe:         noUniverse{},
		ArtifactResolver: noArtifactResolver,
		BaseDir:          baseDir,
	}
}

// TestNew_DependencyOrder checks the spec §8 "dependency order" property: a
// feature pack always appears in OrderedFeaturePacks after every feature
// pack it depends on.
func TestNew_DependencyOrder(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	archives := newFakeArchives()

	cDir := writeFeaturePack(t, root, "c", FeaturePackSpec{})
	aDir := writeFeaturePack(t, root, "a", FeaturePackSpec{
		DirectDeps: []DependencySpec{{Producer: "c", Channel: "stable", Build: "1"}},
	})
	bDir := writeFeaturePack(t, root, "b", FeaturePackSpec{})

	archives.register(mustFPID(t, "a", "1"), aDir)
	archives.register(mustFPID(t, "b", "1"), bDir)
	archives.register(mustFPID(t, "c", "1"), cDir)

	cfg := pconfig.From(nil).
		AddDirect(pconfig.FeaturePackConfig{Location: fullLocation("a", "1")}).
		AddDirect(pconfig.FeaturePackConfig{Location: fullLocation("b", "1")}).
		Build()

	l, err := New[*testFP](ctx, cfg, newTestDeps(archives, t.TempDir()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close(ctx)

	got := producerNames(l.OrderedFeaturePacks())
	want := []string{"c", "a", "b"}
	if len(got) != len(want) {
		t.Fatalf("ordered = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ordered = %v, want %v", got, want)
		}
	}

	if !l.HasFeaturePacks() {
		t.Fatalf("HasFeaturePacks() = false, want true")
	}
	if _, ok := l.FeaturePack(location.ProducerSpec{Producer: "c"}); !ok {
		t.Fatalf("FeaturePack(c) not found")
	}
}

// TestNew_ConvergenceFirstProcessed checks that, absent VERSION_CONVERGENCE,
// the first build seen for a producer wins silently even when a second
// branch proposes a different build.
func TestNew_ConvergenceFirstProcessed(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	archives := newFakeArchives()

	d1Dir := writeFeaturePack(t, root, "d1", FeaturePackSpec{})
	d2Dir := writeFeaturePack(t, root, "d2", FeaturePackSpec{})
	aDir := writeFeaturePack(t, root, "a", FeaturePackSpec{
		DirectDeps: []DependencySpec{{Producer: "d", Channel: "stable", Build: "1"}},
	})
	bDir := writeFeaturePack(t, root, "b", FeaturePackSpec{
		DirectDeps: []DependencySpec{{Producer: "d", Channel: "stable", Build: "2"}},
	})

	archives.register(mustFPID(t, "a", "1"), aDir)
	archives.register(mustFPID(t, "b", "1"), bDir)
	archives.register(mustFPID(t, "d", "1"), d1Dir)
	archives.register(mustFPID(t, "d", "2"), d2Dir)

	cfg := pconfig.From(nil).
		AddDirect(pconfig.FeaturePackConfig{Location: fullLocation("a", "1")}).
		AddDirect(pconfig.FeaturePackConfig{Location: fullLocation("b", "1")}).
		Build()

	l, err := New[*testFP](ctx, cfg, newTestDeps(archives, t.TempDir()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close(ctx)

	d, ok := l.FeaturePack(location.ProducerSpec{Producer: "d"})
	if !ok {
		t.Fatalf("FeaturePack(d) not found")
	}
	if d.FPID().Build() != "1" {
		t.Fatalf("d build = %s, want 1 (first processed)", d.FPID().Build())
	}
}

// TestNew_ConvergenceFail checks that VERSION_CONVERGENCE=FAIL rejects the
// same disagreement TestNew_ConvergenceFirstProcessed accepts.
func TestNew_ConvergenceFail(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	archives := newFakeArchives()

	d1Dir := writeFeaturePack(t, root, "d1", FeaturePackSpec{})
	d2Dir := writeFeaturePack(t, root, "d2", FeaturePackSpec{})
	aDir := writeFeaturePack(t, root, "a", FeaturePackSpec{
		DirectDeps: []DependencySpec{{Producer: "d", Channel: "stable", Build: "1"}},
	})
	bDir := writeFeaturePack(t, root, "b", FeaturePackSpec{
		DirectDeps: []DependencySpec{{Producer: "d", Channel: "stable", Build: "2"}},
	})

	archives.register(mustFPID(t, "a", "1"), aDir)
	archives.register(mustFPID(t, "b", "1"), bDir)
	archives.register(mustFPID(t, "d", "1"), d1Dir)
	archives.register(mustFPID(t, "d", "2"), d2Dir)

	cfg := pconfig.From(nil).
		AddDirect(pconfig.FeaturePackConfig{Location: fullLocation("a", "1")}).
		AddDirect(pconfig.FeaturePackConfig{Location: fullLocation("b", "1")}).
		Build()
	builder := pconfig.From(cfg)
	builder.SetOption(pconfig.OptionVersionConvergence, string(pconfig.Fail))
	cfg = builder.Build()

	_, err := New[*testFP](ctx, cfg, newTestDeps(archives, t.TempDir()))
	if err == nil {
		t.Fatalf("New: expected version conflict error, got nil")
	}
	if !perrors.Is(err, perrors.ReasonVersionConflict) {
		t.Fatalf("New: error = %v, want ReasonVersionConflict", err)
	}
}

// TestNew_PatchRecordedAndRedirected checks that a patch attached to a
// direct entry is resolved and recorded, and that the target is redirected
// away from its original directory to a patched copy.
func TestNew_PatchRecordedAndRedirected(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	archives := newFakeArchives()

	tDir := writeFeaturePack(t, root, "t", FeaturePackSpec{})
	patchDir := writeFeaturePack(t, root, "t-patch", FeaturePackSpec{
		IsPatch:  true,
		PatchFor: "t",
	})

	tFPID := mustFPID(t, "t", "1")
	patchFPID := mustFPID(t, "t-patch", "1")
	archives.register(tFPID, tDir)
	archives.register(patchFPID, patchDir)

	cfg := pconfig.From(nil).
		AddDirect(pconfig.FeaturePackConfig{
			Location: fullLocation("t", "1"),
			Patches:  []location.FPID{patchFPID},
		}).
		Build()

	l, err := New[*testFP](ctx, cfg, newTestDeps(archives, t.TempDir()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close(ctx)

	if !l.HasPatches(tFPID) {
		t.Fatalf("HasPatches(t) = false, want true")
	}
	patches := l.Patches(tFPID)
	if len(patches) != 1 || !patches[0].FPID().Equal(patchFPID) {
		t.Fatalf("Patches(t) = %v, want [%v]", patches, patchFPID)
	}

	fp, ok := l.FeaturePack(location.ProducerSpec{Producer: "t"})
	if !ok {
		t.Fatalf("FeaturePack(t) not found")
	}
	if fp.Dir() == tDir {
		t.Fatalf("t's directory was not redirected to its patched copy")
	}
}

// TestNew_CoordinateFormDirectEntry checks that a coordinate-form direct
// entry (whether a top-level config entry or a feature pack's own declared
// direct dependency) is translated to full form via the universe resolver
// before being resolved, the same way a coordinate-form transitive entry
// already is.
func TestNew_CoordinateFormDirectEntry(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	archives := newFakeArchives()

	aDir := writeFeaturePack(t, root, "a", FeaturePackSpec{})
	aFPID := mustFPID(t, "a", "1")
	archives.register(aFPID, aDir)

	cfg := pconfig.From(nil).
		AddDirect(pconfig.FeaturePackConfig{
			Location: location.FeaturePackLocation{Coordinate: "group:a:1"},
		}).
		Build()

	deps := newTestDeps(archives, t.TempDir())
	deps.Universe = coordinateUniverse{coordinate: "group:a:1", fpid: aFPID}

	l, err := New[*testFP](ctx, cfg, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close(ctx)

	fp, ok := l.FeaturePack(location.ProducerSpec{Producer: "a"})
	if !ok {
		t.Fatalf("FeaturePack(a) not found")
	}
	if !fp.FPID().Equal(aFPID) {
		t.Fatalf("FeaturePack(a).FPID() = %v, want %v", fp.FPID(), aFPID)
	}
}

// TestNew_CoordinateFormDirectSpecDependency checks the same translation
// when the coordinate-form direct entry is declared by a feature pack's own
// spec rather than the top-level config.
func TestNew_CoordinateFormDirectSpecDependency(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	archives := newFakeArchives()

	cDir := writeFeaturePack(t, root, "c", FeaturePackSpec{})
	cFPID := mustFPID(t, "c", "1")
	archives.register(cFPID, cDir)

	aDir := writeFeaturePack(t, root, "a", FeaturePackSpec{
		DirectDeps: []DependencySpec{{Coordinate: "group:c:1"}},
	})
	aFPID := mustFPID(t, "a", "1")
	archives.register(aFPID, aDir)

	cfg := pconfig.From(nil).
		AddDirect(pconfig.FeaturePackConfig{Location: fullLocation("a", "1")}).
		Build()

	deps := newTestDeps(archives, t.TempDir())
	deps.Universe = coordinateUniverse{coordinate: "group:c:1", fpid: cFPID}

	l, err := New[*testFP](ctx, cfg, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close(ctx)

	fp, ok := l.FeaturePack(location.ProducerSpec{Producer: "c"})
	if !ok {
		t.Fatalf("FeaturePack(c) not found")
	}
	if !fp.FPID().Equal(cFPID) {
		t.Fatalf("FeaturePack(c).FPID() = %v, want %v", fp.FPID(), cFPID)
	}
}

// TestInstall_Idempotent checks that installing the same producer twice at
// the same location leaves the layout unchanged rather than duplicating it.
func TestInstall_Idempotent(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	archives := newFakeArchives()

	aDir := writeFeaturePack(t, root, "a", FeaturePackSpec{})
	archives.register(mustFPID(t, "a", "1"), aDir)

	cfg := pconfig.New()
	l, err := New[*testFP](ctx, cfg, newTestDeps(archives, t.TempDir()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close(ctx)

	entry := pconfig.FeaturePackConfig{Location: fullLocation("a", "1")}
	if err := l.Install(ctx, entry, nil); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := l.Install(ctx, entry, nil); err != nil {
		t.Fatalf("second Install: %v", err)
	}

	if got := len(l.Config().Direct()); got != 1 {
		t.Fatalf("direct entries = %d, want 1", got)
	}
	if got := len(l.OrderedFeaturePacks()); got != 1 {
		t.Fatalf("ordered = %d, want 1", got)
	}
}

// TestInstall_CoordinateForm checks that Install resolves a coordinate-form
// entry via the universe resolver before laying it out, rather than passing
// the unresolved coordinate straight to resolveFeaturePack.
func TestInstall_CoordinateForm(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	archives := newFakeArchives()

	aDir := writeFeaturePack(t, root, "a", FeaturePackSpec{})
	aFPID := mustFPID(t, "a", "1")
	archives.register(aFPID, aDir)

	cfg := pconfig.New()
	deps := newTestDeps(archives, t.TempDir())
	deps.Universe = coordinateUniverse{coordinate: "group:a:1", fpid: aFPID}

	l, err := New[*testFP](ctx, cfg, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close(ctx)

	entry := pconfig.FeaturePackConfig{Location: location.FeaturePackLocation{Coordinate: "group:a:1"}}
	if err := l.Install(ctx, entry, nil); err != nil {
		t.Fatalf("Install: %v", err)
	}

	fp, ok := l.FeaturePack(location.ProducerSpec{Producer: "a"})
	if !ok {
		t.Fatalf("FeaturePack(a) not found after coordinate-form install")
	}
	if !fp.FPID().Equal(aFPID) {
		t.Fatalf("FeaturePack(a).FPID() = %v, want %v", fp.FPID(), aFPID)
	}
}

// TestInstallUninstall_RoundTrip checks that installing then uninstalling a
// producer returns the layout to its pre-install state.
func TestInstallUninstall_RoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	archives := newFakeArchives()

	aDir := writeFeaturePack(t, root, "a", FeaturePackSpec{})
	aFPID := mustFPID(t, "a", "1")
	archives.register(aFPID, aDir)

	cfg := pconfig.New()
	l, err := New[*testFP](ctx, cfg, newTestDeps(archives, t.TempDir()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close(ctx)

	if l.HasFeaturePacks() {
		t.Fatalf("HasFeaturePacks() = true before install")
	}

	entry := pconfig.FeaturePackConfig{Location: fullLocation("a", "1")}
	if err := l.Install(ctx, entry, nil); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if !l.HasFeaturePacks() {
		t.Fatalf("HasFeaturePacks() = false after install")
	}

	if err := l.Uninstall(ctx, aFPID, nil); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if l.HasFeaturePacks() {
		t.Fatalf("HasFeaturePacks() = true after uninstall")
	}
	if got := len(l.Config().Direct()); got != 0 {
		t.Fatalf("direct entries = %d, want 0 after uninstall", got)
	}
}
