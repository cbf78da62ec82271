package layout

import (
	"context"
	"testing"

	"github.com/fplayout/fplayout/pkg/location"
	"github.com/fplayout/fplayout/pkg/pconfig"
	"github.com/fplayout/fplayout/pkg/resolve"
)

// poisonArchives and poisonUniverse fail the test the moment any of their
// methods is called. Transform must map l's already-resolved state directly
// rather than re-running resolution against the new Dependencies, so a
// Transform call wired to these must never touch them.
type poisonArchives struct{ t *testing.T }

func (p poisonArchives) ResolveFeaturePack(context.Context, location.FPID) (string, error) {
	p.t.Fatalf("unexpected ResolveFeaturePack call during Transform")
	return "", nil
}

type poisonUniverse struct{ t *testing.T }

func (p poisonUniverse) GetUniverse(context.Context, location.UniverseSpec) (resolve.Universe, error) {
	p.t.Fatalf("unexpected GetUniverse call during Transform")
	return nil, nil
}

func (p poisonUniverse) ResolveLatestBuild(context.Context, location.FeaturePackLocation) (location.FPID, error) {
	p.t.Fatalf("unexpected ResolveLatestBuild call during Transform")
	return location.FPID{}, nil
}

func (p poisonUniverse) GetChannel(context.Context, location.FeaturePackLocation) (resolve.Channel, error) {
	p.t.Fatalf("unexpected GetChannel call during Transform")
	return nil, nil
}

func (p poisonUniverse) GetArtifactResolver(context.Context, string) (resolve.ArtifactResolver, error) {
	p.t.Fatalf("unexpected GetArtifactResolver call during Transform")
	return nil, nil
}

// TestTransform_MapsResolvedStateWithoutReResolving builds a layout with a
// patched feature pack, transforms it to a distinct F type, and checks that
// every bookkeeping map (ordering, patches) is carried over converted rather
// than recomputed, by wiring the target Dependencies to collaborators that
// fail the test if called at all.
func TestTransform_MapsResolvedStateWithoutReResolving(t *testing.T) {
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

	poisonDeps := Dependencies[*otherTestFP]{
		Factory:          newOtherTestFP,
		Archives:         poisonArchives{t: t},
		Universe:         poisonUniverse{t: t},
		ArtifactResolver: noArtifactResolver,
	}

	g, err := Transform[*testFP, *otherTestFP](ctx, l, poisonDeps)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	defer g.Close(ctx)

	ordered := g.OrderedFeaturePacks()
	if len(ordered) != 1 {
		t.Fatalf("ordered = %d entries, want 1", len(ordered))
	}
	if !ordered[0].FPID().Equal(tFPID) {
		t.Fatalf("ordered[0].FPID() = %v, want %v", ordered[0].FPID(), tFPID)
	}
	if ordered[0].Dir() == tDir {
		t.Fatalf("transformed t did not carry over its patched (redirected) directory")
	}

	if !g.HasPatches(tFPID) {
		t.Fatalf("HasPatches(t) = false, want true")
	}
	patches := g.Patches(tFPID)
	if len(patches) != 1 || !patches[0].FPID().Equal(patchFPID) {
		t.Fatalf("Patches(t) = %v, want [%v]", patches, patchFPID)
	}

	fp, ok := g.FeaturePack(location.ProducerSpec{Producer: "t"})
	if !ok {
		t.Fatalf("FeaturePack(t) not found on transformed layout")
	}
	if !fp.FPID().Equal(tFPID) {
		t.Fatalf("FeaturePack(t).FPID() = %v, want %v", fp.FPID(), tFPID)
	}

	if len(g.Config().Direct()) != 1 {
		t.Fatalf("Config().Direct() = %d entries, want 1 (carried over from l)", len(g.Config().Direct()))
	}
}
