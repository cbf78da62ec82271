package layout

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/fplayout/fplayout/pkg/location"
	"github.com/fplayout/fplayout/pkg/resolve"
)

// testFP is the minimal F used across pkg/layout tests: just the embedded
// Core, nothing extra.
type testFP struct {
	Core
}

func newTestFP(fpid location.FPID, spec *FeaturePackSpec, dir string, kind Type) *testFP {
	return &testFP{Core: NewCore(fpid, spec, dir, kind)}
}

// otherTestFP is a distinct F type used as Transform's target, so the test
// exercises a genuine type conversion rather than a no-op identity map.
type otherTestFP struct {
	Core
}

func newOtherTestFP(fpid location.FPID, spec *FeaturePackSpec, dir string, kind Type) *otherTestFP {
	return &otherTestFP{Core: NewCore(fpid, spec, dir, kind)}
}

// mustFPID builds an FPID for producer on the "stable" channel at the given
// build, skipping universe resolution entirely (layout.normalize short
// circuits whenever both Channel and Build are already set).
func mustFPID(t *testing.T, producer, build string) location.FPID {
	t.Helper()
	fpid, err := location.NewFPID(location.UniverseSpec{}, producer, "stable", "", build)
	if err != nil {
		t.Fatalf("NewFPID(%s, %s): %v", producer, build, err)
	}
	return fpid
}

func fullLocation(producer, build string) location.FeaturePackLocation {
	return location.FeaturePackLocation{Producer: producer, Channel: "stable", Build: build}
}

// writeFeaturePack materializes a real feature-pack directory containing a
// real fplayout-spec.yaml, since LoadSpec reads straight off disk.
func writeFeaturePack(t *testing.T, root, name string, spec FeaturePackSpec) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	data, err := yaml.Marshal(spec)
	if err != nil {
		t.Fatalf("marshal spec for %s: %v", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "fplayout-spec.yaml"), data, 0o644); err != nil {
		t.Fatalf("write spec for %s: %v", name, err)
	}
	return dir
}

// fakeArchives resolves FPIDs to directories registered by the test via
// register, failing loudly on any unregistered lookup.
type fakeArchives struct {
	dirs map[string]string
}

func newFakeArchives() *fakeArchives {
	return &fakeArchives{dirs: make(map[string]string)}
}

func (f *fakeArchives) register(fpid location.FPID, dir string) {
	f.dirs[fpid.String()] = dir
}

func (f *fakeArchives) ResolveFeaturePack(_ context.Context, fpid location.FPID) (string, error) {
	dir, ok := f.dirs[fpid.String()]
	if !ok {
		return "", fmt.Errorf("fakeArchives: no directory registered for %s", fpid.String())
	}
	return dir, nil
}

// noUniverse is a resolve.UniverseResolver that fails any call. It proves a
// test never needed universe resolution, which holds whenever every
// location carries both an explicit channel and an explicit build.
type noUniverse struct{}

func (noUniverse) GetUniverse(context.Context, location.UniverseSpec) (resolve.Universe, error) {
	return nil, fmt.Errorf("noUniverse: unexpected GetUniverse call")
}

func (noUniverse) ResolveLatestBuild(context.Context, location.FeaturePackLocation) (location.FPID, error) {
	return location.FPID{}, fmt.Errorf("noUniverse: unexpected ResolveLatestBuild call")
}

func (noUniverse) GetChannel(context.Context, location.FeaturePackLocation) (resolve.Channel, error) {
	return nil, fmt.Errorf("noUniverse: unexpected GetChannel call")
}

func (noUniverse) GetArtifactResolver(context.Context, string) (resolve.ArtifactResolver, error) {
	return nil, fmt.Errorf("noUniverse: unexpected GetArtifactResolver call")
}

func noArtifactResolver(string) (resolve.ArtifactResolver, bool) {
	return nil, false
}

// coordinateUniverse is a resolve.UniverseResolver that resolves one
// specific coordinate string to a fixed FPID and fails on any other call.
type coordinateUniverse struct {
	coordinate string
	fpid       location.FPID
}

func (c coordinateUniverse) GetUniverse(context.Context, location.UniverseSpec) (resolve.Universe, error) {
	return nil, fmt.Errorf("coordinateUniverse: unexpected GetUniverse call")
}

func (c coordinateUniverse) ResolveLatestBuild(_ context.Context, loc location.FeaturePackLocation) (location.FPID, error) {
	if loc.Coordinate != c.coordinate {
		return location.FPID{}, fmt.Errorf("coordinateUniverse: unexpected coordinate %q", loc.Coordinate)
	}
	return c.fpid, nil
}

func (c coordinateUniverse) GetChannel(context.Context, location.FeaturePackLocation) (resolve.Channel, error) {
	return nil, fmt.Errorf("coordinateUniverse: unexpected GetChannel call")
}

func (c coordinateUniverse) GetArtifactResolver(context.Context, string) (resolve.ArtifactResolver, error) {
	return nil, fmt.Errorf("coordinateUniverse: unexpected GetArtifactResolver call")
}

func producerNames(fps []*testFP) []string {
	out := make([]string, len(fps))
	for i, fp := range fps {
		out[i] = fp.FPID().Producer().String()
	}
	return out
}
