package commands

import (
	"github.com/fplayout/fplayout/pkg/layout"
	"github.com/fplayout/fplayout/pkg/location"
)

// resolvedPack is the concrete layout.FeaturePack the CLI lays out: just
// the Core fields, no additional per-pack state. The factory below returns
// a pointer since Core's FeaturePack methods have pointer receivers.
type resolvedPack struct {
	layout.Core
}

func newResolvedPack(fpid location.FPID, spec *layout.FeaturePackSpec, dir string, kind layout.Type) *resolvedPack {
	return &resolvedPack{Core: layout.NewCore(fpid, spec, dir, kind)}
}
