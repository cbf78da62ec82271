// Package resolve declares the thin boundary to external universe, channel,
// and artifact resolvers plus two concrete adapters: a
// SQLite-backed catalog resolver and an SFTP-backed artifact resolver. The
// engine itself never fetches bytes from the network; it only calls
// through these interfaces.
package resolve

import (
	"context"

	"github.com/fplayout/fplayout/pkg/location"
)

// UpdateRequest asks a Channel whether a newer build is available for an
// installed feature pack.
type UpdateRequest struct {
	Installed location.FPID
	Patches   []location.FPID
}

// UpdatePlan proposes a replacement location and/or additional patches for
// a single producer, or is empty when there is nothing to change.
type UpdatePlan struct {
	Installed  location.FeaturePackLocation
	New        location.FeaturePackLocation
	NewPatches []location.FPID
	Transitive bool
}

// IsEmpty reports whether the plan proposes no change.
func (p UpdatePlan) IsEmpty() bool {
	return p.New.Equal(p.Installed) && len(p.NewPatches) == 0
}

// Channel is a named series of builds within a producer.
type Channel interface {
	Name() string
	LatestBuild(ctx context.Context, fpl location.FeaturePackLocation) (string, error)
	Resolve(ctx context.Context, fpl location.FeaturePackLocation) (string, error)
	IsResolved(ctx context.Context, fpl location.FeaturePackLocation) (bool, error)
	GetUpdatePlan(ctx context.Context, req UpdateRequest) (UpdatePlan, error)
}

// BaseChannel implements Channel.GetUpdatePlan's default policy:
// propose replacing the build in the new location if latest differs from
// installed, always returning a (possibly empty) plan. Concrete Channel
// implementations embed BaseChannel and only need to implement Name,
// LatestBuild, Resolve, and IsResolved.
type BaseChannel struct {
	LatestBuildFunc func(ctx context.Context, fpl location.FeaturePackLocation) (string, error)
}

// GetUpdatePlan implements the default update-plan policy in terms of
// LatestBuildFunc.
func (b BaseChannel) GetUpdatePlan(ctx context.Context, req UpdateRequest) (UpdatePlan, error) {
	installedLoc := req.Installed.Location()
	latest, err := b.LatestBuildFunc(ctx, installedLoc)
	if err != nil {
		return UpdatePlan{}, err
	}
	if latest == installedLoc.Build {
		return UpdatePlan{Installed: installedLoc, New: installedLoc}, nil
	}
	return UpdatePlan{
		Installed: installedLoc,
		New:       installedLoc.WithBuild(latest),
	}, nil
}

// UniverseResolver is the boundary to "what is the latest build of
// producer P on channel C" and "what is P's default channel".
type UniverseResolver interface {
	GetUniverse(ctx context.Context, spec location.UniverseSpec) (Universe, error)
	ResolveLatestBuild(ctx context.Context, fpl location.FeaturePackLocation) (location.FPID, error)
	GetChannel(ctx context.Context, fpl location.FeaturePackLocation) (Channel, error)
	GetArtifactResolver(ctx context.Context, repoID string) (ArtifactResolver, error)
}

// Universe answers producer-default-channel queries for a single universe.
type Universe interface {
	DefaultChannel(ctx context.Context, producer string) (string, error)
	GetChannel(ctx context.Context, producer, channel string) (Channel, error)
}

// ArtifactResolver resolves plugin and feature-pack archive artifact
// references to local filesystem paths.
type ArtifactResolver interface {
	Resolve(ctx context.Context, loc string) (string, error)
}
