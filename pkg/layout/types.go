// Package layout implements the core of the provisioning engine: the
// generic FeaturePackLayout[F]/ProvisioningLayout[F] pair, the recursive
// `layout` graph traversal (version resolution, convergence, ordering), the
// patch applicator, the mutation API, and the options/plugins driver. This
// is the core component; everything else in this module is plumbing
// around it.
package layout

import (
	"context"
	"sync"

	"github.com/fplayout/fplayout/pkg/location"
	"github.com/fplayout/fplayout/pkg/pconfig"
	"github.com/fplayout/fplayout/pkg/plugin"
	"github.com/fplayout/fplayout/pkg/resolve"
	"github.com/fplayout/fplayout/pkg/telemetry"
	"github.com/fplayout/fplayout/pkg/workarea"
)

// Type tags the role a resolved feature pack plays in a layout.
type Type string

const (
	DirectDep     Type = "DIRECT_DEP"
	TransitiveDep Type = "TRANSITIVE_DEP"
	PatchType     Type = "PATCH"
)

// FeaturePack is the capability every user-chosen F type must expose. It
// mirrors the Java FeaturePackLayout<F> self-referential generic: instead
// of a type hierarchy, F is a type parameter constrained to this
// interface.
type FeaturePack interface {
	FPID() location.FPID
	Spec() *FeaturePackSpec
	Dir() string
	Kind() Type
}

// Core is the base struct a consumer's F type embeds to get FeaturePack for
// free; consumers needing extra fields define their own struct embedding
// Core and a matching Factory.
type Core struct {
	fpid location.FPID
	spec *FeaturePackSpec
	dir  string
	kind Type
}

func (c *Core) FPID() location.FPID    { return c.fpid }
func (c *Core) Spec() *FeaturePackSpec { return c.spec }
func (c *Core) Dir() string            { return c.dir }
func (c *Core) Kind() Type             { return c.kind }

// SetDir updates the working directory pointer, used by the patch
// applicator when it redirects an F to its patched copy.
func (c *Core) SetDir(dir string) { c.dir = dir }

// NewCore constructs the base Core fields; consumer Factory
// implementations call this to fill in the embedded struct.
func NewCore(fpid location.FPID, spec *FeaturePackSpec, dir string, kind Type) Core {
	return Core{fpid: fpid, spec: spec, dir: dir, kind: kind}
}

// Factory constructs an F from its resolved parts.
type Factory[F FeaturePack] func(fpid location.FPID, spec *FeaturePackSpec, dir string, kind Type) F

// ArchiveResolver resolves a feature-pack FPID to the on-disk directory of
// its unpacked archive contents. This is the external
// archive-reader/copier collaborator.
type ArchiveResolver interface {
	ResolveFeaturePack(ctx context.Context, fpid location.FPID) (dir string, err error)
}

// ProgressTracker reports per-unit-of-work progress, invoked synchronously
// between traversal steps and required to be non-blocking.
type ProgressTracker interface {
	OnProducer(producer location.ProducerSpec, kind Type)
	OnComplete()
}

// noopProgress is the default ProgressTracker.
type noopProgress struct{}

func (noopProgress) OnProducer(location.ProducerSpec, Type) {}
func (noopProgress) OnComplete()                            {}

// PolicyGate evaluates a proposed mutation before it is applied and
// reports whether it is allowed. Implemented by pkg/policy.Engine; left
// nil, every mutation is allowed unconditionally.
type PolicyGate interface {
	GateOperation(ctx context.Context, operation string, producer location.ProducerSpec, detail map[string]string) error
}

// Dependencies bundles every external collaborator a ProvisioningLayout
// needs.
type Dependencies[F FeaturePack] struct {
	Factory          Factory[F]
	Archives         ArchiveResolver
	Universe         resolve.UniverseResolver
	ArtifactResolver func(repoID string) (resolve.ArtifactResolver, bool)
	Plugins          *plugin.Registry
	Telemetry        *telemetry.Bundle
	Policy           PolicyGate
	BaseDir          string // base directory for the work area, "" = OS temp dir
}

// ProvisioningLayout is the engine's mutable heart. It is not safe for concurrent mutation; its contract is that of
// a workspace object owned by one caller at a time.
type ProvisioningLayout[F FeaturePack] struct {
	mu sync.Mutex

	deps Dependencies[F]
	work *workarea.Handle

	config *pconfig.ProvisioningConfig

	featurePacks  map[string]F              // ProducerSpec.String() -> F
	ordered       []F
	allPatches    map[string]F              // FPID.String() -> patch F
	fpPatches     map[string][]F            // target FPID.String() -> ordered patch stack
	transitiveDeps map[string]location.ProducerSpec
	resolvedVersions map[string]location.FeaturePackLocation // ProducerSpec.String() -> FPL
	mavenProducers map[string]F              // coordinate producer key -> aliased F
	conflicts      map[string]map[string]bool // ProducerSpec.String() -> set of FPID strings
	pluginLocations map[string]PluginLocation
	pendingPatches map[string][]location.FPID // producer string -> patch FPIDs recorded during traversal

	failOnConvergence bool

	closed bool
}

// PluginLocation is an accumulated plugin-id -> artifact reference.
type PluginLocation struct {
	ID         string
	Coordinate string
	RepoID     string
	Producer   string
	Kind       Type
}

// enqueueItem carries a freshly-registered F for the post-queue phase of
// `layout`.
type enqueueItem[F FeaturePack] struct {
	fp F
}
