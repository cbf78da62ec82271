// Package location defines the immutable identifiers used throughout the
// provisioning layout engine: universes, producers, channels, builds, and
// the feature-pack locations built from them.
//
// A FeaturePackLocation (FPL) identifies a feature pack either in full form
// (universe, producer, channel, frequency, build) or in coordinate form (an
// opaque artifact coordinate that must be normalized through resolution
// before it can be laid out). An FPID is an FPL whose build is concrete.
package location

import (
	"fmt"
	"strings"
)

// UniverseSpec names a universe, the source of feature-pack producers.
type UniverseSpec struct {
	// Factory identifies which universe resolver implementation to use
	// (e.g. "maven", "catalog").
	Factory string

	// Location is the factory-specific location of the universe (a repo
	// URL, a catalog DSN, ...).
	Location string
}

// String renders the universe spec in "factory:location" form, or just
// "factory" when Location is empty.
func (u UniverseSpec) String() string {
	if u.Location == "" {
		return u.Factory
	}
	return u.Factory + ":" + u.Location
}

// IsZero reports whether the universe spec carries no identity at all,
// meaning the producer resolves against the default universe.
func (u UniverseSpec) IsZero() bool {
	return u.Factory == "" && u.Location == ""
}

// ProducerSpec is the identity of a feature-pack stream, independent of
// version. Equality is structural and is the key used for the "installed"
// set: membership in a layout is keyed by ProducerSpec, never by channel or
// build.
type ProducerSpec struct {
	Universe UniverseSpec
	Producer string
}

// String renders "universe:producer", omitting the universe prefix when it
// is the zero value.
func (p ProducerSpec) String() string {
	if p.Universe.IsZero() {
		return p.Producer
	}
	return p.Universe.String() + ":" + p.Producer
}

// Equal reports structural equality between two producer specs.
func (p ProducerSpec) Equal(o ProducerSpec) bool {
	return p.Universe == o.Universe && p.Producer == o.Producer
}

// FeaturePackLocation (FPL) is the tuple (universe, producer, channel,
// frequency, build). Build may be empty, meaning "resolve to latest". A
// coordinate-form FPL carries only Coordinate and must be normalized before
// it can be laid out.
type FeaturePackLocation struct {
	Universe  UniverseSpec
	Producer  string
	Channel   string
	Frequency string
	Build     string

	// Coordinate, when non-empty, marks this FPL as coordinate form: an
	// opaque artifact coordinate (e.g. a Maven groupId:artifactId:version)
	// that resolution must translate into full form.
	Coordinate string
}

// IsCoordinateForm reports whether this FPL is a degenerate coordinate-form
// reference that still needs normalization.
func (f FeaturePackLocation) IsCoordinateForm() bool {
	return f.Coordinate != ""
}

// HasBuild reports whether a concrete build is already present.
func (f FeaturePackLocation) HasBuild() bool {
	return f.Build != ""
}

// HasChannel reports whether a channel name is present.
func (f FeaturePackLocation) HasChannel() bool {
	return f.Channel != ""
}

// ProducerSpec returns the ProducerSpec identity carried by this FPL.
// For a coordinate-form FPL the returned spec is a synthetic one keyed by
// the coordinate string itself, since no producer identity is known yet.
func (f FeaturePackLocation) ProducerSpec() ProducerSpec {
	if f.IsCoordinateForm() {
		return ProducerSpec{Producer: "coord:" + f.Coordinate}
	}
	return ProducerSpec{Universe: f.Universe, Producer: f.Producer}
}

// WithBuild returns a copy of the FPL with Build replaced.
func (f FeaturePackLocation) WithBuild(build string) FeaturePackLocation {
	f.Build = build
	return f
}

// WithChannel returns a copy of the FPL with Channel (and Frequency)
// replaced.
func (f FeaturePackLocation) WithChannel(channel, frequency string) FeaturePackLocation {
	f.Channel = channel
	f.Frequency = frequency
	return f
}

// ToFPID asserts that Build is concrete and returns the FPID view.
func (f FeaturePackLocation) ToFPID() (FPID, error) {
	if f.IsCoordinateForm() {
		return FPID{}, fmt.Errorf("location: %s is coordinate form, not resolvable to an FPID without translation", f)
	}
	if f.Build == "" {
		return FPID{}, fmt.Errorf("location: %s has no concrete build", f)
	}
	return FPID{fpl: f}, nil
}

// String renders the coordinate-form representation, or
// "universe:producer#channel/frequency!build" dropping empty segments.
func (f FeaturePackLocation) String() string {
	if f.IsCoordinateForm() {
		return f.Coordinate
	}
	var sb strings.Builder
	sb.WriteString(f.ProducerSpec().String())
	if f.Channel != "" {
		sb.WriteByte('#')
		sb.WriteString(f.Channel)
		if f.Frequency != "" {
			sb.WriteByte('/')
			sb.WriteString(f.Frequency)
		}
	}
	if f.Build != "" {
		sb.WriteByte('!')
		sb.WriteString(f.Build)
	}
	return sb.String()
}

// Equal reports structural equality, including Coordinate.
func (f FeaturePackLocation) Equal(o FeaturePackLocation) bool {
	return f == o
}

// ConflictsWith reports whether f and o name the same producer but
// disagree on channel, the definition of a channel conflict used during
// convergence. Channel equality participates in conflict detection even
// though it is not part of installed-set membership.
func (f FeaturePackLocation) ConflictsWith(o FeaturePackLocation) bool {
	if !f.ProducerSpec().Equal(o.ProducerSpec()) {
		return false
	}
	return f.Channel != o.Channel
}

// FPID is an FPL with a concrete, non-empty build. It is the identity used
// for installed feature packs, patches, and the ordered layout sequence.
type FPID struct {
	fpl FeaturePackLocation
}

// NewFPID constructs an FPID from its parts, requiring a concrete build.
func NewFPID(universe UniverseSpec, producer, channel, frequency, build string) (FPID, error) {
	if build == "" {
		return FPID{}, fmt.Errorf("location: cannot build an FPID for producer %q without a concrete build", producer)
	}
	return FPID{fpl: FeaturePackLocation{
		Universe:  universe,
		Producer:  producer,
		Channel:   channel,
		Frequency: frequency,
		Build:     build,
	}}, nil
}

// Location returns the underlying FPL view of this FPID.
func (f FPID) Location() FeaturePackLocation { return f.fpl }

// Producer returns the identity of the producer stream.
func (f FPID) Producer() ProducerSpec { return f.fpl.ProducerSpec() }

// Build returns the concrete build stamp.
func (f FPID) Build() string { return f.fpl.Build }

// Channel returns the channel name, which may be empty for a default
// channel.
func (f FPID) Channel() string { return f.fpl.Channel }

// String renders the FPID the same way as its FPL.
func (f FPID) String() string { return f.fpl.String() }

// Equal reports structural equality.
func (f FPID) Equal(o FPID) bool { return f.fpl.Equal(o.fpl) }

// IsZero reports whether this FPID is the zero value (unset).
func (f FPID) IsZero() bool { return f.fpl == FeaturePackLocation{} }
