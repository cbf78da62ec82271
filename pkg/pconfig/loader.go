package pconfig

import (
	"context"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/go-playground/validator/v10"

	"github.com/fplayout/fplayout/pkg/location"
)

// cueFeaturePackConfig is the CUE/JSON-tagged wire shape a ProvisioningConfig
// is decoded from. It mirrors FeaturePackConfig but stays decoupled from the
// in-memory type so CUE struct-tag validation (go-playground/validator) can
// be applied before anything enters the Builder, the way
// pkg/config/cue_parser.go validates ResourceConfig before conversion.
type cueFeaturePackConfig struct {
	Universe   string            `json:"universe,omitempty"`
	Producer   string            `json:"producer" validate:"required"`
	Channel    string            `json:"channel,omitempty"`
	Frequency  string            `json:"frequency,omitempty"`
	Build      string            `json:"build,omitempty"`
	Coordinate string            `json:"coordinate,omitempty"`
	Transitive bool              `json:"transitive,omitempty"`
	Patches    []string          `json:"patches,omitempty"`
	Options    map[string]string `json:"options,omitempty"`
}

type cueProvisioningConfig struct {
	Direct     []cueFeaturePackConfig `json:"direct,omitempty"`
	Transitive []cueFeaturePackConfig `json:"transitive,omitempty"`
	Options    map[string]string      `json:"options,omitempty"`
	Aliases    map[string]string      `json:"aliases,omitempty"`
}

// Loader parses ProvisioningConfig from CUE sources, the way
// pkg/config.CUEParser parses WorkspaceConfig/ResourceConfig. It validates
// each decoded entry with go-playground/validator before it is handed to a
// Builder.
type Loader struct {
	ctx      *cue.Context
	validate *validator.Validate
}

// NewLoader creates a CUE-backed configuration loader.
func NewLoader() *Loader {
	return &Loader{
		ctx:      cuecontext.New(),
		validate: validator.New(),
	}
}

// LoadFiles parses one or more `.cue` sources (files or directories) into a
// ProvisioningConfig, running struct validation on every entry before it
// enters the builder.
func (l *Loader) LoadFiles(ctx context.Context, paths ...string) (*ProvisioningConfig, error) {
	insts := load.Instances(paths, &load.Config{})
	if len(insts) == 0 {
		return nil, fmt.Errorf("pconfig: no CUE instances found in %v", paths)
	}

	b := From(nil)
	for _, inst := range insts {
		if inst.Err != nil {
			return nil, fmt.Errorf("pconfig: loading %v: %w", inst.Dir, inst.Err)
		}
		value := l.ctx.BuildInstance(inst)
		if err := value.Err(); err != nil {
			return nil, fmt.Errorf("pconfig: %w", cueerrors.Promote(err, "build"))
		}
		if err := l.decodeInto(b, value); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// LoadString parses an inline CUE source string into a ProvisioningConfig.
func (l *Loader) LoadString(src string) (*ProvisioningConfig, error) {
	value := l.ctx.CompileString(src)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("pconfig: %w", cueerrors.Promote(err, "compile"))
	}
	b := From(nil)
	if err := l.decodeInto(b, value); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

func (l *Loader) decodeInto(b *Builder, value cue.Value) error {
	var wire cueProvisioningConfig
	if err := value.Decode(&wire); err != nil {
		return fmt.Errorf("pconfig: decode: %w", err)
	}

	for _, d := range wire.Direct {
		entry, err := l.toFeaturePackConfig(d)
		if err != nil {
			return err
		}
		b.AddDirect(entry)
	}
	for _, t := range wire.Transitive {
		entry, err := l.toFeaturePackConfig(t)
		if err != nil {
			return err
		}
		b.AddTransitive(entry)
	}
	for k, v := range wire.Options {
		b.SetOption(k, v)
	}
	for name, factory := range wire.Aliases {
		b.SetAlias(name, location.UniverseSpec{Factory: factory})
	}
	return nil
}

func (l *Loader) toFeaturePackConfig(w cueFeaturePackConfig) (FeaturePackConfig, error) {
	if err := l.validate.Struct(w); err != nil {
		return FeaturePackConfig{}, fmt.Errorf("pconfig: validation failed for producer %q: %w", w.Producer, err)
	}

	fpl := location.FeaturePackLocation{
		Universe:   location.UniverseSpec{Factory: w.Universe},
		Producer:   w.Producer,
		Channel:    w.Channel,
		Frequency:  w.Frequency,
		Build:      w.Build,
		Coordinate: w.Coordinate,
	}

	entry := FeaturePackConfig{
		Location:   fpl,
		Transitive: w.Transitive,
		Options:    w.Options,
	}
	for _, p := range w.Patches {
		fpid, err := parsePatchRef(fpl.Universe, p)
		if err != nil {
			return FeaturePackConfig{}, err
		}
		entry.Patches = append(entry.Patches, fpid)
	}
	return entry, nil
}

// parsePatchRef parses a "producer!build" or "producer#channel!build"
// string into an FPID sharing the universe of the entry it patches.
func parsePatchRef(universe location.UniverseSpec, ref string) (location.FPID, error) {
	producer, channel, build, err := splitPatchRef(ref)
	if err != nil {
		return location.FPID{}, err
	}
	return location.NewFPID(universe, producer, channel, "", build)
}

func splitPatchRef(ref string) (producer, channel, build string, err error) {
	bangIdx := -1
	hashIdx := -1
	for i, r := range ref {
		switch r {
		case '!':
			bangIdx = i
		case '#':
			if hashIdx == -1 {
				hashIdx = i
			}
		}
	}
	if bangIdx < 0 {
		return "", "", "", fmt.Errorf("pconfig: patch reference %q missing a build (expected producer[#channel]!build)", ref)
	}
	build = ref[bangIdx+1:]
	head := ref[:bangIdx]
	if hashIdx >= 0 {
		producer = head[:hashIdx]
		channel = head[hashIdx+1:]
	} else {
		producer = head
	}
	if producer == "" || build == "" {
		return "", "", "", fmt.Errorf("pconfig: malformed patch reference %q", ref)
	}
	return producer, channel, build, nil
}
