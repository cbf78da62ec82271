package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fplayout/fplayout/pkg/layout"
	"github.com/fplayout/fplayout/pkg/location"
	"github.com/fplayout/fplayout/pkg/pconfig"
	"github.com/fplayout/fplayout/pkg/plugin"
	"github.com/fplayout/fplayout/pkg/policy"
	"github.com/fplayout/fplayout/pkg/resolve"
	"github.com/fplayout/fplayout/pkg/telemetry"
)

// localArtifacts resolves coordinate/location strings and feature-pack
// directories against a flat directory on disk: the default artifact
// source for offline CLI use when no SFTP repo has been registered.
type localArtifacts struct {
	root string
}

func sanitizeFilename(s string) string {
	return strings.NewReplacer("/", "_", ":", "_").Replace(s)
}

// Resolve implements resolve.ArtifactResolver for plugin/patch coordinates.
func (a localArtifacts) Resolve(_ context.Context, loc string) (string, error) {
	path := filepath.Join(a.root, filepath.Base(loc))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("local artifacts: %s: %w", loc, err)
	}
	return path, nil
}

// ResolveFeaturePack implements layout.ArchiveResolver: each feature pack
// is an already-unpacked directory named after its FPID.
func (a localArtifacts) ResolveFeaturePack(_ context.Context, fpid location.FPID) (string, error) {
	dir := filepath.Join(a.root, sanitizeFilename(fpid.String()))
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("local artifacts: no unpacked feature pack for %s", fpid.String())
	}
	return dir, nil
}

// openLayout wires every Dependencies collaborator from the persistent
// flags and opens (building) the layout described by configPath.
func openLayout(ctx context.Context) (*layout.ProvisioningLayout[*resolvedPack], func(), error) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	cfg, err := pconfig.NewLoader().LoadFiles(ctx, configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	catalog, err := resolve.NewCatalogResolver(ctx, resolve.CatalogConfig{Path: catalogDSN})
	if err != nil {
		return nil, nil, fmt.Errorf("open catalog: %w", err)
	}

	artifacts := localArtifacts{root: filepath.Dir(catalogDSN)}
	catalog.RegisterRepo("default", artifacts)

	plugins, err := plugin.NewRegistry(ctx)
	if err != nil {
		catalog.Close()
		return nil, nil, fmt.Errorf("open plugin registry: %w", err)
	}

	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.ServiceName = "fplayout"
	telemetryCfg.Logging.Level = level.String()
	bundle, err := telemetry.NewTelemetry(telemetryCfg)
	if err != nil {
		plugins.Close(ctx)
		catalog.Close()
		return nil, nil, fmt.Errorf("start telemetry: %w", err)
	}

	deps := layout.Dependencies[*resolvedPack]{
		Factory:  newResolvedPack,
		Archives: artifacts,
		Universe: catalog,
		ArtifactResolver: func(repoID string) (resolve.ArtifactResolver, bool) {
			r, err := catalog.GetArtifactResolver(ctx, repoID)
			if err != nil {
				return nil, false
			}
			return r, true
		},
		Plugins:   plugins,
		Telemetry: bundle,
		BaseDir:   baseDir,
	}

	if enablePolicy {
		engine, err := policy.NewEngine(logger)
		if err != nil {
			_ = bundle.Shutdown(ctx)
			plugins.Close(ctx)
			catalog.Close()
			return nil, nil, fmt.Errorf("start policy engine: %w", err)
		}
		deps.Policy = engine
	}

	l, err := layout.New(ctx, cfg, deps)
	if err != nil {
		_ = bundle.Shutdown(ctx)
		plugins.Close(ctx)
		catalog.Close()
		return nil, nil, fmt.Errorf("build layout: %w", err)
	}

	cleanup := func() {
		_ = l.Close(ctx)
		_ = bundle.Shutdown(ctx)
		plugins.Close(ctx)
		catalog.Close()
	}
	return l, cleanup, nil
}
