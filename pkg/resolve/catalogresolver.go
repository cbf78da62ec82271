package resolve

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver, pure-Go (no cgo).
	_ "modernc.org/sqlite"

	"github.com/fplayout/fplayout/pkg/location"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// CatalogConfig configures a SQLite-backed catalog.
type CatalogConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// CatalogResolver is a SQLite-backed UniverseResolver: "latest build" and
// "default channel" queries are simple indexed lookups against a local
// catalog database rather than a remote repository call.
type CatalogResolver struct {
	db   *sql.DB
	repos map[string]ArtifactResolver
}

// NewCatalogResolver opens (creating if necessary) the catalog database at
// cfg.Path and runs pending migrations.
func NewCatalogResolver(ctx context.Context, cfg CatalogConfig) (*CatalogResolver, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("catalog resolver: database path is required")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog resolver: open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog resolver: ping database: %w", err)
	}

	r := &CatalogResolver{db: db, repos: make(map[string]ArtifactResolver)}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *CatalogResolver) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("catalog resolver: migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(r.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("catalog resolver: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("catalog resolver: migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("catalog resolver: run migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (r *CatalogResolver) Close() error {
	return r.db.Close()
}

// RegisterRepo associates a repoID with a concrete ArtifactResolver, used
// by GetArtifactResolver. Call this once per configured repo at startup;
// the set of artifact repos is small and statically configured.
func (r *CatalogResolver) RegisterRepo(repoID string, resolver ArtifactResolver) {
	r.repos[repoID] = resolver
}

// GetUniverse returns a Universe bound to the given universe spec, used to
// answer default-channel and per-producer channel queries.
func (r *CatalogResolver) GetUniverse(ctx context.Context, spec location.UniverseSpec) (Universe, error) {
	return &catalogUniverse{db: r.db, universe: spec.String()}, nil
}

// ResolveLatestBuild returns the FPID for the latest build of fpl's
// producer on its channel (or the producer's default channel if fpl
// carries none).
func (r *CatalogResolver) ResolveLatestBuild(ctx context.Context, fpl location.FeaturePackLocation) (location.FPID, error) {
	universe := fpl.Universe.String()
	channel := fpl.Channel
	if channel == "" {
		var err error
		channel, err = r.defaultChannel(ctx, universe, fpl.Producer)
		if err != nil {
			return location.FPID{}, err
		}
	}

	build, err := r.latestBuild(ctx, universe, fpl.Producer, channel)
	if err != nil {
		return location.FPID{}, err
	}

	return location.NewFPID(fpl.Universe, fpl.Producer, channel, fpl.Frequency, build)
}

// GetChannel returns a Channel for fpl's producer/channel pair.
func (r *CatalogResolver) GetChannel(ctx context.Context, fpl location.FeaturePackLocation) (Channel, error) {
	universe := fpl.Universe.String()
	channel := fpl.Channel
	if channel == "" {
		var err error
		channel, err = r.defaultChannel(ctx, universe, fpl.Producer)
		if err != nil {
			return nil, err
		}
	}
	return r.newChannel(universe, fpl.Producer, channel), nil
}

// GetArtifactResolver returns the ArtifactResolver registered for repoID.
func (r *CatalogResolver) GetArtifactResolver(ctx context.Context, repoID string) (ArtifactResolver, error) {
	resolver, ok := r.repos[repoID]
	if !ok {
		return nil, fmt.Errorf("catalog resolver: no artifact resolver registered for repo %q", repoID)
	}
	return resolver, nil
}

func (r *CatalogResolver) defaultChannel(ctx context.Context, universe, producer string) (string, error) {
	var channel string
	err := r.db.QueryRowContext(ctx,
		`SELECT channel FROM channels WHERE universe = ? AND producer = ? AND is_default = 1`,
		universe, producer,
	).Scan(&channel)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("catalog resolver: no default channel for producer %s:%s", universe, producer)
	}
	if err != nil {
		return "", fmt.Errorf("catalog resolver: default channel lookup: %w", err)
	}
	return channel, nil
}

func (r *CatalogResolver) latestBuild(ctx context.Context, universe, producer, channel string) (string, error) {
	var build string
	err := r.db.QueryRowContext(ctx,
		`SELECT build FROM builds WHERE universe = ? AND producer = ? AND channel = ?
		 ORDER BY created_at DESC LIMIT 1`,
		universe, producer, channel,
	).Scan(&build)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("catalog resolver: no builds for %s:%s#%s", universe, producer, channel)
	}
	if err != nil {
		return "", fmt.Errorf("catalog resolver: latest build lookup: %w", err)
	}
	return build, nil
}

func (r *CatalogResolver) newChannel(universe, producer, channel string) *catalogChannel {
	cc := &catalogChannel{db: r.db, universe: universe, producer: producer, channel: channel}
	cc.BaseChannel = BaseChannel{LatestBuildFunc: cc.latestBuildLocation}
	return cc
}

// catalogUniverse implements Universe against the catalog database.
type catalogUniverse struct {
	db       *sql.DB
	universe string
}

func (u *catalogUniverse) DefaultChannel(ctx context.Context, producer string) (string, error) {
	var channel string
	err := u.db.QueryRowContext(ctx,
		`SELECT channel FROM channels WHERE universe = ? AND producer = ? AND is_default = 1`,
		u.universe, producer,
	).Scan(&channel)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("catalog resolver: no default channel for producer %s:%s", u.universe, producer)
	}
	if err != nil {
		return "", fmt.Errorf("catalog resolver: default channel lookup: %w", err)
	}
	return channel, nil
}

func (u *catalogUniverse) GetChannel(ctx context.Context, producer, channel string) (Channel, error) {
	cc := &catalogChannel{db: u.db, universe: u.universe, producer: producer, channel: channel}
	cc.BaseChannel = BaseChannel{LatestBuildFunc: cc.latestBuildLocation}
	return cc, nil
}

// catalogChannel implements Channel against the catalog database, using
// BaseChannel for the default GetUpdatePlan policy.
type catalogChannel struct {
	BaseChannel
	db       *sql.DB
	universe string
	producer string
	channel  string
}

func (c *catalogChannel) Name() string { return c.channel }

func (c *catalogChannel) LatestBuild(ctx context.Context, fpl location.FeaturePackLocation) (string, error) {
	var build string
	err := c.db.QueryRowContext(ctx,
		`SELECT build FROM builds WHERE universe = ? AND producer = ? AND channel = ?
		 ORDER BY created_at DESC LIMIT 1`,
		c.universe, c.producer, c.channel,
	).Scan(&build)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("catalog resolver: no builds for %s:%s#%s", c.universe, c.producer, c.channel)
	}
	if err != nil {
		return "", fmt.Errorf("catalog resolver: latest build lookup: %w", err)
	}
	return build, nil
}

func (c *catalogChannel) latestBuildLocation(ctx context.Context, fpl location.FeaturePackLocation) (string, error) {
	return c.LatestBuild(ctx, fpl)
}

func (c *catalogChannel) Resolve(ctx context.Context, fpl location.FeaturePackLocation) (string, error) {
	build := fpl.Build
	if build == "" {
		var err error
		build, err = c.LatestBuild(ctx, fpl)
		if err != nil {
			return "", err
		}
	}
	var exists int
	err := c.db.QueryRowContext(ctx,
		`SELECT 1 FROM builds WHERE universe = ? AND producer = ? AND channel = ? AND build = ?`,
		c.universe, c.producer, c.channel, build,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("catalog resolver: build %s not found for %s:%s#%s", build, c.universe, c.producer, c.channel)
	}
	if err != nil {
		return "", fmt.Errorf("catalog resolver: resolve lookup: %w", err)
	}
	return build, nil
}

func (c *catalogChannel) IsResolved(ctx context.Context, fpl location.FeaturePackLocation) (bool, error) {
	if fpl.Build == "" {
		return false, nil
	}
	var exists int
	err := c.db.QueryRowContext(ctx,
		`SELECT 1 FROM builds WHERE universe = ? AND producer = ? AND channel = ? AND build = ?`,
		c.universe, c.producer, c.channel, fpl.Build,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("catalog resolver: is-resolved lookup: %w", err)
	}
	return true, nil
}
