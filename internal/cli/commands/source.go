package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/leapstack-labs/sqlsense/internal/catalogstore"
	"github.com/leapstack-labs/sqlsense/internal/config"
	"github.com/leapstack-labs/sqlsense/internal/introspect"
	"github.com/leapstack-labs/sqlsense/internal/watch"
	"github.com/leapstack-labs/sqlsense/pkg/catalog"

	// Introspection drivers register themselves.
	_ "github.com/leapstack-labs/sqlsense/internal/introspect/mysql"
	_ "github.com/leapstack-labs/sqlsense/internal/introspect/postgres"
	_ "github.com/leapstack-labs/sqlsense/internal/introspect/sqlite"
)

// LoadCatalog reads the snapshot named by the catalog section of cfg. A
// missing default catalog file is not an error: the engine then runs
// with an empty catalog.
func LoadCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*catalog.Snapshot, error) {
	c := cfg.Catalog
	switch c.Source {
	case config.SourceYAML, "":
		snap, err := catalog.LoadFile(c.Path)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("catalog file not found, continuing with an empty catalog", "path", c.Path)
			return catalog.Empty(), nil
		}
		return snap, err
	case config.SourceStore:
		return loadFromStore(ctx, c.Store, c.Snapshot, logger)
	default:
		snap, err := introspect.Load(ctx, c.Source, c.DSN, c.Schemas, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to introspect %s: %w", c.Source, err)
		}
		return snap, nil
	}
}

func loadFromStore(ctx context.Context, path, name string, logger *slog.Logger) (*catalog.Snapshot, error) {
	store, err := catalogstore.Open(ctx, path, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	snap, err := store.LoadSnapshot(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("snapshot %q in %s: %w", name, path, err)
	}
	return snap, nil
}

// catalogWatcher returns a watcher that reloads the catalog file into
// target, or nil when the configuration does not ask for one. Only the
// yaml source has a file to watch.
func catalogWatcher(cfg *config.Config, target watch.Target, logger *slog.Logger, onReload func(*catalog.Snapshot, error)) *watch.Watcher {
	if !cfg.Catalog.Watch {
		return nil
	}
	if cfg.Catalog.Source != config.SourceYAML {
		logger.Warn("catalog.watch only applies to the yaml source", "source", cfg.Catalog.Source)
		return nil
	}
	load := func(context.Context) (*catalog.Snapshot, error) {
		return catalog.LoadFile(cfg.Catalog.Path)
	}
	return watch.New(cfg.Catalog.Path, load, target, watch.Options{
		Debounce: cfg.Catalog.WatchDebounce,
		OnReload: onReload,
		Logger:   logger,
	})
}
