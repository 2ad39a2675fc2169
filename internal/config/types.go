// Package config loads sqlsense configuration from defaults, a sqlsense.yaml
// file, SQLSENSE_ environment variables and command line flags, in that
// order of precedence (lowest first).
//
// Nothing in this package is process-wide: every Load builds its own koanf
// instance and returns a fresh Config.
package config

import "time"

// Catalog sources.
const (
	SourceYAML  = "yaml"  // catalog file on disk
	SourceStore = "store" // snapshot saved in the local catalog store
)

// Output formats.
const (
	OutputAuto     = "auto"
	OutputText     = "text"
	OutputJSON     = "json"
	OutputMarkdown = "markdown"
)

// Default configuration values.
const (
	DefaultSource        = SourceYAML
	DefaultCatalogPath   = "catalog.yaml"
	DefaultStorePath     = ".sqlsense/catalog.db"
	DefaultSnapshot      = "default"
	DefaultWatchDebounce = 200 * time.Millisecond
	DefaultMaxJoinDepth  = 2
	DefaultJoinBatchSize = 50
	DefaultThreshold     = 0.85
	DefaultLogLevel      = "warn"
	DefaultOutput        = OutputAuto
)

// Config is the complete sqlsense configuration.
type Config struct {
	Catalog  CatalogConfig `koanf:"catalog"`
	Engine   EngineConfig  `koanf:"engine"`
	LogLevel string        `koanf:"log_level"`
	Output   string        `koanf:"output"`

	// File is the config file that was read, empty when none was found.
	File string `koanf:"-"`
}

// CatalogConfig says where catalog metadata comes from.
type CatalogConfig struct {
	// Source is yaml, store, or a registered introspection driver
	// (postgres, mysql, sqlite).
	Source string `koanf:"source"`
	// Path is the catalog file for the yaml source.
	Path string `koanf:"path"`
	// DSN is the connection string for introspection drivers.
	DSN string `koanf:"dsn"`
	// Schemas limits introspection; empty means every user schema.
	Schemas []string `koanf:"schemas"`
	// Database names the catalog when the source does not.
	Database string `koanf:"database"`
	// Store is the sqlite file holding saved snapshots.
	Store string `koanf:"store"`
	// Snapshot is the store snapshot to load or save.
	Snapshot string `koanf:"snapshot"`
	// Watch reloads the catalog file when it changes.
	Watch         bool          `koanf:"watch"`
	WatchDebounce time.Duration `koanf:"watch_debounce"`
}

// EngineConfig tunes completion, join search and type checks.
type EngineConfig struct {
	MaxJoinDepth   int             `koanf:"max_join_depth"`
	JoinBatchSize  int             `koanf:"join_batch_size"`
	FuzzyThreshold float64         `koanf:"fuzzy_threshold"`
	MaxCandidates  int             `koanf:"max_candidates"`
	Typecheck      TypecheckConfig `koanf:"typecheck"`
}

// TypecheckConfig extends the default type family policy.
type TypecheckConfig struct {
	// Compatible lists extra "family:family" pairs treated as comparable.
	Compatible []string `koanf:"compatible"`
}

func defaults() map[string]any {
	return map[string]any{
		"catalog.source":         DefaultSource,
		"catalog.path":           DefaultCatalogPath,
		"catalog.store":          DefaultStorePath,
		"catalog.snapshot":       DefaultSnapshot,
		"catalog.watch":          false,
		"catalog.watch_debounce": DefaultWatchDebounce.String(),
		"engine.max_join_depth":  DefaultMaxJoinDepth,
		"engine.join_batch_size": DefaultJoinBatchSize,
		"engine.fuzzy_threshold": DefaultThreshold,
		"engine.max_candidates":  0,
		"log_level":              DefaultLogLevel,
		"output":                 DefaultOutput,
	}
}
