package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlsense/internal/introspect"
	"github.com/leapstack-labs/sqlsense/pkg/typecheck"

	// Register introspection drivers via init()
	_ "github.com/leapstack-labs/sqlsense/internal/introspect/postgres"
	_ "github.com/leapstack-labs/sqlsense/internal/introspect/sqlite"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "sqlsense.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("catalog", "", "")
	fs.String("source", "", "")
	fs.String("dsn", "", "")
	fs.StringSlice("schemas", nil, "")
	fs.String("log-level", "", "")
	fs.Int("line", 0, "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFrom(dir, "", nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.File)
	assert.Equal(t, SourceYAML, cfg.Catalog.Source)
	assert.Equal(t, filepath.Join(dir, DefaultCatalogPath), cfg.Catalog.Path)
	assert.Equal(t, filepath.Join(dir, DefaultStorePath), cfg.Catalog.Store)
	assert.Equal(t, DefaultWatchDebounce, cfg.Catalog.WatchDebounce)
	assert.Equal(t, DefaultMaxJoinDepth, cfg.Engine.MaxJoinDepth)
	assert.Equal(t, DefaultJoinBatchSize, cfg.Engine.JoinBatchSize)
	assert.InDelta(t, DefaultThreshold, cfg.Engine.FuzzyThreshold, 1e-9)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, OutputAuto, cfg.Output)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
catalog:
  source: sqlite
  dsn: ${SQLSENSE_TEST_DSN}
  schemas: main,aux
  watch_debounce: 1s
engine:
  max_join_depth: 3
  typecheck:
    compatible:
      - uniqueidentifier:string
log_level: DEBUG
`)
	t.Setenv("SQLSENSE_TEST_DSN", "file:test.db")

	// config file is found from a nested directory
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	cfg, err := LoadFrom(nested, "", nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "sqlsense.yaml"), cfg.File)
	assert.Equal(t, "sqlite", cfg.Catalog.Source)
	assert.Equal(t, "file:test.db", cfg.Catalog.DSN)
	assert.Equal(t, []string{"main", "aux"}, cfg.Catalog.Schemas)
	assert.Equal(t, time.Second, cfg.Catalog.WatchDebounce)
	assert.Equal(t, 3, cfg.Engine.MaxJoinDepth)
	assert.Equal(t, "debug", cfg.LogLevel)
	require.NoError(t, cfg.Validate())

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.True(t, policy.Compatible(typecheck.UniqueIdentifier, typecheck.String))
	assert.True(t, policy.Compatible(typecheck.Integer, typecheck.Decimal))
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
catalog:
  path: from-file.yaml
engine:
  max_join_depth: 3
  join_batch_size: 10
`)
	t.Setenv("SQLSENSE_ENGINE__MAX_JOIN_DEPTH", "4")
	t.Setenv("SQLSENSE_LOG_LEVEL", "info")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--log-level", "error", "--line", "7"}))

	cfg, err := LoadFrom(dir, "", fs)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "from-file.yaml"), cfg.Catalog.Path, "file beats defaults")
	assert.Equal(t, 10, cfg.Engine.JoinBatchSize, "file beats defaults")
	assert.Equal(t, 4, cfg.Engine.MaxJoinDepth, "env beats file")
	assert.Equal(t, "error", cfg.LogLevel, "flag beats env")
}

func TestLoad_FlagPathsRelativeToWorkingDir(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "catalog:\n  path: from-file.yaml\n")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--catalog", "flag.yaml", "--schemas", "dbo,sales"}))

	cfg, err := LoadFrom(dir, "", fs)
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "flag.yaml"), cfg.Catalog.Path)
	assert.Equal(t, []string{"dbo", "sales"}, cfg.Catalog.Schemas)
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("output: json\n"), 0o600))

	cfg, err := LoadFrom(t.TempDir(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, OutputJSON, cfg.Output)
}

func TestLoad_BadFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "catalog: [unclosed\n")

	_, err := LoadFrom(dir, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestConfig_Validate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		cfg, err := LoadFrom(t.TempDir(), "", nil)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"store source", func(c *Config) { c.Catalog.Source = SourceStore }, ""},
		{"driver with dsn", func(c *Config) { c.Catalog.Source = "postgres"; c.Catalog.DSN = "postgres://x" }, ""},
		{"driver without dsn", func(c *Config) { c.Catalog.Source = "postgres" }, "catalog.dsn is required"},
		{"unknown source", func(c *Config) { c.Catalog.Source = "oracle" }, `unknown catalog source "oracle"`},
		{"zero depth", func(c *Config) { c.Engine.MaxJoinDepth = 0 }, "max_join_depth"},
		{"zero batch", func(c *Config) { c.Engine.JoinBatchSize = 0 }, "join_batch_size"},
		{"threshold too high", func(c *Config) { c.Engine.FuzzyThreshold = 1.5 }, "fuzzy_threshold"},
		{"bad pair", func(c *Config) { c.Engine.Typecheck.Compatible = []string{"int"} }, "engine.typecheck.compatible"},
		{"bad family", func(c *Config) { c.Engine.Typecheck.Compatible = []string{"integer:money"} }, "unknown type family"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad output", func(c *Config) { c.Output = "xml" }, "output must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestConfig_Validate_UnknownSourceListsAvailable(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir(), "", nil)
	require.NoError(t, err)
	cfg.Catalog.Source = "oracle"

	err = cfg.Validate()
	var unknown *introspect.UnknownDriverError
	require.ErrorAs(t, err, &unknown)
	assert.Contains(t, unknown.Available, SourceYAML)
	assert.Contains(t, unknown.Available, "postgres")
	assert.Contains(t, unknown.Available, "sqlite")
}

func TestConfig_EngineConfig(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir(), "", nil)
	require.NoError(t, err)
	cfg.Engine.MaxCandidates = 25

	ec, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, 25, ec.Complete.Limit)
	assert.Equal(t, DefaultMaxJoinDepth, ec.Join.MaxDepth)
	assert.Equal(t, DefaultJoinBatchSize, ec.Join.BatchSize)
	assert.InDelta(t, DefaultThreshold, ec.Join.Threshold, 1e-9)
	require.NotNil(t, ec.Policy)
	assert.False(t, ec.Policy.Compatible(typecheck.UniqueIdentifier, typecheck.Integer))
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()), "falls back to a discard logger")

	logger := NewLogger(os.Stderr, "debug")
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, GetLogger(ctx))
}

func TestGetConfig(t *testing.T) {
	assert.Nil(t, GetConfig(context.Background()))

	cfg, err := LoadFrom(t.TempDir(), "", nil)
	require.NoError(t, err)
	ctx := WithConfig(context.Background(), cfg)
	assert.Same(t, cfg, GetConfig(ctx))
}
