package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/leapstack-labs/sqlsense/internal/introspect"
	"github.com/leapstack-labs/sqlsense/pkg/complete"
	"github.com/leapstack-labs/sqlsense/pkg/engine"
	"github.com/leapstack-labs/sqlsense/pkg/join"
	"github.com/leapstack-labs/sqlsense/pkg/typecheck"
)

var (
	logLevels = []string{"debug", "info", "warn", "error"}
	outputs   = []string{OutputAuto, OutputText, OutputJSON, OutputMarkdown}
)

// Validate checks the configuration. It reports every problem found, not
// just the first.
func (c *Config) Validate() error {
	var errs []error

	switch c.Catalog.Source {
	case SourceYAML:
		if c.Catalog.Path == "" {
			errs = append(errs, fmt.Errorf("catalog.path is required for the yaml source"))
		}
	case SourceStore:
		if c.Catalog.Store == "" {
			errs = append(errs, fmt.Errorf("catalog.store is required for the store source"))
		}
	default:
		if !introspect.IsRegistered(c.Catalog.Source) {
			errs = append(errs, &introspect.UnknownDriverError{
				Driver:    c.Catalog.Source,
				Available: append([]string{SourceYAML, SourceStore}, introspect.ListDrivers()...),
			})
		} else if c.Catalog.DSN == "" {
			errs = append(errs, fmt.Errorf("catalog.dsn is required for the %s source", c.Catalog.Source))
		}
	}

	if c.Catalog.WatchDebounce < 0 {
		errs = append(errs, fmt.Errorf("catalog.watch_debounce must not be negative"))
	}
	if c.Engine.MaxJoinDepth < 1 {
		errs = append(errs, fmt.Errorf("engine.max_join_depth must be at least 1, got %d", c.Engine.MaxJoinDepth))
	}
	if c.Engine.JoinBatchSize < 1 {
		errs = append(errs, fmt.Errorf("engine.join_batch_size must be at least 1, got %d", c.Engine.JoinBatchSize))
	}
	if c.Engine.FuzzyThreshold <= 0 || c.Engine.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("engine.fuzzy_threshold must be in (0, 1], got %g", c.Engine.FuzzyThreshold))
	}
	if c.Engine.MaxCandidates < 0 {
		errs = append(errs, fmt.Errorf("engine.max_candidates must not be negative"))
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(logLevels, c.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level must be one of %v, got %q", logLevels, c.LogLevel))
	}
	if !slices.Contains(outputs, c.Output) {
		errs = append(errs, fmt.Errorf("output must be one of %v, got %q", outputs, c.Output))
	}

	return errors.Join(errs...)
}

// Policy builds the type family policy: the default pairs plus the
// configured extras.
func (c *Config) Policy() (*typecheck.Policy, error) {
	p := typecheck.DefaultPolicy()
	for _, s := range c.Engine.Typecheck.Compatible {
		pair, err := typecheck.ParsePair(s)
		if err != nil {
			return nil, fmt.Errorf("engine.typecheck.compatible: %w", err)
		}
		p.Allow(pair[0], pair[1])
	}
	return p, nil
}

// EngineConfig converts the configuration into engine options. The
// catalog and logger are left for the caller.
func (c *Config) EngineConfig() (engine.Config, error) {
	policy, err := c.Policy()
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Complete: complete.Options{
			Threshold: c.Engine.FuzzyThreshold,
			Limit:     c.Engine.MaxCandidates,
		},
		Join: join.Options{
			MaxDepth:  c.Engine.MaxJoinDepth,
			BatchSize: c.Engine.JoinBatchSize,
			Threshold: c.Engine.FuzzyThreshold,
		},
		Policy: policy,
	}, nil
}
