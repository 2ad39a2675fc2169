// Package commands implements the sqlsense subcommands.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlsense/internal/cli/output"
	"github.com/leapstack-labs/sqlsense/internal/config"
	"github.com/leapstack-labs/sqlsense/pkg/engine"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext loads the configured catalog and builds an engine
// and renderer.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cc, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return nil, err
	}

	snap, err := LoadCatalog(cmd.Context(), cc.Cfg, cc.Logger)
	if err != nil {
		return nil, err
	}
	engCfg, err := cc.Cfg.EngineConfig()
	if err != nil {
		return nil, err
	}
	engCfg.Catalog = snap
	engCfg.Logger = cc.Logger
	cc.Engine = engine.New(engCfg)
	return cc, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without loading
// a catalog. Useful for commands that only touch the catalog store.
func NewCommandContextWithoutEngine(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return nil, err
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output)),
	}, nil
}

// getConfig returns the config loaded by the root command, loading and
// validating one when a command runs on its own.
func getConfig(cmd *cobra.Command) (*config.Config, error) {
	if cfg := config.GetConfig(cmd.Context()); cfg != nil {
		return cfg, nil
	}
	cfg, err := config.Load("", nil)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readInput returns the SQL text to analyze: the named file, or stdin
// when the argument is missing or "-".
func readInput(cmd *cobra.Command, args []string) (string, string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return "<stdin>", string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return args[0], string(data), nil
}

// position holds the --line/--col flags, both 0-based.
type position struct {
	line, col int
}

func (p *position) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&p.line, "line", 0, "0-based line of the cursor")
	cmd.Flags().IntVar(&p.col, "col", -1, "0-based byte column of the cursor (default: end of line)")
}

// resolve fills in a missing column with the end of the line.
func (p position) resolve(text string) (int, int) {
	if p.col >= 0 {
		return p.line, p.col
	}
	end := engine.Offset(text, p.line, 1<<30)
	return p.line, engine.PositionOf(text, end).Column
}
