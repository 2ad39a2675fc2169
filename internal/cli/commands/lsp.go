package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlsense/internal/lsp"
)

// ErrExitWithoutShutdown is returned when the client sent exit before
// shutdown; the process then exits with status 1.
var ErrExitWithoutShutdown = errors.New("language client exited without shutdown")

// NewLSPCommand creates the lsp command.
func NewLSPCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start the LSP server for editor integration.

The server communicates over stdin/stdout using JSON-RPC and offers
completion, hover and type-mismatch diagnostics. The catalog comes from
sqlsense.yaml; with catalog.watch enabled, edits to the catalog file are
picked up without restarting the server.`,
		Example: `  # Start LSP server (usually called by an editor)
  sqlsense lsp --catalog catalog.yaml --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLSP(cmd, version)
		},
	}

	return cmd
}

func runLSP(cmd *cobra.Command, version string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	server := lsp.NewServer(cmd.InOrStdin(), cmd.OutOrStdout(), cc.Engine, lsp.Options{
		Version: version,
		Logger:  cc.Logger,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// The server swaps the engine's catalog and republishes diagnostics.
	if w := catalogWatcher(cc.Cfg, server, cc.Logger, nil); w != nil {
		go func() {
			if err := w.Run(ctx); err != nil {
				cc.Logger.Error("catalog watcher stopped", "error", err)
			}
		}()
	}

	if err := server.Run(); err != nil {
		return err
	}
	if server.Exited() && !server.ShutdownRequested() {
		return ErrExitWithoutShutdown
	}
	return nil
}
