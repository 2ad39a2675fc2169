package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlsense/internal/cli/output"
	"github.com/leapstack-labs/sqlsense/pkg/engine"
)

// ErrWarnings is returned by check --strict when warnings were found.
var ErrWarnings = errors.New("type warnings found")

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Report comparisons between incompatible column types",
		Long: `Scan every ON, WHERE and HAVING clause for a.x = b.y comparisons
whose column types belong to incompatible families, such as a
uniqueidentifier compared with an int.

Warnings are advisory; use --strict to exit non-zero when any are found.`,
		Example: `  sqlsense check query.sql
  sqlsense check --strict -o json < query.sql`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, strict)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit with an error when warnings are found")
	return cmd
}

// CheckOutput is the JSON shape of the check command.
type CheckOutput struct {
	File     string              `json:"file"`
	Warnings []engine.Diagnostic `json:"warnings"`
}

func runCheck(cmd *cobra.Command, args []string, strict bool) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	name, text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	warnings := cc.Engine.Warnings(text)
	if warnings == nil {
		warnings = []engine.Diagnostic{}
	}

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(CheckOutput{File: name, Warnings: warnings}); err != nil {
			return err
		}
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(2, "Type warnings: "+name))
		r.Println("")
		for _, w := range warnings {
			r.Printf("- line %d, column %d: %s\n", w.Start.Line+1, w.Start.Column+1, w.Message)
		}
		if len(warnings) == 0 {
			r.Println("No warnings.")
		}
	default:
		styles := r.Styles()
		for _, w := range warnings {
			r.Printf("%s:%d:%d: %s %s\n", name, w.Start.Line+1, w.Start.Column+1,
				styles.Warning.Render("warning:"), w.Message)
		}
		if len(warnings) == 0 {
			r.Success("no type warnings")
		}
	}

	if strict && len(warnings) > 0 {
		return fmt.Errorf("%s: %d %w", name, len(warnings), ErrWarnings)
	}
	return nil
}
