package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlsense/internal/cli/output"
	"github.com/leapstack-labs/sqlsense/pkg/complete"
)

// NewCompleteCommand creates the complete command.
func NewCompleteCommand() *cobra.Command {
	var pos position
	cmd := &cobra.Command{
		Use:   "complete [file]",
		Short: "List completion candidates at a position",
		Long: `List the ranked completion candidates at --line/--col.

Reads the SQL from file, or from stdin when file is omitted or "-".
Positions are 0-based; columns count bytes.`,
		Example: `  # Columns after "o." on the first line
  sqlsense complete query.sql --line 0 --col 9

  # From stdin, cursor at the end of the first line
  echo "SELECT * FROM Ord" | sqlsense complete`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComplete(cmd, args, pos)
		},
	}
	pos.register(cmd)
	return cmd
}

// CompleteOutput is the JSON shape of the complete command.
type CompleteOutput struct {
	File       string               `json:"file"`
	Line       int                  `json:"line"`
	Column     int                  `json:"column"`
	Context    complete.Context     `json:"context"`
	Candidates []complete.Candidate `json:"candidates"`
}

func runComplete(cmd *cobra.Command, args []string, pos position) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	name, text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	line, col := pos.resolve(text)
	cands := cc.Engine.Complete(text, line, col)
	cc.Logger.Debug("completed", "file", name, "line", line, "column", col, "candidates", len(cands))

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if cands == nil {
			cands = []complete.Candidate{}
		}
		return r.JSON(CompleteOutput{
			File:       name,
			Line:       line,
			Column:     col,
			Context:    cc.Engine.Cursor(text, line, col).Context,
			Candidates: cands,
		})
	}

	r.Header(2, fmt.Sprintf("Completions at %s:%d:%d", name, line, col))
	rows := make([][]string, 0, len(cands))
	for _, c := range cands {
		rows = append(rows, []string{strconv.Itoa(c.SortPriority), c.Label, c.Kind.String(), c.Detail, c.InsertText})
	}
	r.Table([]string{"#", "Label", "Kind", "Detail", "Insert"}, rows)
	return nil
}
