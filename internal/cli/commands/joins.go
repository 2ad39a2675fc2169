package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlsense/internal/cli/output"
)

// NewJoinsCommand creates the joins command.
func NewJoinsCommand() *cobra.Command {
	var pos position
	cmd := &cobra.Command{
		Use:   "joins [file]",
		Short: "Suggest tables to join at a position",
		Long: `Suggest tables reachable from the tables already in the statement,
following foreign keys first and matching column names second.`,
		Example: `  sqlsense joins query.sql --line 2 --col 5`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoins(cmd, args, pos)
		},
	}
	pos.register(cmd)
	return cmd
}

// JoinOutput is one suggestion in JSON output.
type JoinOutput struct {
	Table    string `json:"table"`
	Alias    string `json:"alias"`
	On       string `json:"on"`
	Join     string `json:"join"`
	Depth    int    `json:"depth"`
	ViaFK    bool   `json:"via_fk"`
	Priority int    `json:"priority"`
}

func runJoins(cmd *cobra.Command, args []string, pos position) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	name, text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	line, col := pos.resolve(text)
	suggestions := cc.Engine.SuggestJoins(text, line, col)

	out := make([]JoinOutput, 0, len(suggestions))
	for i, s := range suggestions {
		out = append(out, JoinOutput{
			Table:    s.Target.QualifiedName(),
			Alias:    s.Alias,
			On:       s.OnClause,
			Join:     s.JoinText(),
			Depth:    s.Depth,
			ViaFK:    s.ViaFK,
			Priority: i,
		})
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(2, fmt.Sprintf("Join suggestions at %s:%d:%d", name, line, col))
	rows := make([][]string, 0, len(out))
	for _, j := range out {
		via := "name match"
		if j.ViaFK {
			via = "foreign key"
		}
		rows = append(rows, []string{j.Table + " " + j.Alias, j.On, strconv.Itoa(j.Depth), via})
	}
	r.Table([]string{"Table", "On", "Depth", "Via"}, rows)
	return nil
}
