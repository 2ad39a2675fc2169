package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlsense/internal/cli/output"
	"github.com/leapstack-labs/sqlsense/pkg/catalog"
)

// NewScopeCommand creates the scope command.
func NewScopeCommand() *cobra.Command {
	var pos position
	cmd := &cobra.Command{
		Use:   "scope [file]",
		Short: "Show the tables, CTEs and temp tables visible at a position",
		Long: `Resolve the scope at --line/--col and list every visible source:
aliases and tables of the statement and its enclosing queries, CTEs,
and temp tables or table variables created earlier in the batch.`,
		Example: `  sqlsense scope query.sql --line 4 --col 12`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScope(cmd, args, pos)
		},
	}
	pos.register(cmd)
	return cmd
}

// SourceOutput is one visible source in JSON output.
type SourceOutput struct {
	Qualifier string   `json:"qualifier"`
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Outer     bool     `json:"outer"`
	Columns   []string `json:"columns"`
}

// ScopeOutput is the JSON shape of the scope command.
type ScopeOutput struct {
	Sources []SourceOutput `json:"sources"`
	CTEs    []SourceOutput `json:"ctes"`
	Temps   []SourceOutput `json:"temps"`
}

func runScope(cmd *cobra.Command, args []string, pos position) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	name, text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	line, col := pos.resolve(text)
	s := cc.Engine.ScopeAt(text, line, col)
	cat := cc.Engine.Catalog()

	out := ScopeOutput{Sources: []SourceOutput{}, CTEs: []SourceOutput{}, Temps: []SourceOutput{}}
	for _, b := range s.Visible() {
		out.Sources = append(out.Sources, SourceOutput{
			Qualifier: b.Qualifier,
			Name:      b.Entity.Name(),
			Kind:      b.Entity.Kind().String(),
			Outer:     b.Outer,
			Columns:   columnNames(b.Entity.Columns(cat)),
		})
	}
	for _, c := range s.CTEs() {
		out.CTEs = append(out.CTEs, SourceOutput{Name: c.Name, Kind: "cte", Columns: columnNames(c.Columns)})
	}
	for _, t := range s.Temps() {
		out.Temps = append(out.Temps, SourceOutput{Name: t.Name, Kind: t.Kind.String(), Columns: columnNames(t.Columns)})
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, fmt.Sprintf("Scope at %s:%d:%d", name, line, col))
	r.Header(2, "Sources")
	rows := make([][]string, 0, len(out.Sources))
	for _, src := range out.Sources {
		rows = append(rows, []string{src.Qualifier, src.Name, src.Kind, strconv.FormatBool(src.Outer), strings.Join(src.Columns, ", ")})
	}
	r.Table([]string{"Qualifier", "Name", "Kind", "Outer", "Columns"}, rows)

	r.Header(2, "CTEs")
	r.Table([]string{"Name", "Columns"}, namedRows(out.CTEs))
	r.Header(2, "Temp tables")
	r.Table([]string{"Name", "Columns"}, namedRows(out.Temps))
	return nil
}

func columnNames(cols []catalog.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func namedRows(sources []SourceOutput) [][]string {
	rows := make([][]string, 0, len(sources))
	for _, s := range sources {
		rows = append(rows, []string{s.Name, strings.Join(s.Columns, ", ")})
	}
	return rows
}
