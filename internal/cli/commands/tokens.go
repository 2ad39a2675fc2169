package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlsense/internal/cli/output"
	"github.com/leapstack-labs/sqlsense/pkg/lexer"
	"github.com/leapstack-labs/sqlsense/pkg/token"
)

// NewTokensCommand creates the tokens command.
func NewTokensCommand() *cobra.Command {
	var comments bool
	cmd := &cobra.Command{
		Use:   "tokens [file]",
		Short: "Print the token stream",
		Long:  `Print the tokens of a document with their kinds and positions.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokens(cmd, args, comments)
		},
	}
	cmd.Flags().BoolVar(&comments, "comments", false, "include comment tokens")
	return cmd
}

// TokenOutput is one token in JSON output.
type TokenOutput struct {
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	Norm   string `json:"norm,omitempty"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Offset int    `json:"offset"`
}

func runTokens(cmd *cobra.Command, args []string, comments bool) error {
	cc, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return err
	}
	_, text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	var out []TokenOutput
	for _, t := range lexer.Tokenize(text) {
		if t.Kind == token.EOF || (!comments && t.IsTrivia()) {
			continue
		}
		out = append(out, TokenOutput{
			Kind:   t.Kind.String(),
			Text:   t.Text,
			Norm:   t.Norm,
			Line:   t.Pos.Line,
			Column: t.Pos.Column,
			Offset: t.Pos.Offset,
		})
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if out == nil {
			out = []TokenOutput{}
		}
		return r.JSON(out)
	}

	rows := make([][]string, 0, len(out))
	for _, t := range out {
		rows = append(rows, []string{
			fmt.Sprintf("%d:%d", t.Line, t.Column),
			t.Kind,
			strconv.Quote(t.Text),
			t.Norm,
		})
	}
	r.Table([]string{"Pos", "Kind", "Text", "Norm"}, rows)
	return nil
}
