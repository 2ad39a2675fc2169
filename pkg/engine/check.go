package engine

import (
	"sort"

	"github.com/leapstack-labs/sqlsense/pkg/batch"
	"github.com/leapstack-labs/sqlsense/pkg/catalog"
	"github.com/leapstack-labs/sqlsense/pkg/scope"
	"github.com/leapstack-labs/sqlsense/pkg/statement"
	"github.com/leapstack-labs/sqlsense/pkg/token"
	"github.com/leapstack-labs/sqlsense/pkg/typecheck"
)

// Diagnostic is an advisory finding. It never blocks anything.
type Diagnostic struct {
	Span    token.Span        `json:"span"`
	Start   token.Position    `json:"start"`
	End     token.Position    `json:"end"`
	Left    string            `json:"left"`
	Right   string            `json:"right"`
	Message string            `json:"message"`
	Warning typecheck.Warning `json:"-"`
}

// Warnings scans every ON, WHERE and HAVING clause of the document for
// a.x = b.y comparisons between columns of incompatible type families.
func (e *Engine) Warnings(text string) []Diagnostic {
	toks := e.Tokens(text)
	cat := e.Catalog()
	if cat.IsEmpty() {
		return nil
	}

	var out []Diagnostic
	scope.Document(batch.Split(toks), cat, func(a *statement.Arena, root int, ctx *scope.Context) {
		for id := range a.Chunks {
			if a.Root(id) == root {
				out = append(out, e.checkChunk(text, a, id, ctx, cat)...)
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Span.Start < out[j].Span.Start })
	e.logger.Debug("warnings", "count", len(out))
	return out
}

// columnRef is a q.col operand.
type columnRef struct {
	qualifier string
	column    string
	span      token.Span
}

func (e *Engine) checkChunk(text string, a *statement.Arena, id int, ctx *scope.Context, cat *catalog.Snapshot) []Diagnostic {
	c := a.Get(id)
	toks := ownTokens(a, c)
	var s *scope.Resolved
	var out []Diagnostic
	for i := 0; i+6 < len(toks); i++ {
		if i > 0 && toks[i-1].Kind == token.Dot {
			continue
		}
		left, ok := refAt(toks, i)
		if !ok || toks[i+3].Kind != token.Operator || toks[i+3].Text != "=" {
			continue
		}
		right, ok := refAt(toks, i+4)
		if !ok || i+7 < len(toks) && toks[i+7].Kind == token.Dot {
			continue
		}
		switch c.ClauseAt(toks[i].Pos.Offset) {
		case statement.ClauseOn, statement.ClauseWhere, statement.ClauseHaving:
		default:
			continue
		}
		if s == nil {
			s = scope.At(a, id, ctx, cat)
		}
		lt, lok := columnType(s, left)
		rt, rok := columnType(s, right)
		if !lok || !rok {
			continue
		}
		w, bad := e.policy.CheckEquality(lt, rt)
		if !bad {
			continue
		}
		span := token.Span{Start: left.span.Start, End: right.span.End}
		out = append(out, Diagnostic{
			Span:    span,
			Start:   PositionOf(text, span.Start),
			End:     PositionOf(text, span.End),
			Left:    left.qualifier + "." + left.column,
			Right:   right.qualifier + "." + right.column,
			Message: w.Message(),
			Warning: w,
		})
	}
	return out
}

// ownTokens drops comments and the tokens of child chunks.
func ownTokens(a *statement.Arena, c *statement.Chunk) []token.Token {
	var out []token.Token
next:
	for _, t := range c.Tokens {
		if t.IsTrivia() || t.Kind == token.EOF {
			continue
		}
		for _, child := range c.Children {
			if ch := a.Get(child); ch != nil && t.Pos.Offset >= ch.Start && t.Pos.Offset < ch.End {
				continue next
			}
		}
		out = append(out, t)
	}
	return out
}

func refAt(toks []token.Token, i int) (columnRef, bool) {
	if i+2 >= len(toks) || !toks[i].IsName() || toks[i+1].Kind != token.Dot || !toks[i+2].IsName() {
		return columnRef{}, false
	}
	return columnRef{
		qualifier: token.Unquote(toks[i].Text),
		column:    token.Unquote(toks[i+2].Text),
		span:      token.Span{Start: toks[i].Pos.Offset, End: toks[i+2].End()},
	}, true
}

func columnType(s *scope.Resolved, ref columnRef) (string, bool) {
	for _, col := range s.Columns(ref.qualifier) {
		if token.EqualFold(col.Name, ref.column) {
			return col.Type, col.Type != ""
		}
	}
	return "", false
}
