package complete

import (
	"strings"

	"github.com/leapstack-labs/sqlsense/pkg/statement"
	"github.com/leapstack-labs/sqlsense/pkg/token"
)

// Context is what the cursor position asks for.
type Context int

// Cursor contexts.
const (
	ContextNone       Context = iota
	ContextTable              // after FROM, JOIN, INTO, UPDATE ...
	ContextColumn             // after "alias."
	ContextBareColumn         // an expression position with no qualifier
)

var contextNames = map[Context]string{
	ContextNone:       "none",
	ContextTable:      "table",
	ContextColumn:     "column",
	ContextBareColumn: "bare_column",
}

func (c Context) String() string {
	return contextNames[c]
}

// MarshalText renders the context by name.
func (c Context) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Cursor describes the completion request at a byte offset.
type Cursor struct {
	Context Context
	Offset  int
	// Prefix is the unquoted part of the word typed before the cursor.
	Prefix string
	// Qualifier holds the dotted parts typed before the word: the alias for
	// column contexts, [schema] or [database, schema] for table contexts.
	Qualifier []string
	// Clause is the clause the cursor sits in, as far as the preceding
	// keywords tell.
	Clause statement.ClauseKind
	// Replace is the range the inserted text replaces.
	Replace token.Span
	// Joined holds catalog.Key of objects the statement already joins.
	// Table positions leave them out. DetectCursor never sets it.
	Joined map[string]bool
}

// Alias returns the column qualifier, empty when there is none.
func (c Cursor) Alias() string {
	if len(c.Qualifier) == 0 {
		return ""
	}
	return c.Qualifier[len(c.Qualifier)-1]
}

var tableKeywords = map[string]bool{
	"from": true, "join": true, "into": true, "update": true,
	"apply": true, "merge": true, "using": true, "table": true,
}

var clauseKeywords = map[string]statement.ClauseKind{
	"select": statement.ClauseSelect,
	"where":  statement.ClauseWhere,
	"on":     statement.ClauseOn,
	"having": statement.ClauseHaving,
	"set":    statement.ClauseSet,
	"values": statement.ClauseValues,
	"output": statement.ClauseSelect,
}

// expressionKeywords may sit between a clause keyword and a column.
var expressionKeywords = map[string]bool{
	"and": true, "or": true, "not": true, "between": true, "in": true,
	"is": true, "like": true, "when": true, "then": true, "else": true,
	"case": true, "distinct": true, "all": true, "exists": true,
	"top": true, "percent": true, "return": true, "print": true,
	"if": true, "while": true,
}

// DetectCursor works out the completion context at offset from a token
// stream. Offsets inside comments and string literals yield ContextNone.
func DetectCursor(tokens []token.Token, offset int) Cursor {
	cur := Cursor{Offset: offset, Replace: token.Span{Start: offset, End: offset}}

	i := 0
	for i < len(tokens) && tokens[i].Kind != token.EOF && tokens[i].End() < offset {
		i++
	}
	word := -1
	if i < len(tokens) && tokens[i].Kind != token.EOF && tokens[i].Pos.Offset < offset {
		t := tokens[i]
		inside := offset < t.End()
		switch {
		case t.Kind == token.Comment:
			if inside || !strings.HasPrefix(t.Text, "/*") {
				return cur
			}
			i++
		case isStringKind(t.Kind):
			if inside || !closedString(t.Text) {
				return cur
			}
			i++
		case isWord(t):
			word = i
			cur.Prefix = partial(t.Text[:offset-t.Pos.Offset])
			cur.Replace = t.Span()
		default:
			i++
		}
	}

	j := i - 1
	if word >= 0 {
		j = word - 1
	}
	j = skipTrivia(tokens, j)
	var chain []string
	for j >= 1 && tokens[j].Kind == token.Dot && isWord(tokens[j-1]) {
		chain = append([]string{nameOf(tokens[j-1])}, chain...)
		j = skipTrivia(tokens, j-2)
	}
	cur.Qualifier = chain

	ctx, clause := classify(tokens, j)
	cur.Clause = clause
	switch {
	case ctx == ContextTable:
		if len(chain) <= 2 {
			cur.Context = ContextTable
		}
	case len(chain) > 0:
		cur.Context = ContextColumn
	default:
		cur.Context = ctx
	}
	return cur
}

func skipTrivia(tokens []token.Token, j int) int {
	for j >= 0 && tokens[j].IsTrivia() {
		j--
	}
	return j
}

// classify scans back from token j to the keyword that decides what
// belongs at the cursor.
func classify(tokens []token.Token, j int) (Context, statement.ClauseKind) {
	ctx := ContextNone
	immediate := true
	afterComma := false
	for k := j; k >= 0; k-- {
		t := tokens[k]
		switch t.Kind {
		case token.Comment:
			continue
		case token.Semicolon, token.BatchSeparator:
			return ctx, statement.ClauseNone
		case token.RParen:
			k = openParen(tokens, k)
			immediate = false
			continue
		case token.LParen:
			if ctx == ContextNone {
				ctx = ContextBareColumn
			}
			immediate = false
			if k > 0 && (tokens[k-1].IsName() || tokens[k-1].Kind == token.Keyword) {
				// call arguments and IN lists belong to the enclosing clause
				continue
			}
			return ctx, statement.ClauseNone
		case token.Comma:
			if immediate {
				afterComma = true
			}
			immediate = false
			continue
		case token.Keyword:
		default:
			immediate = false
			continue
		}

		kw := t.Norm
		switch {
		case tableKeywords[kw]:
			if ctx == ContextNone && (immediate || afterComma && kw == "from") {
				return ContextTable, clauseFor(kw)
			}
			return ctx, clauseFor(kw)
		case kw == "by":
			if ctx == ContextNone {
				ctx = ContextBareColumn
			}
			if k > 0 && tokens[k-1].IsKeyword("group") {
				return ctx, statement.ClauseGroupBy
			}
			return ctx, statement.ClauseOrderBy
		case clauseKeywords[kw] != statement.ClauseNone:
			if ctx == ContextNone {
				ctx = ContextBareColumn
			}
			return ctx, clauseKeywords[kw]
		case expressionKeywords[kw]:
			if ctx == ContextNone {
				ctx = ContextBareColumn
			}
		default:
			if immediate {
				return ContextNone, statement.ClauseNone
			}
		}
		immediate = false
	}
	return ctx, statement.ClauseNone
}

func clauseFor(kw string) statement.ClauseKind {
	switch kw {
	case "from", "join", "apply":
		return statement.ClauseFrom
	case "into":
		return statement.ClauseInto
	case "using":
		return statement.ClauseUsing
	}
	return statement.ClauseTarget
}

func openParen(tokens []token.Token, k int) int {
	depth := 0
	for ; k >= 0; k-- {
		switch tokens[k].Kind {
		case token.RParen:
			depth++
		case token.LParen:
			depth--
			if depth == 0 {
				return k
			}
		}
	}
	return 0
}

func isWord(t token.Token) bool {
	switch t.Kind {
	case token.Ident, token.QuotedIdent, token.Keyword, token.TempTable, token.Variable:
		return true
	}
	return false
}

func isStringKind(k token.Kind) bool {
	return k == token.String || k == token.NString
}

// closedString reports whether a string literal has its closing quote.
func closedString(text string) bool {
	body := strings.TrimLeft(text, "Nn")
	if !strings.HasPrefix(body, "'") {
		return true
	}
	body = body[1:]
	n := len(body) - len(strings.TrimRight(body, "'"))
	return n%2 == 1
}

func nameOf(t token.Token) string {
	if t.Kind == token.QuotedIdent {
		return token.Unquote(t.Text)
	}
	return t.Text
}

// partial strips the quotes of a word that is still being typed.
func partial(s string) string {
	switch {
	case strings.HasPrefix(s, "["):
		return strings.ReplaceAll(strings.TrimSuffix(s[1:], "]"), "]]", "]")
	case strings.HasPrefix(s, `"`):
		return strings.ReplaceAll(strings.TrimSuffix(s[1:], `"`), `""`, `"`)
	}
	return s
}
