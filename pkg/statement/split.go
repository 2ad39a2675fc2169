package statement

import "github.com/leapstack-labs/sqlsense/pkg/token"

// stmtRange is a run of tokens forming one top-level statement.
type stmtRange struct {
	toks  []token.Token
	start int
	end   int
}

// stmtState tracks what the current statement has seen at depth 0, which
// decides whether a leading keyword continues it or starts a new one.
type stmtState struct {
	typ         Type
	withPending bool // WITH seen, main DML keyword not yet
	sawSelect   bool
	sawValues   bool
}

func (st *stmtState) observe(tok token.Token, first bool) {
	if first {
		*st = stmtState{typ: typeOf(tok), withPending: tok.IsKeyword("with")}
		if tok.IsKeyword("select") {
			st.sawSelect = true
		}
		return
	}
	if tok.Kind != token.Keyword {
		return
	}
	switch tok.Norm {
	case "values":
		st.sawValues = true
	case "select":
		st.sawSelect = true
		st.withPending = false
	case "insert", "update", "delete", "merge":
		if st.withPending {
			st.withPending = false
			st.typ = typeOf(tok)
		}
	}
}

// splitStatements cuts a batch at top-level semicolons and at keywords that
// can only begin a new statement. Parentheses and CASE ... END suppress
// splitting.
func splitStatements(toks []token.Token, batchEnd int) []stmtRange {
	var out []stmtRange
	start := -1
	depth, caseDepth := 0, 0
	var st stmtState

	flush := func(endIdx, endOffset int) {
		if start >= 0 && endIdx > start {
			out = append(out, stmtRange{
				toks:  toks[start:endIdx],
				start: toks[start].Pos.Offset,
				end:   endOffset,
			})
		}
		start = -1
		caseDepth = 0
	}

	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		if depth == 0 {
			if tok.Kind == token.Semicolon {
				flush(i, tok.Pos.Offset)
				continue
			}
			if start >= 0 && caseDepth == 0 && startsStatement(toks, i, &st) {
				flush(i, tok.Pos.Offset)
			}
		}

		first := start < 0
		if first {
			start = i
		}

		switch tok.Kind {
		case token.LParen:
			depth++
		case token.RParen:
			if depth > 0 {
				depth--
			}
		}

		if depth == 0 {
			switch {
			case tok.IsKeyword("case"):
				caseDepth++
			case tok.IsKeyword("end") && caseDepth > 0:
				caseDepth--
			}
			st.observe(tok, first)
		} else if first {
			st.observe(tok, true)
		}
	}
	flush(len(toks), batchEnd)
	return out
}

// startsStatement reports whether the keyword at i opens a new statement
// given the state of the current one.
func startsStatement(toks []token.Token, i int, st *stmtState) bool {
	tok := toks[i]
	if tok.Kind != token.Keyword {
		return false
	}
	var prev token.Token
	if i > 0 {
		prev = toks[i-1]
	}
	insertOpen := st.typ == TypeInsert && !st.sawValues && !st.sawSelect

	switch tok.Norm {
	case "select":
		if prev.IsAnyKeyword("union", "all", "except", "intersect", "as", "for") {
			return false
		}
		return !st.withPending && !insertOpen
	case "insert", "update", "delete", "merge":
		if st.withPending || prev.IsAnyKeyword("then", "on", "for", "as") {
			return false
		}
		return true
	case "with":
		if st.typ == TypeCreate {
			return false
		}
		return i+2 < len(toks) && toks[i+1].IsName() &&
			(toks[i+2].IsKeyword("as") || toks[i+2].Kind == token.LParen)
	case "set":
		switch st.typ {
		case TypeUpdate, TypeMerge, TypeAlter:
			return false
		}
		return true
	case "exec", "execute":
		return !insertOpen
	case "drop":
		return st.typ != TypeAlter
	case "if":
		// DROP TABLE IF EXISTS #t, as opposed to IF EXISTS (SELECT ...)
		if i+2 < len(toks) && toks[i+1].IsKeyword("exists") && toks[i+2].Kind != token.LParen {
			return false
		}
		return true
	case "create", "declare", "alter", "truncate", "while", "begin", "end", "else", "print", "use", "return",
		"commit", "rollback", "raiserror", "throw", "waitfor":
		return true
	}
	return false
}

// typeOf maps the first token of a statement to its type.
func typeOf(tok token.Token) Type {
	if tok.Kind == token.LParen {
		return TypeSelect
	}
	if tok.Kind != token.Keyword {
		return TypeUnknown
	}
	switch tok.Norm {
	case "select", "with":
		return TypeSelect
	case "insert":
		return TypeInsert
	case "update":
		return TypeUpdate
	case "delete":
		return TypeDelete
	case "merge":
		return TypeMerge
	case "create":
		return TypeCreate
	case "declare":
		return TypeDeclare
	case "drop":
		return TypeDrop
	case "alter":
		return TypeAlter
	case "truncate":
		return TypeTruncate
	case "exec", "execute":
		return TypeExec
	case "set":
		return TypeSet
	case "if", "while", "begin", "end", "else", "print", "use", "return",
		"commit", "rollback", "raiserror", "throw", "waitfor":
		return TypeControl
	}
	return TypeUnknown
}
