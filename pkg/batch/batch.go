// Package batch splits a token stream into GO-separated batches.
//
// A batch is the unit that scopes local temp tables and table variables:
// anything created before a GO is gone after it.
package batch

import "github.com/leapstack-labs/sqlsense/pkg/token"

// Batch is a run of significant tokens between two separators.
type Batch struct {
	Index  int
	Tokens []token.Token // comments, separators and EOF removed
	Start  int           // byte offset where the batch begins
	End    int           // byte offset where the batch ends (exclusive)
}

// Span returns the byte range of the batch.
func (b Batch) Span() token.Span {
	return token.Span{Start: b.Start, End: b.End}
}

// Split cuts tokens at every batch separator. It always returns at least one
// batch so that any cursor offset maps to one.
func Split(tokens []token.Token) []Batch {
	batches := []Batch{{Index: 0}}
	cur := &batches[0]

	for _, tok := range tokens {
		switch tok.Kind {
		case token.EOF:
			cur.End = tok.Pos.Offset
			return batches
		case token.BatchSeparator:
			cur.End = tok.Pos.Offset
			batches = append(batches, Batch{Index: len(batches), Start: tok.End()})
			cur = &batches[len(batches)-1]
		case token.Comment:
		default:
			cur.Tokens = append(cur.Tokens, tok)
		}
	}
	if n := len(tokens); n > 0 {
		cur.End = max(cur.Start, tokens[n-1].End())
	}
	return batches
}

// At returns the index of the batch containing offset. An offset sitting
// exactly on a separator belongs to the batch before it.
func At(batches []Batch, offset int) int {
	for i, b := range batches {
		if offset <= b.End {
			return i
		}
	}
	return len(batches) - 1
}
