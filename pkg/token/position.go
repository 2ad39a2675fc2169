package token

// Position represents a location in the source text.
// Line and Column are 0-based to match editor conventions.
type Position struct {
	Line   int // 0-based line number
	Column int // 0-based byte column within the line
	Offset int // 0-based byte offset
}

// Span represents a half-open byte range [Start, End) in the source.
type Span struct {
	Start int
	End   int
}

// Contains returns true if the span contains the given offset.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset < s.End
}

// Covers is like Contains but also accepts the end offset, which is where a
// cursor sits right after typing the last character of a span.
func (s Span) Covers(offset int) bool {
	return offset >= s.Start && offset <= s.End
}

// Len returns the number of bytes in the span.
func (s Span) Len() int {
	return s.End - s.Start
}
