package engine

import (
	"strings"

	"github.com/leapstack-labs/sqlsense/pkg/token"
)

// Offset converts a 0-based line and byte column to a byte offset. Columns
// past the end of a line clamp to the line end; lines past the end of the
// text clamp to the text end.
func Offset(text string, line, col int) int {
	start := 0
	for l := 0; l < line; l++ {
		nl := strings.IndexByte(text[start:], '\n')
		if nl < 0 {
			return len(text)
		}
		start += nl + 1
	}
	end := len(text)
	if nl := strings.IndexByte(text[start:], '\n'); nl >= 0 {
		end = start + nl
	}
	return start + min(max(col, 0), end-start)
}

// PositionOf converts a byte offset to a position.
func PositionOf(text string, offset int) token.Position {
	offset = min(max(offset, 0), len(text))
	line := strings.Count(text[:offset], "\n")
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	return token.Position{Line: line, Column: offset - lineStart, Offset: offset}
}
