package token

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold returns the case-insensitive comparison key for an identifier.
// SQL Server default collations compare names case-insensitively, so every
// lookup in the resolver goes through this.
func Fold(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			// Casers keep state between calls; build one per use.
			return cases.Fold().String(s)
		}
	}
	return strings.ToLower(s)
}

// EqualFold reports whether a and b name the same identifier.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}

// Unquote strips [brackets] or "double quotes" from a quoted identifier and
// collapses the doubled closing delimiter escape. Other text is returned as is.
func Unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	switch s[0] {
	case '[':
		body := s[1:]
		body = strings.TrimSuffix(body, "]")
		return strings.ReplaceAll(body, "]]", "]")
	case '"':
		body := s[1:]
		body = strings.TrimSuffix(body, `"`)
		return strings.ReplaceAll(body, `""`, `"`)
	}
	return s
}

// Quote brackets name unless it is a plain identifier that is not a
// keyword. Temp table and variable names are returned as is.
func Quote(name string) string {
	if name == "" || name[0] == '#' || name[0] == '@' {
		return name
	}
	plain := !LookupKeyword(Fold(name))
	for i, r := range name {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= 0x80:
		case i > 0 && (r >= '0' && r <= '9' || r == '$' || r == '@' || r == '#'):
		default:
			plain = false
		}
	}
	if plain {
		return name
	}
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}
