// Package fuzzy scores how alike two identifiers are. It drives join
// column pairing when no foreign key exists and ranks near-miss completions.
package fuzzy

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/leapstack-labs/sqlsense/pkg/token"
)

// DefaultThreshold is the minimum score for two columns to be a match.
const DefaultThreshold = 0.85

// MatchKind says how a match was established.
type MatchKind int

// Match kinds, strongest first.
const (
	NoMatch MatchKind = iota
	Exact             // equal ignoring case
	Normalized        // equal after Normalize
	Similar           // edit distance score at or above the threshold
)

func (k MatchKind) String() string {
	switch k {
	case Exact:
		return "exact"
	case Normalized:
		return "normalized"
	case Similar:
		return "fuzzy"
	}
	return "none"
}

// Match is the outcome of comparing two names.
type Match struct {
	Kind  MatchKind
	Score float64
}

// OK reports whether the comparison produced a match.
func (m Match) OK() bool {
	return m.Kind != NoMatch
}

// Normalize folds case, drops underscores and strips one leading "fk" or
// "pk" so that fk_customer_id and CustomerID compare equal. A bare "fk"
// or "pk" normalizes to "".
func Normalize(s string) string {
	s = strings.ReplaceAll(token.Fold(s), "_", "")
	if rest, ok := strings.CutPrefix(s, "fk"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(s, "pk"); ok {
		return rest
	}
	return s
}

// Similarity returns 1 - distance/maxlen over the normalized forms, in [0, 1].
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1
	}
	la, lb := utf8.RuneCountInString(na), utf8.RuneCountInString(nb)
	longest := max(la, lb)
	if la == 0 || lb == 0 {
		return 0
	}
	d := levenshtein.ComputeDistance(na, nb)
	return 1 - float64(d)/float64(longest)
}

// MatchColumns compares two column names: exact (case-insensitive) first,
// then normalized equality, then similarity against threshold.
func MatchColumns(a, b string, threshold float64) Match {
	if a == "" || b == "" {
		if a == b {
			return Match{Kind: Exact, Score: 1}
		}
		return Match{}
	}
	if token.EqualFold(a, b) {
		return Match{Kind: Exact, Score: 1}
	}
	if Normalize(a) == Normalize(b) {
		return Match{Kind: Normalized, Score: 1}
	}
	score := Similarity(a, b)
	if score >= threshold {
		return Match{Kind: Similar, Score: score}
	}
	return Match{Score: score}
}

// Better reports whether m outranks other: a stronger kind wins, then a
// higher score.
func (m Match) Better(other Match) bool {
	if m.Kind == NoMatch {
		return false
	}
	if other.Kind == NoMatch {
		return true
	}
	if m.Kind != other.Kind {
		return m.Kind < other.Kind
	}
	return m.Score > other.Score
}

// BestMatch returns the index of the candidate that best matches name, or -1.
// Exact matches always beat fuzzy ones regardless of order.
func BestMatch(name string, candidates []string, threshold float64) (int, Match) {
	best, bestMatch := -1, Match{}
	for i, c := range candidates {
		m := MatchColumns(name, c, threshold)
		if m.Better(bestMatch) {
			best, bestMatch = i, m
		}
	}
	return best, bestMatch
}
