// Package complete turns a cursor position and a resolved scope into a
// ranked list of completion candidates.
package complete

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/leapstack-labs/sqlsense/pkg/catalog"
	"github.com/leapstack-labs/sqlsense/pkg/fuzzy"
	"github.com/leapstack-labs/sqlsense/pkg/scope"
	"github.com/leapstack-labs/sqlsense/pkg/statement"
	"github.com/leapstack-labs/sqlsense/pkg/token"
)

// Kind classifies a candidate.
type Kind int

// Candidate kinds.
const (
	KindTable Kind = iota
	KindColumn
	KindJoinSuggestion
	KindWarning
)

var kindNames = map[Kind]string{
	KindTable:          "table",
	KindColumn:         "column",
	KindJoinSuggestion: "join",
	KindWarning:        "warning",
}

func (k Kind) String() string {
	return kindNames[k]
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Candidate is one completion item. Lower SortPriority sorts first.
type Candidate struct {
	Label        string     `json:"label"`
	Kind         Kind       `json:"kind"`
	Detail       string     `json:"detail,omitempty"`
	SortPriority int        `json:"sort_priority"`
	Replace      token.Span `json:"replace"`
	InsertText   string     `json:"insert_text"`
}

// Options tune ranking.
type Options struct {
	// Threshold is the similarity a non-prefix match needs, in (0, 1].
	Threshold float64
	// Limit caps the number of candidates; zero means no cap.
	Limit int
}

// DefaultOptions returns the options Resolve uses.
func DefaultOptions() Options {
	return Options{Threshold: fuzzy.DefaultThreshold}
}

// Resolve lists candidates for cur with the default options.
func Resolve(s *scope.Resolved, cur Cursor, cat *catalog.Snapshot) []Candidate {
	return DefaultOptions().Resolve(s, cur, cat)
}

// Resolve lists candidates for cur. It returns nil when the catalog is
// empty or the cursor asks for nothing.
func (o Options) Resolve(s *scope.Resolved, cur Cursor, cat *catalog.Snapshot) []Candidate {
	if cat.IsEmpty() || s == nil {
		return nil
	}
	if o.Threshold <= 0 {
		o.Threshold = fuzzy.DefaultThreshold
	}

	var items []ranked
	switch cur.Context {
	case ContextTable:
		items = o.tables(s, cur, cat)
	case ContextColumn:
		items = o.columns(s, cur, cat)
	case ContextBareColumn:
		items = o.bareColumns(s, cur, cat)
	default:
		return nil
	}

	slices.SortStableFunc(items, compareRanked)
	if o.Limit > 0 && len(items) > o.Limit {
		items = items[:o.Limit]
	}
	out := make([]Candidate, len(items))
	for i, it := range items {
		c := it.cand
		c.SortPriority = i
		c.Replace = cur.Replace
		if c.InsertText == "" {
			c.InsertText = c.Label
		}
		out[i] = c
	}
	return out
}

// ranked carries the sort keys of a candidate.
type ranked struct {
	cand  Candidate
	tier  int // 0 prefix match, 1 fuzzy match
	group int // lower first: boosted, primary key, foreign key, other
	order int // catalog ordinal or source order
}

const (
	groupBoosted = iota
	groupPrimary
	groupForeign
	groupOther
	groupOuter
)

func compareRanked(a, b ranked) int {
	switch {
	case a.tier != b.tier:
		return a.tier - b.tier
	case a.group != b.group:
		return a.group - b.group
	case a.order != b.order:
		return a.order - b.order
	}
	return strings.Compare(token.Fold(a.cand.Label), token.Fold(b.cand.Label))
}

// matchTier reports whether name matches the typed prefix: 0 for a
// case-insensitive prefix match, 1 for a fuzzy match.
func (o Options) matchTier(prefix, name string) (int, bool) {
	if prefix == "" || strings.HasPrefix(token.Fold(name), token.Fold(prefix)) {
		return 0, true
	}
	if fuzzy.Normalize(prefix) == "" {
		return 0, false
	}
	score := fuzzy.Similarity(prefix, name)
	if n := utf8.RuneCountInString(prefix); n < utf8.RuneCountInString(name) {
		score = max(score, fuzzy.Similarity(prefix, string([]rune(name)[:n])))
	}
	if score >= o.Threshold {
		return 1, true
	}
	return 0, false
}

func (o Options) tables(s *scope.Resolved, cur Cursor, cat *catalog.Snapshot) []ranked {
	var out []ranked
	var schema string
	switch len(cur.Qualifier) {
	case 2:
		if cat.Database != "" && !token.EqualFold(cur.Qualifier[0], cat.Database) {
			return nil
		}
		schema = cur.Qualifier[1]
	case 1:
		schema = cur.Qualifier[0]
	}

	for _, obj := range cat.Objects() {
		if schema != "" && !token.EqualFold(obj.Schema, schema) {
			continue
		}
		if cur.Joined[catalog.Key(obj.Schema, obj.Name)] {
			continue
		}
		tier, ok := o.matchTier(cur.Prefix, obj.Name)
		if !ok {
			continue
		}
		insert := token.Quote(obj.Name)
		if schema == "" && !token.EqualFold(obj.Schema, cat.DefaultSchema) {
			insert = token.Quote(obj.Schema) + "." + insert
		}
		out = append(out, ranked{
			cand: Candidate{
				Label:      obj.Name,
				Kind:       KindTable,
				Detail:     obj.Schema + " " + obj.Kind.String(),
				InsertText: insert,
			},
			tier:  tier,
			group: groupOther,
		})
	}
	if schema != "" {
		return out
	}

	for _, tmp := range s.Temps() {
		if tier, ok := o.matchTier(cur.Prefix, tmp.Name); ok {
			out = append(out, ranked{
				cand:  Candidate{Label: tmp.Name, Kind: KindTable, Detail: tmp.Kind.String()},
				tier:  tier,
				group: groupOther,
			})
		}
	}
	for _, cte := range s.CTEs() {
		if tier, ok := o.matchTier(cur.Prefix, cte.Name); ok {
			out = append(out, ranked{
				cand:  Candidate{Label: cte.Name, Kind: KindTable, Detail: statement.RefCTE.String(), InsertText: token.Quote(cte.Name)},
				tier:  tier,
				group: groupOther,
			})
		}
	}
	return out
}

func (o Options) columns(s *scope.Resolved, cur Cursor, cat *catalog.Snapshot) []ranked {
	b, ok := s.Lookup(cur.Alias())
	if !ok {
		return nil
	}
	var boost map[string]bool
	if cur.Clause == statement.ClauseOn {
		boost = o.otherSideColumns(s, b, cat)
	}

	var out []ranked
	for _, col := range b.Entity.Columns(cat) {
		tier, ok := o.matchTier(cur.Prefix, col.Name)
		if !ok {
			continue
		}
		r := columnItem(col, col.Name, tier)
		if boost != nil && o.matches(col.Name, boost) {
			r.group = groupBoosted
		}
		out = append(out, r)
	}
	return out
}

func (o Options) bareColumns(s *scope.Resolved, cur Cursor, cat *catalog.Snapshot) []ranked {
	visible := s.Visible()
	var out []ranked
	for bi, b := range visible {
		for _, col := range b.Entity.Columns(cat) {
			tier, ok := o.matchTier(cur.Prefix, col.Name)
			if !ok {
				continue
			}
			label := col.Name
			if len(visible) > 1 {
				label = b.Qualifier + "." + col.Name
			}
			r := columnItem(col, label, tier)
			r.cand.InsertText = quoteLabel(label)
			r.cand.Detail = b.Qualifier + " " + r.cand.Detail
			if b.Outer {
				r.group = groupOuter
			}
			r.order += bi * 10000
			out = append(out, r)
		}
	}
	return out
}

func columnItem(col catalog.Column, label string, tier int) ranked {
	group := groupOther
	detail := col.Type
	switch {
	case col.PrimaryKey:
		group = groupPrimary
		detail = strings.TrimSpace(detail + " PK")
	case col.ForeignKey:
		group = groupForeign
		detail = strings.TrimSpace(detail + " FK")
	}
	return ranked{
		cand: Candidate{
			Label:      label,
			Kind:       KindColumn,
			Detail:     detail,
			InsertText: token.Quote(col.Name),
		},
		tier:  tier,
		group: group,
		order: col.Ordinal,
	}
}

// otherSideColumns collects the column names of every other source in the
// scope. In an ON clause the column that pairs with one of them is the
// likely completion.
func (o Options) otherSideColumns(s *scope.Resolved, self scope.Binding, cat *catalog.Snapshot) map[string]bool {
	names := make(map[string]bool)
	for _, b := range s.Bindings() {
		if token.EqualFold(b.Qualifier, self.Qualifier) {
			continue
		}
		for _, col := range b.Entity.Columns(cat) {
			names[col.Name] = true
		}
	}
	return names
}

func (o Options) matches(name string, others map[string]bool) bool {
	for other := range others {
		if fuzzy.MatchColumns(name, other, o.Threshold).OK() {
			return true
		}
	}
	return false
}

func quoteLabel(label string) string {
	q, col, ok := strings.Cut(label, ".")
	if !ok {
		return token.Quote(label)
	}
	return token.Quote(q) + "." + token.Quote(col)
}
