// Package join proposes tables to join to the ones already in a FROM
// clause, following foreign keys in both directions and falling back to
// column-name similarity when no key connects them.
package join

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/leapstack-labs/sqlsense/pkg/catalog"
	"github.com/leapstack-labs/sqlsense/pkg/fuzzy"
	"github.com/leapstack-labs/sqlsense/pkg/scope"
	"github.com/leapstack-labs/sqlsense/pkg/statement"
	"github.com/leapstack-labs/sqlsense/pkg/token"
)

// Default search bounds.
const (
	DefaultMaxDepth  = 2
	DefaultBatchSize = 50
)

// Options bound the search.
type Options struct {
	// MaxDepth is the number of FK hops explored from the present tables.
	MaxDepth int
	// BatchSize caps the tables discovered per level.
	BatchSize int
	// Threshold is the column similarity the name-based fallback needs.
	// Zero disables the fallback.
	Threshold float64
}

// DefaultOptions returns the default bounds.
func DefaultOptions() Options {
	return Options{
		MaxDepth:  DefaultMaxDepth,
		BatchSize: DefaultBatchSize,
		Threshold: fuzzy.DefaultThreshold,
	}
}

// ColumnPair is one equality of a join condition.
type ColumnPair struct {
	Source string
	Target string
}

// Hop joins one table to the next along a path.
type Hop struct {
	From       *catalog.Object
	To         *catalog.Object
	FromAlias  string
	ToAlias    string
	Pairs      []ColumnPair
	Constraint string
}

// OnClause renders the hop's join condition.
func (h Hop) OnClause() string {
	return GenerateOnClause(h.FromAlias, h.ToAlias, h.Pairs)
}

// Suggestion is a table that can be joined to the present ones.
type Suggestion struct {
	Target *catalog.Object
	Alias  string
	// OnClause joins Target to the previous table of Path.
	OnClause string
	// Path runs from a table already in the query to Target. Intermediate
	// tables carry the aliases of their own suggestions.
	Path  []Hop
	Depth int
	ViaFK bool
}

// JoinText renders the JOIN clauses that bring Target into the query,
// including the intermediate tables of a multi-hop path.
func (s Suggestion) JoinText() string {
	var b strings.Builder
	for i, h := range s.Path {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("JOIN ")
		b.WriteString(qualified(h.To))
		b.WriteByte(' ')
		b.WriteString(token.Quote(h.ToAlias))
		b.WriteString(" ON ")
		b.WriteString(h.OnClause())
	}
	return b.String()
}

// GenerateOnClause renders "src.a = dst.b AND ..." for the given pairs.
func GenerateOnClause(src, dst string, pairs []ColumnPair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, token.Quote(src)+"."+token.Quote(p.Source)+" = "+token.Quote(dst)+"."+token.Quote(p.Target))
	}
	return strings.Join(parts, " AND ")
}

type node struct {
	obj   *catalog.Object
	alias string
	path  []Hop
}

// Suggest explores the FK graph outward from the catalog tables in joined.
// Results are ordered by depth, then discovery order; tables already in
// the query are never suggested.
func Suggest(s *scope.Resolved, joined []statement.TableRef, cat *catalog.Snapshot, opts Options) []Suggestion {
	if cat.IsEmpty() {
		return nil
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	aliases := newAliasSet(s)
	visited := make(map[string]bool)
	var roots []node
	for _, ref := range joined {
		obj := objectFor(s, ref, cat)
		if obj == nil || visited[obj.Key()] {
			continue
		}
		visited[obj.Key()] = true
		roots = append(roots, node{obj: obj, alias: ref.Qualifier()})
	}

	var out []Suggestion
	frontier := roots
	for depth := 1; depth <= opts.MaxDepth && len(frontier) > 0; depth++ {
		var next []node
		for _, n := range frontier {
			for _, h := range hops(n, cat) {
				if len(next) >= opts.BatchSize {
					break
				}
				if visited[h.To.Key()] {
					continue
				}
				visited[h.To.Key()] = true
				h.ToAlias = aliases.take(h.To.Name)
				path := append(append([]Hop(nil), n.path...), h)
				next = append(next, node{obj: h.To, alias: h.ToAlias, path: path})
				out = append(out, Suggestion{
					Target:   h.To,
					Alias:    h.ToAlias,
					OnClause: h.OnClause(),
					Path:     path,
					Depth:    depth,
					ViaFK:    true,
				})
			}
		}
		frontier = next
	}

	if opts.Threshold > 0 {
		out = append(out, similar(roots, visited, aliases, cat, opts)...)
	}
	return out
}

// objectFor resolves a reference to its catalog object, through the scope
// when one is given.
func objectFor(s *scope.Resolved, ref statement.TableRef, cat *catalog.Snapshot) *catalog.Object {
	if s != nil {
		if b, ok := s.Lookup(ref.Qualifier()); ok {
			obj, _ := scope.ObjectOf(b.Entity)
			return obj
		}
	}
	switch ref.Kind {
	case statement.RefUnknown, statement.RefBaseTable, statement.RefView, statement.RefSynonym:
		obj, _ := cat.Lookup(ref.Schema, ref.Name)
		return obj
	}
	return nil
}

// hops lists the tables one FK away from n, outgoing edges first.
// Edges of one multi-column constraint form a single hop.
func hops(n node, cat *catalog.Snapshot) []Hop {
	var out []Hop
	index := make(map[string]int)
	add := func(other *catalog.Object, constraint string, pair ColumnPair, dir string) {
		if other == nil {
			return
		}
		if constraint != "" {
			key := dir + constraint + "\x00" + other.Key()
			if i, ok := index[key]; ok {
				out[i].Pairs = append(out[i].Pairs, pair)
				return
			}
			index[key] = len(out)
		}
		out = append(out, Hop{
			From:       n.obj,
			To:         other,
			FromAlias:  n.alias,
			Pairs:      []ColumnPair{pair},
			Constraint: constraint,
		})
	}

	for _, e := range cat.EdgesFrom(n.obj.Schema, n.obj.Name) {
		other, _ := cat.Lookup(e.TargetSchema, e.TargetTable)
		add(other, e.ConstraintName, ColumnPair{Source: e.SourceColumn, Target: e.TargetColumn}, ">")
	}
	for _, e := range cat.EdgesTo(n.obj.Schema, n.obj.Name) {
		other, _ := cat.Lookup(e.SourceSchema, e.SourceTable)
		add(other, e.ConstraintName, ColumnPair{Source: e.TargetColumn, Target: e.SourceColumn}, "<")
	}
	return out
}

// similar proposes joins for tables the FK graph did not reach, pairing a
// key column on one side with a similarly named column on the other.
func similar(roots []node, visited map[string]bool, aliases *aliasSet, cat *catalog.Snapshot, opts Options) []Suggestion {
	var out []Suggestion
	for i := range cat.Objects() {
		if len(out) >= opts.BatchSize {
			break
		}
		obj := &cat.Objects()[i]
		if visited[obj.Key()] {
			continue
		}
		root, pair, ok := bestPair(roots, obj, opts.Threshold)
		if !ok {
			continue
		}
		visited[obj.Key()] = true
		h := Hop{
			From:      root.obj,
			To:        obj,
			FromAlias: root.alias,
			ToAlias:   aliases.take(obj.Name),
			Pairs:     []ColumnPair{pair},
		}
		out = append(out, Suggestion{
			Target:   obj,
			Alias:    h.ToAlias,
			OnClause: h.OnClause(),
			Path:     []Hop{h},
			Depth:    1,
		})
	}
	return out
}

func bestPair(roots []node, obj *catalog.Object, threshold float64) (node, ColumnPair, bool) {
	var (
		best     fuzzy.Match
		bestRoot node
		bestPair ColumnPair
	)
	for _, r := range roots {
		for _, rc := range r.obj.Columns {
			for _, oc := range obj.Columns {
				if !isKey(rc) && !isKey(oc) {
					continue
				}
				m := fuzzy.MatchColumns(rc.Name, oc.Name, threshold)
				if m.Better(best) {
					best, bestRoot, bestPair = m, r, ColumnPair{Source: rc.Name, Target: oc.Name}
				}
			}
		}
	}
	return bestRoot, bestPair, best.OK()
}

func isKey(c catalog.Column) bool {
	return c.PrimaryKey || c.ForeignKey
}

func qualified(obj *catalog.Object) string {
	return token.Quote(obj.Schema) + "." + token.Quote(obj.Name)
}

// aliasSet hands out table aliases that do not clash with those in scope.
type aliasSet struct {
	taken map[string]bool
}

func newAliasSet(s *scope.Resolved) *aliasSet {
	a := &aliasSet{taken: make(map[string]bool)}
	if s != nil {
		for _, b := range s.Visible() {
			a.taken[token.Fold(b.Qualifier)] = true
		}
	}
	return a
}

func (a *aliasSet) take(name string) string {
	base := Initials(name)
	alias := base
	for n := 2; a.taken[token.Fold(alias)] || token.LookupKeyword(token.Fold(alias)); n++ {
		alias = base + strconv.Itoa(n)
	}
	a.taken[token.Fold(alias)] = true
	return alias
}

// Initials builds an alias from the word starts of a name:
// OrderLines -> ol, order_lines -> ol, vCustomerOrders -> vco.
func Initials(name string) string {
	var b strings.Builder
	prev := '_'
	for _, r := range name {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
		case b.Len() == 0,
			prev == '_' || prev == ' ' || prev == '-',
			unicode.IsUpper(r) && unicode.IsLower(prev):
			if unicode.IsLetter(r) {
				b.WriteRune(unicode.ToLower(r))
			}
		}
		prev = r
	}
	if b.Len() == 0 {
		return "t"
	}
	return b.String()
}
