// Package scope resolves which table-like entities are visible from a
// statement chunk and what columns they expose.
//
// Resolution order for a chunk: its own FROM/JOIN sources, then the CTEs of
// the enclosing WITH chain, then temp tables and table variables from the
// batch context. Enclosing chunks are searched after the chunk itself, so an
// inner alias shadows an outer one and outer aliases are visible to
// correlated subqueries, never the reverse.
package scope

import (
	"github.com/leapstack-labs/sqlsense/pkg/catalog"
	"github.com/leapstack-labs/sqlsense/pkg/statement"
	"github.com/leapstack-labs/sqlsense/pkg/token"
)

// Binding ties a qualifier (alias or bare name) to an entity.
type Binding struct {
	Qualifier string
	Ref       statement.TableRef
	Entity    Entity
	// Outer is set when the binding was found in an enclosing scope.
	Outer bool
}

// CTEInfo describes a CTE visible from a scope.
type CTEInfo struct {
	Name    string
	Columns []catalog.Column
}

type cteBinding struct {
	def   statement.CTE
	owner *Resolved // scope of the chunk holding the WITH clause
	index int       // position in the owner's WITH list
}

// Resolved is the scope of one chunk.
type Resolved struct {
	parent   *Resolved
	chunk    int
	bindings []Binding
	byKey    map[string]int
	ctes     []*cteBinding // visible CTEs, inherited ones first
	own      int           // index in ctes where this chunk's WITH list starts
	res      *resolver
}

// Build resolves chunk id of the arena. enclosing is the scope of the outer
// query for correlated subqueries and may be nil.
func Build(a *statement.Arena, id int, enclosing *Resolved, ctx *Context, cat *catalog.Snapshot) *Resolved {
	r := newResolver(a, ctx, cat)
	if enclosing != nil && enclosing.res.arena == a {
		r = enclosing.res
	}
	return r.build(id, enclosing)
}

// At resolves chunk id with the correct enclosing scopes for its nesting.
// An id of -1 yields a scope with no bindings that still sees the temp
// objects of ctx.
func At(a *statement.Arena, id int, ctx *Context, cat *catalog.Snapshot) *Resolved {
	r := newResolver(a, ctx, cat)
	var s *Resolved
	for _, cid := range a.Path(id) {
		enclosing := s
		if c := a.Get(cid); c.Role == statement.RoleCTE && s != nil {
			enclosing = s.cteView(s.cteIndex(cid))
		}
		s = r.build(cid, enclosing)
	}
	if s == nil {
		s = r.build(-1, nil)
	}
	return s
}

// ProjectionColumns returns the columns chunk id exposes to an outer query.
func ProjectionColumns(a *statement.Arena, id int, ctx *Context, cat *catalog.Snapshot) []catalog.Column {
	return newResolver(a, ctx, cat).chunkColumns(id, nil)
}

// Chunk returns the arena id of the chunk this scope belongs to.
func (s *Resolved) Chunk() int { return s.chunk }

// Parent returns the enclosing scope, nil at the top level.
func (s *Resolved) Parent() *Resolved { return s.parent }

// Catalog returns the snapshot the scope was resolved against.
func (s *Resolved) Catalog() *catalog.Snapshot { return s.res.cat }

// Context returns the batch context the scope was resolved with.
func (s *Resolved) Context() *Context { return s.res.ctx }

// Bindings returns the chunk's own bindings in source order.
func (s *Resolved) Bindings() []Binding {
	return s.bindings
}

// Visible returns every binding reachable from this scope, innermost first,
// leaving out outer bindings shadowed by inner ones.
func (s *Resolved) Visible() []Binding {
	var out []Binding
	seen := make(map[string]bool)
	for cur, outer := s, false; cur != nil; cur, outer = cur.parent, true {
		for _, b := range cur.bindings {
			key := token.Fold(b.Qualifier)
			if seen[key] {
				continue
			}
			seen[key] = true
			b.Outer = outer
			out = append(out, b)
		}
	}
	return out
}

// Lookup finds the binding for a qualifier, searching outward.
func (s *Resolved) Lookup(qualifier string) (Binding, bool) {
	key := token.Fold(qualifier)
	for cur, outer := s, false; cur != nil; cur, outer = cur.parent, true {
		if i, ok := cur.byKey[key]; ok {
			b := cur.bindings[i]
			b.Outer = outer
			return b, true
		}
	}
	return Binding{}, false
}

// Columns returns the columns of the entity bound to qualifier.
func (s *Resolved) Columns(qualifier string) []catalog.Column {
	b, ok := s.Lookup(qualifier)
	if !ok {
		return nil
	}
	return b.Entity.Columns(s.res.cat)
}

// CTEs returns the CTEs visible from this scope. A later definition with
// the same name hides an earlier one.
func (s *Resolved) CTEs() []CTEInfo {
	var out []CTEInfo
	seen := make(map[string]bool)
	for i := len(s.ctes) - 1; i >= 0; i-- {
		cb := s.ctes[i]
		key := token.Fold(cb.def.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, CTEInfo{Name: cb.def.Name, Columns: s.res.cteColumns(cb)})
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Temps returns the temp tables and table variables visible in the batch.
func (s *Resolved) Temps() []TempObject {
	return s.res.ctx.Objects()
}

func (s *Resolved) bind(ref statement.TableRef, e Entity) {
	key := token.Fold(ref.Qualifier())
	if _, exists := s.byKey[key]; exists || key == "" {
		return
	}
	s.byKey[key] = len(s.bindings)
	s.bindings = append(s.bindings, Binding{Qualifier: ref.Qualifier(), Ref: ref, Entity: e})
}

func (s *Resolved) lookupCTE(name string) (*cteBinding, bool) {
	key := token.Fold(name)
	for i := len(s.ctes) - 1; i >= 0; i-- {
		if token.Fold(s.ctes[i].def.Name) == key {
			return s.ctes[i], true
		}
	}
	return nil, false
}

// cteView is the scope a CTE body resolves in: whatever encloses the WITH
// chunk, plus the CTEs defined before this one.
func (s *Resolved) cteView(index int) *Resolved {
	v := &Resolved{parent: s.parent, chunk: s.chunk, byKey: map[string]int{}, res: s.res}
	v.ctes = append(v.ctes, s.ctes[:min(s.own+index, len(s.ctes))]...)
	v.own = len(v.ctes)
	return v
}

func (s *Resolved) cteIndex(body int) int {
	for i, cb := range s.ctes[s.own:] {
		if cb.def.Body == body {
			return i
		}
	}
	return len(s.ctes) - s.own
}

// sourceColumn finds the catalog column behind a projected column.
func (s *Resolved) sourceColumn(p statement.ProjectedColumn) (catalog.Column, bool) {
	if p.Source == "" {
		return catalog.Column{}, false
	}
	want := token.Fold(p.Source)
	match := func(cols []catalog.Column) (catalog.Column, bool) {
		for _, c := range cols {
			if token.Fold(c.Name) == want {
				return c, true
			}
		}
		return catalog.Column{}, false
	}
	if p.Qualifier != "" {
		return match(s.Columns(p.Qualifier))
	}
	for _, b := range s.bindings {
		if c, ok := match(b.Entity.Columns(s.res.cat)); ok {
			return c, true
		}
	}
	return catalog.Column{}, false
}
