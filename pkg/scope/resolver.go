package scope

import (
	"github.com/leapstack-labs/sqlsense/pkg/catalog"
	"github.com/leapstack-labs/sqlsense/pkg/statement"
	"github.com/leapstack-labs/sqlsense/pkg/token"
)

// resolver carries the inputs shared by every scope built from one arena
// and memoizes chunk projections.
type resolver struct {
	arena *statement.Arena
	ctx   *Context
	cat   *catalog.Snapshot
	memo  map[int][]catalog.Column
	busy  map[int]bool
}

func newResolver(a *statement.Arena, ctx *Context, cat *catalog.Snapshot) *resolver {
	if ctx == nil {
		ctx = NewContext(nil)
	}
	return &resolver{
		arena: a,
		ctx:   ctx,
		cat:   cat,
		memo:  make(map[int][]catalog.Column),
		busy:  make(map[int]bool),
	}
}

func (r *resolver) build(id int, enclosing *Resolved) *Resolved {
	s := &Resolved{parent: enclosing, chunk: id, byKey: make(map[string]int), res: r}
	if enclosing != nil {
		s.ctes = append(s.ctes, enclosing.ctes...)
	}
	s.own = len(s.ctes)

	c := r.arena.Get(id)
	if c == nil {
		return s
	}
	for i, def := range c.CTEs {
		s.ctes = append(s.ctes, &cteBinding{def: def, owner: s, index: i})
	}
	for _, ref := range c.Tables {
		s.bind(ref, r.entityFor(ref, s))
	}
	return s
}

// entityFor picks the entity implementation for a reference.
func (r *resolver) entityFor(ref statement.TableRef, s *Resolved) Entity {
	switch ref.Kind {
	case statement.RefSubquery:
		return projectedEntity{name: ref.Alias, kind: statement.RefSubquery, cols: r.derivedColumns(ref, s)}
	case statement.RefLocalTemp, statement.RefGlobalTemp, statement.RefTableVariable:
		if obj, ok := r.ctx.Lookup(ref.Name); ok {
			return projectedEntity{name: obj.Name, kind: obj.Kind, cols: obj.Columns}
		}
		return unknownEntity{name: ref.Name}
	}

	if ref.Schema == "" && ref.Database == "" {
		if cb, ok := s.lookupCTE(ref.Name); ok {
			return projectedEntity{name: cb.def.Name, kind: statement.RefCTE, cols: r.cteColumns(cb)}
		}
	}
	if ref.Database != "" && r.cat != nil && r.cat.Database != "" && !token.EqualFold(ref.Database, r.cat.Database) {
		return unknownEntity{name: ref.Name}
	}
	if obj, ok := r.cat.Lookup(ref.Schema, ref.Name); ok {
		return tableEntity{obj: obj}
	}
	return unknownEntity{name: ref.Name}
}

func (r *resolver) derivedColumns(ref statement.TableRef, s *Resolved) []catalog.Column {
	var cols []catalog.Column
	if ref.Subquery >= 0 {
		cols = r.chunkColumns(ref.Subquery, s)
	}
	if ref.Columns != nil {
		return renamed(cols, ref.Columns)
	}
	return cols
}

func (r *resolver) cteColumns(cb *cteBinding) []catalog.Column {
	var cols []catalog.Column
	if cb.def.Body >= 0 {
		cols = r.chunkColumns(cb.def.Body, cb.owner.cteView(cb.index))
	}
	if cb.def.Columns != nil {
		return renamed(cols, cb.def.Columns)
	}
	return cols
}

// chunkColumns computes the projection of chunk id, expanding stars
// against its sources. Cycles yield no columns.
func (r *resolver) chunkColumns(id int, enclosing *Resolved) []catalog.Column {
	if cols, ok := r.memo[id]; ok {
		return cols
	}
	c := r.arena.Get(id)
	if c == nil || r.busy[id] {
		return nil
	}
	r.busy[id] = true
	defer delete(r.busy, id)

	s := r.build(id, enclosing)
	var cols []catalog.Column
	for _, p := range c.Projection {
		switch {
		case p.Star && p.Qualifier != "":
			if b, ok := s.byKey[token.Fold(p.Qualifier)]; ok {
				cols = append(cols, s.bindings[b].Entity.Columns(r.cat)...)
			}
		case p.Star:
			for _, b := range s.bindings {
				cols = append(cols, b.Entity.Columns(r.cat)...)
			}
		case p.Name != "":
			col := catalog.Column{Name: p.Name}
			if src, ok := s.sourceColumn(p); ok {
				col.Type = src.Type
				col.Nullable = src.Nullable
				if token.EqualFold(src.Name, p.Name) {
					col.PrimaryKey = src.PrimaryKey
					col.ForeignKey = src.ForeignKey
				}
			}
			cols = append(cols, col)
		}
	}
	for i := range cols {
		cols[i].Ordinal = i + 1
	}
	r.memo[id] = cols
	return cols
}

// renamed applies an explicit column list, keeping types by position.
func renamed(cols []catalog.Column, names []string) []catalog.Column {
	out := make([]catalog.Column, len(names))
	for i, n := range names {
		out[i] = catalog.Column{Name: n, Ordinal: i + 1}
		if i < len(cols) {
			out[i].Type = cols[i].Type
			out[i].Nullable = cols[i].Nullable
		}
	}
	return out
}
