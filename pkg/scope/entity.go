package scope

import (
	"github.com/leapstack-labs/sqlsense/pkg/catalog"
	"github.com/leapstack-labs/sqlsense/pkg/statement"
)

// Entity is anything a column reference can be qualified by: a catalog
// object, a CTE, a derived table, a temp table or a table variable.
type Entity interface {
	// Name is the object name, not the alias it is bound under.
	Name() string
	Kind() statement.RefKind
	Columns(cat *catalog.Snapshot) []catalog.Column
}

// tableEntity is a catalog object. Its columns are read from the catalog
// on demand.
type tableEntity struct {
	obj *catalog.Object
}

func (e tableEntity) Name() string { return e.obj.Name }

func (e tableEntity) Kind() statement.RefKind {
	switch e.obj.Kind {
	case catalog.KindView:
		return statement.RefView
	case catalog.KindSynonym:
		return statement.RefSynonym
	}
	return statement.RefBaseTable
}

func (e tableEntity) Columns(cat *catalog.Snapshot) []catalog.Column {
	if cols := cat.Columns(e.obj.Schema, e.obj.Name); cols != nil {
		return cols
	}
	return e.obj.Columns
}

// projectedEntity exposes a fixed column list: the projection of a CTE or
// subquery, or the declared columns of a temp object.
type projectedEntity struct {
	name string
	kind statement.RefKind
	cols []catalog.Column
}

func (e projectedEntity) Name() string { return e.name }
func (e projectedEntity) Kind() statement.RefKind { return e.kind }
func (e projectedEntity) Columns(*catalog.Snapshot) []catalog.Column { return e.cols }

// unknownEntity is a reference that resolved to nothing. It keeps the
// alias bound so lookups succeed, but offers no columns.
type unknownEntity struct {
	name string
}

func (e unknownEntity) Name() string { return e.name }
func (e unknownEntity) Kind() statement.RefKind { return statement.RefUnknown }
func (e unknownEntity) Columns(*catalog.Snapshot) []catalog.Column { return nil }

// ObjectOf returns the catalog object behind e, if it is one.
func ObjectOf(e Entity) (*catalog.Object, bool) {
	if t, ok := e.(tableEntity); ok {
		return t.obj, true
	}
	return nil, false
}
