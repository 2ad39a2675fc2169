// Package catalog holds the read-only database metadata the resolver works
// against: objects, their columns and the foreign key graph.
//
// A Snapshot is immutable once built. Refreshing metadata means building a
// new Snapshot and swapping it in; readers never observe a partial update.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/leapstack-labs/sqlsense/pkg/token"
)

// DefaultSchema is assumed for one-part names when a snapshot names none.
const DefaultSchema = "dbo"

// ErrNotFound is returned when a named snapshot or object does not exist.
var ErrNotFound = errors.New("catalog: not found")

// ObjectKind classifies a catalog object.
type ObjectKind int

// Object kinds.
const (
	KindTable ObjectKind = iota
	KindView
	KindSynonym
)

var kindNames = map[ObjectKind]string{
	KindTable:   "table",
	KindView:    "view",
	KindSynonym: "synonym",
}

func (k ObjectKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k ObjectKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ObjectKind) UnmarshalText(b []byte) error {
	kind, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseKind parses "table", "view" or "synonym" (any case, with "base table"
// and "u"/"v"/"sn" accepted as information_schema and sys.objects spellings).
func ParseKind(s string) (ObjectKind, error) {
	switch token.Fold(s) {
	case "", "table", "base table", "u":
		return KindTable, nil
	case "view", "v":
		return KindView, nil
	case "synonym", "sn":
		return KindSynonym, nil
	}
	return KindTable, fmt.Errorf("catalog: unknown object kind %q", s)
}

// Column describes one column of a table or view.
type Column struct {
	Name       string
	Type       string
	Ordinal    int // 1-based position in the object
	PrimaryKey bool
	ForeignKey bool
	Nullable   bool
}

// Object is a table, view or synonym.
type Object struct {
	Schema  string
	Name    string
	Kind    ObjectKind
	Columns []Column
}

// Key returns the folded schema-qualified name of the object.
func (o *Object) Key() string {
	return Key(o.Schema, o.Name)
}

// QualifiedName returns schema.name in its original case.
func (o *Object) QualifiedName() string {
	if o.Schema == "" {
		return o.Name
	}
	return o.Schema + "." + o.Name
}

// Column finds a column by name, case-insensitively.
func (o *Object) Column(name string) (Column, bool) {
	n := token.Fold(name)
	for _, c := range o.Columns {
		if token.Fold(c.Name) == n {
			return c, true
		}
	}
	return Column{}, false
}

// FKEdge is one column pair of a foreign key constraint.
type FKEdge struct {
	ConstraintName string
	SourceSchema   string
	SourceTable    string
	SourceColumn   string
	TargetSchema   string
	TargetTable    string
	TargetColumn   string
}

// SourceKey returns the folded schema.table of the referencing side.
func (e FKEdge) SourceKey() string { return Key(e.SourceSchema, e.SourceTable) }

// TargetKey returns the folded schema.table of the referenced side.
func (e FKEdge) TargetKey() string { return Key(e.TargetSchema, e.TargetTable) }

// Key builds the case-insensitive lookup key for schema.name.
func Key(schema, name string) string {
	return token.Fold(schema) + "." + token.Fold(name)
}

// Snapshot is an immutable view of a database's metadata.
type Snapshot struct {
	Database      string
	DefaultSchema string

	objects []Object
	edges   []FKEdge

	byKey  map[string]int   // schema.name -> object index
	byName map[string][]int // name -> object indexes across schemas
	fkOut  map[string][]int // source schema.table -> edge indexes
	fkIn   map[string][]int // target schema.table -> edge indexes
}

// New builds a snapshot. Objects and edges are copied; column FK flags are
// derived from the edges and ordinals default to list position.
func New(database, defaultSchema string, objects []Object, edges []FKEdge) *Snapshot {
	if defaultSchema == "" {
		defaultSchema = DefaultSchema
	}
	s := &Snapshot{
		Database:      database,
		DefaultSchema: defaultSchema,
		objects:       make([]Object, len(objects)),
		edges:         append([]FKEdge(nil), edges...),
		byKey:         make(map[string]int, len(objects)),
		byName:        make(map[string][]int, len(objects)),
		fkOut:         make(map[string][]int),
		fkIn:          make(map[string][]int),
	}

	for i, e := range s.edges {
		if e.SourceSchema == "" {
			s.edges[i].SourceSchema = defaultSchema
		}
		if e.TargetSchema == "" {
			s.edges[i].TargetSchema = defaultSchema
		}
	}
	fkCols := make(map[string]bool)
	for i, e := range s.edges {
		s.fkOut[e.SourceKey()] = append(s.fkOut[e.SourceKey()], i)
		s.fkIn[e.TargetKey()] = append(s.fkIn[e.TargetKey()], i)
		fkCols[e.SourceKey()+"."+token.Fold(e.SourceColumn)] = true
	}

	for i, o := range objects {
		if o.Schema == "" {
			o.Schema = defaultSchema
		}
		cols := make([]Column, len(o.Columns))
		for j, c := range o.Columns {
			if c.Ordinal == 0 {
				c.Ordinal = j + 1
			}
			if fkCols[o.Key()+"."+token.Fold(c.Name)] {
				c.ForeignKey = true
			}
			cols[j] = c
		}
		sort.SliceStable(cols, func(a, b int) bool { return cols[a].Ordinal < cols[b].Ordinal })
		o.Columns = cols
		s.objects[i] = o

		s.byKey[o.Key()] = i
		name := token.Fold(o.Name)
		s.byName[name] = append(s.byName[name], i)
	}
	return s
}

// Empty returns a snapshot with no objects.
func Empty() *Snapshot {
	return New("", "", nil, nil)
}

// IsEmpty reports whether the snapshot holds no objects. A nil snapshot is
// empty.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.objects) == 0
}

// Objects returns all objects in declaration order.
func (s *Snapshot) Objects() []Object {
	if s == nil {
		return nil
	}
	return s.objects
}

// Edges returns every foreign key edge.
func (s *Snapshot) Edges() []FKEdge {
	if s == nil {
		return nil
	}
	return s.edges
}

// Lookup resolves a possibly unqualified object name. A one-part name is
// looked up in the default schema first, then in any schema.
func (s *Snapshot) Lookup(schema, name string) (*Object, bool) {
	if s == nil || name == "" {
		return nil, false
	}
	if schema != "" {
		if i, ok := s.byKey[Key(schema, name)]; ok {
			return &s.objects[i], true
		}
		return nil, false
	}
	if i, ok := s.byKey[Key(s.DefaultSchema, name)]; ok {
		return &s.objects[i], true
	}
	if idx := s.byName[token.Fold(name)]; len(idx) > 0 {
		return &s.objects[idx[0]], true
	}
	return nil, false
}

// Columns returns the columns of schema.name, nil when unknown.
func (s *Snapshot) Columns(schema, name string) []Column {
	if o, ok := s.Lookup(schema, name); ok {
		return o.Columns
	}
	return nil
}

// Schemas returns the distinct schema names, sorted.
func (s *Snapshot) Schemas() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, o := range s.objects {
		k := token.Fold(o.Schema)
		if !seen[k] {
			seen[k] = true
			out = append(out, o.Schema)
		}
	}
	sort.Strings(out)
	return out
}

// EdgesFrom returns the edges whose referencing side is schema.table.
func (s *Snapshot) EdgesFrom(schema, table string) []FKEdge {
	if s == nil {
		return nil
	}
	return s.pick(s.fkOut[Key(schema, table)])
}

// EdgesTo returns the edges that reference schema.table.
func (s *Snapshot) EdgesTo(schema, table string) []FKEdge {
	if s == nil {
		return nil
	}
	return s.pick(s.fkIn[Key(schema, table)])
}

func (s *Snapshot) pick(idx []int) []FKEdge {
	if len(idx) == 0 {
		return nil
	}
	out := make([]FKEdge, len(idx))
	for i, j := range idx {
		out[i] = s.edges[j]
	}
	return out
}
