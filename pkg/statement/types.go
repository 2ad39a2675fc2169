package statement

import (
	"strings"

	"github.com/leapstack-labs/sqlsense/pkg/token"
)

// Type is the kind of statement a chunk holds.
type Type int

// Statement types.
const (
	TypeUnknown Type = iota
	TypeSelect
	TypeInsert
	TypeUpdate
	TypeDelete
	TypeMerge
	TypeCreate
	TypeDeclare
	TypeDrop
	TypeAlter
	TypeTruncate
	TypeExec
	TypeSet
	TypeControl // IF, WHILE, BEGIN, END, ELSE, PRINT, USE, RETURN ...
)

var typeNames = map[Type]string{
	TypeUnknown:  "UNKNOWN",
	TypeSelect:   "SELECT",
	TypeInsert:   "INSERT",
	TypeUpdate:   "UPDATE",
	TypeDelete:   "DELETE",
	TypeMerge:    "MERGE",
	TypeCreate:   "CREATE",
	TypeDeclare:  "DECLARE",
	TypeDrop:     "DROP",
	TypeAlter:    "ALTER",
	TypeTruncate: "TRUNCATE",
	TypeExec:     "EXEC",
	TypeSet:      "SET",
	TypeControl:  "CONTROL",
}

func (t Type) String() string {
	return typeNames[t]
}

// MarshalText renders the type by name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Role describes how a chunk is nested in its parent.
type Role int

// Chunk roles.
const (
	RoleStatement Role = iota // top-level statement in a batch
	RoleDerived               // subquery in FROM/JOIN, exposes its projection
	RoleCTE                   // body of a common table expression
	RoleNested                // expression subquery (IN, EXISTS, scalar)
)

// RefKind classifies a table reference.
type RefKind int

// Table reference kinds. The chunker only decides the syntactic kinds
// (temp tables, table variables, subqueries); named references stay
// Unknown until the scope builder resolves them against CTEs and the catalog.
const (
	RefUnknown RefKind = iota
	RefBaseTable
	RefView
	RefSynonym
	RefLocalTemp
	RefGlobalTemp
	RefTableVariable
	RefCTE
	RefSubquery
)

var refKindNames = map[RefKind]string{
	RefUnknown:       "unknown",
	RefBaseTable:     "table",
	RefView:          "view",
	RefSynonym:       "synonym",
	RefLocalTemp:     "temp table",
	RefGlobalTemp:    "global temp table",
	RefTableVariable: "table variable",
	RefCTE:           "cte",
	RefSubquery:      "subquery",
}

func (k RefKind) String() string {
	return refKindNames[k]
}

// MarshalText renders the kind by name.
func (k RefKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// RefRole says where in the statement a reference was found.
type RefRole int

// Reference roles.
const (
	RefFrom   RefRole = iota // FROM list item
	RefJoin                  // JOIN or APPLY target
	RefTarget                // INSERT/UPDATE/DELETE/MERGE target
	RefUsing                 // MERGE ... USING source
)

// TableRef is a table-like source named in a statement.
type TableRef struct {
	Database string
	Schema   string
	Name     string // unquoted; "#t" for temp tables, "@t" for table variables
	Alias    string
	Kind     RefKind
	Role     RefRole
	// Columns is the explicit column list for subqueries and VALUES
	// sources. Nil when the columns come from elsewhere.
	Columns []string
	// Subquery is the arena id of a derived table body, -1 when none.
	Subquery int
	Span     token.Span
}

// Qualifier returns the name a column reference uses for this source:
// the alias when present, else the bare object name.
func (r TableRef) Qualifier() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Name
}

// QualifiedName renders the reference as written, without the alias.
func (r TableRef) QualifiedName() string {
	var parts []string
	switch {
	case r.Database != "":
		parts = append(parts, r.Database, r.Schema)
	case r.Schema != "":
		parts = append(parts, r.Schema)
	}
	parts = append(parts, r.Name)
	return strings.Join(parts, ".")
}

// CTE is one common table expression of a WITH clause.
type CTE struct {
	Name    string
	Columns []string // explicit column list, nil when absent
	Body    int      // arena id of the body chunk, -1 when missing
	Span    token.Span
}

// ProjectedColumn is one item of a SELECT list.
type ProjectedColumn struct {
	// Name is the output column name, empty when an expression has no
	// alias and no derivable name.
	Name string
	// Qualifier is the source alias for q.col and q.* items.
	Qualifier string
	// Source is the referenced column when the item is a plain, possibly
	// aliased, column reference.
	Source string
	Star   bool
}

// ColumnDef is a column declared by CREATE TABLE or DECLARE ... TABLE.
type ColumnDef struct {
	Name string
	Type string
}

// Created is an object a statement brings into existence for later
// statements in the batch (or the session, for global temp tables).
type Created struct {
	Name    string
	Kind    RefKind // RefLocalTemp, RefGlobalTemp or RefTableVariable
	Columns []ColumnDef
	// FromSelect is set for SELECT ... INTO; the columns are then the
	// projection of the creating chunk.
	FromSelect bool
}

// ClauseKind identifies a clause inside a statement.
type ClauseKind int

// Clause kinds.
const (
	ClauseNone ClauseKind = iota
	ClauseWith
	ClauseSelect
	ClauseInto
	ClauseFrom
	ClauseOn
	ClauseWhere
	ClauseGroupBy
	ClauseHaving
	ClauseOrderBy
	ClauseSet
	ClauseValues
	ClauseUsing
	ClauseTarget
)

var clauseNames = map[ClauseKind]string{
	ClauseNone:    "none",
	ClauseWith:    "with",
	ClauseSelect:  "select",
	ClauseInto:    "into",
	ClauseFrom:    "from",
	ClauseOn:      "on",
	ClauseWhere:   "where",
	ClauseGroupBy: "group_by",
	ClauseHaving:  "having",
	ClauseOrderBy: "order_by",
	ClauseSet:     "set",
	ClauseValues:  "values",
	ClauseUsing:   "using",
	ClauseTarget:  "target",
}

func (c ClauseKind) String() string {
	return clauseNames[c]
}

// MarshalText renders the clause by name.
func (c ClauseKind) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Clause is the byte range of one clause, from its keyword up to the next
// clause keyword at the same depth.
type Clause struct {
	Kind ClauseKind
	Span token.Span
}

// Chunk is one statement or subquery.
type Chunk struct {
	ID     int
	Parent int // -1 for top-level statements
	Depth  int
	Role   Role
	Type   Type

	// Start and End bound the chunk in the source. For subqueries the
	// range excludes the enclosing parentheses.
	Start int
	End   int

	Tokens     []token.Token
	Tables     []TableRef
	CTEs       []CTE
	Clauses    []Clause
	Projection []ProjectedColumn
	Creates    []Created
	Drops      []string // folded names of dropped temp tables
	Children   []int
}

// Span returns the source range of the chunk.
func (c *Chunk) Span() token.Span {
	return token.Span{Start: c.Start, End: c.End}
}

// ClauseAt returns the clause containing offset, ClauseNone if none does.
func (c *Chunk) ClauseAt(offset int) ClauseKind {
	kind := ClauseNone
	for _, cl := range c.Clauses {
		if cl.Span.Start <= offset && offset <= cl.Span.End {
			kind = cl.Kind
		}
	}
	return kind
}

// Table finds a reference by alias or bare name, case-insensitively.
func (c *Chunk) Table(qualifier string) (TableRef, bool) {
	q := token.Fold(qualifier)
	for _, ref := range c.Tables {
		if token.Fold(ref.Qualifier()) == q {
			return ref, true
		}
	}
	return TableRef{}, false
}
