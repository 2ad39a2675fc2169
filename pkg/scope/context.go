package scope

import (
	"sort"

	"github.com/leapstack-labs/sqlsense/pkg/catalog"
	"github.com/leapstack-labs/sqlsense/pkg/statement"
	"github.com/leapstack-labs/sqlsense/pkg/token"
)

// TempObject is a temp table or table variable created by a statement.
type TempObject struct {
	Name    string
	Kind    statement.RefKind
	Columns []catalog.Column
}

// Session holds global (##) temp tables. They outlive batch separators and
// stay visible for the rest of the document.
type Session struct {
	globals map[string]TempObject
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{globals: make(map[string]TempObject)}
}

// Context tracks the temp objects of one batch. A new Context is created
// at every batch separator; the Session is shared across them.
type Context struct {
	session *Session
	locals  map[string]TempObject
}

// NewContext starts a batch. A nil session gets a private one.
func NewContext(session *Session) *Context {
	if session == nil {
		session = NewSession()
	}
	return &Context{session: session, locals: make(map[string]TempObject)}
}

// Session returns the session the context writes global temps to.
func (c *Context) Session() *Session {
	return c.session
}

// Declare makes obj visible to later statements.
func (c *Context) Declare(obj TempObject) {
	key := token.Fold(obj.Name)
	if obj.Kind == statement.RefGlobalTemp {
		c.session.globals[key] = obj
		return
	}
	c.locals[key] = obj
}

// Drop removes a temp object by name.
func (c *Context) Drop(name string) {
	key := token.Fold(name)
	delete(c.locals, key)
	delete(c.session.globals, key)
}

// Lookup finds a temp object by name ("#t", "##t" or "@t").
func (c *Context) Lookup(name string) (TempObject, bool) {
	key := token.Fold(name)
	if obj, ok := c.locals[key]; ok {
		return obj, true
	}
	obj, ok := c.session.globals[key]
	return obj, ok
}

// Objects returns every visible temp object sorted by name.
func (c *Context) Objects() []TempObject {
	out := make([]TempObject, 0, len(c.locals)+len(c.session.globals))
	for _, obj := range c.locals {
		out = append(out, obj)
	}
	for _, obj := range c.session.globals {
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool { return token.Fold(out[i].Name) < token.Fold(out[j].Name) })
	return out
}

// Apply records the temp objects that top-level statement id creates or
// drops. Columns of SELECT ... INTO targets come from the statement's
// projection as resolved at this point.
func (c *Context) Apply(a *statement.Arena, id int, cat *catalog.Snapshot) {
	chunk := a.Get(id)
	if chunk == nil {
		return
	}
	for _, created := range chunk.Creates {
		obj := TempObject{Name: created.Name, Kind: created.Kind}
		if created.FromSelect {
			obj.Columns = newResolver(a, c, cat).chunkColumns(id, nil)
		} else {
			for i, def := range created.Columns {
				obj.Columns = append(obj.Columns, catalog.Column{
					Name:    def.Name,
					Type:    def.Type,
					Ordinal: i + 1,
				})
			}
		}
		c.Declare(obj)
	}
	for _, name := range chunk.Drops {
		c.Drop(name)
	}
}
