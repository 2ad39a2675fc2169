package lsp

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlsense/pkg/catalog"
	"github.com/leapstack-labs/sqlsense/pkg/scope"
	"github.com/leapstack-labs/sqlsense/pkg/token"
)

// getHover describes the name under the cursor: a qualified column, an
// alias, a catalog object or an unqualified column of a visible source.
// It returns nil when nothing matches.
func (s *Server) getHover(params HoverParams) *Hover {
	doc, ok := s.documents.Get(params.TextDocument.URI)
	if !ok {
		return nil
	}
	parts, span := doc.WordAt(params.Position)
	if len(parts) == 0 {
		return nil
	}

	line, col := doc.Cursor(params.Position)
	sc := s.engine.ScopeAt(doc.Text, line, col)
	value := describe(sc, s.engine.Catalog(), parts)
	if value == "" {
		return nil
	}
	r := doc.Range(span)
	return &Hover{
		Contents: MarkupContent{Kind: MarkupKindMarkdown, Value: value},
		Range:    &r,
	}
}

func describe(sc *scope.Resolved, cat *catalog.Snapshot, parts []string) string {
	name := parts[len(parts)-1]
	if len(parts) >= 2 {
		qualifier := parts[len(parts)-2]
		if b, ok := sc.Lookup(qualifier); ok {
			for _, c := range b.Entity.Columns(cat) {
				if token.Fold(c.Name) == token.Fold(name) {
					return describeColumn(b.Entity.Name(), c)
				}
			}
			return ""
		}
		if obj, ok := cat.Lookup(qualifier, name); ok {
			return describeObject(obj)
		}
		return ""
	}

	if b, ok := sc.Lookup(name); ok {
		if obj, ok := scope.ObjectOf(b.Entity); ok {
			return describeObject(obj)
		}
		return fmt.Sprintf("**%s** (%s)\n\n%s", b.Entity.Name(), b.Entity.Kind(), columnList(b.Entity.Columns(cat)))
	}
	if obj, ok := cat.Lookup("", name); ok {
		return describeObject(obj)
	}
	for _, b := range sc.Visible() {
		for _, c := range b.Entity.Columns(cat) {
			if token.Fold(c.Name) == token.Fold(name) {
				return describeColumn(b.Qualifier, c)
			}
		}
	}
	return ""
}

func describeColumn(owner string, c catalog.Column) string {
	var flags []string
	if c.PrimaryKey {
		flags = append(flags, "primary key")
	}
	if c.ForeignKey {
		flags = append(flags, "foreign key")
	}
	if c.Nullable {
		flags = append(flags, "nullable")
	}
	out := fmt.Sprintf("**%s.%s** `%s`", owner, c.Name, c.Type)
	if len(flags) > 0 {
		out += " (" + strings.Join(flags, ", ") + ")"
	}
	return out
}

func describeObject(obj *catalog.Object) string {
	return fmt.Sprintf("**%s** (%s)\n\n%s", obj.QualifiedName(), obj.Kind, columnList(obj.Columns))
}

func columnList(cols []catalog.Column) string {
	var b strings.Builder
	for _, c := range cols {
		fmt.Fprintf(&b, "- %s `%s`\n", c.Name, c.Type)
	}
	return b.String()
}
