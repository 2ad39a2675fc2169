package statement

import "github.com/leapstack-labs/sqlsense/pkg/token"

// projectionEnd lists the keywords that close a SELECT list.
var projectionEnd = map[string]bool{
	"into": true, "from": true, "where": true, "group": true, "having": true,
	"order": true, "union": true, "except": true, "intersect": true,
	"option": true, "for": true,
}

// projection reads the SELECT list starting right after the SELECT keyword.
func projection(toks []token.Token, i int) []ProjectedColumn {
	i = skipSelectModifiers(toks, i)

	var items [][]token.Token
	depth, start := 0, i
	end := len(toks)
scan:
	for k := i; k < len(toks); k++ {
		t := toks[k]
		switch {
		case t.Kind == token.LParen:
			depth++
		case t.Kind == token.RParen:
			depth--
			if depth < 0 {
				end = k
				break scan
			}
		case depth > 0:
		case t.Kind == token.Comma:
			items = append(items, toks[start:k])
			start = k + 1
		case t.Kind == token.Keyword && projectionEnd[t.Norm]:
			end = k
			break scan
		}
	}
	if start < end {
		items = append(items, toks[start:end])
	}

	cols := make([]ProjectedColumn, 0, len(items))
	for _, item := range items {
		if len(item) == 0 {
			continue
		}
		if item[0].Kind == token.Variable {
			// SELECT @v = expr assigns, it does not project
			continue
		}
		cols = append(cols, nameItem(item))
	}
	return cols
}

func skipSelectModifiers(toks []token.Token, i int) int {
	if i < len(toks) && toks[i].IsAnyKeyword("distinct", "all") {
		i++
	}
	if i < len(toks) && toks[i].IsKeyword("top") {
		i = skipTop(toks, i)
		if i+1 < len(toks) && toks[i].IsKeyword("with") && toks[i+1].Norm == "ties" {
			i += 2
		}
	}
	return i
}

// nameItem derives the output name of one SELECT list item.
func nameItem(item []token.Token) ProjectedColumn {
	n := len(item)
	last := item[n-1]

	if last.Kind == token.Operator && last.Text == "*" {
		switch {
		case n == 1:
			return ProjectedColumn{Star: true}
		case n >= 3 && item[n-2].Kind == token.Dot && item[n-3].IsName():
			return ProjectedColumn{Star: true, Qualifier: token.Unquote(item[n-3].Text)}
		}
		return ProjectedColumn{}
	}

	// alias = expr
	if n >= 3 && item[0].IsName() && item[1].Kind == token.Operator && item[1].Text == "=" {
		return withSource(ProjectedColumn{Name: token.Unquote(item[0].Text)}, item[2:])
	}
	// expr AS alias
	if n >= 3 && item[n-2].IsKeyword("as") && isAlias(last) {
		return withSource(ProjectedColumn{Name: aliasText(last)}, item[:n-2])
	}
	if isDottedName(item) {
		return withSource(ProjectedColumn{Name: token.Unquote(last.Text)}, item)
	}
	// expr alias
	if n >= 2 && last.IsName() && item[n-2].Kind != token.Dot && item[n-2].Kind != token.Operator {
		return withSource(ProjectedColumn{Name: token.Unquote(last.Text)}, item[:n-1])
	}
	return ProjectedColumn{}
}

// withSource fills Source and Qualifier when expr is a plain column reference.
func withSource(col ProjectedColumn, expr []token.Token) ProjectedColumn {
	if !isDottedName(expr) {
		return col
	}
	n := len(expr)
	col.Source = token.Unquote(expr[n-1].Text)
	if n >= 3 {
		col.Qualifier = token.Unquote(expr[n-3].Text)
	}
	return col
}

// isDottedName reports whether item is exactly a.b.c.
func isDottedName(item []token.Token) bool {
	if len(item)%2 == 0 {
		return false
	}
	for i, t := range item {
		if i%2 == 0 && !t.IsName() {
			return false
		}
		if i%2 == 1 && t.Kind != token.Dot {
			return false
		}
	}
	return true
}
