// Package statement groups a batch's tokens into statement chunks and
// extracts the structure the resolver needs: table references, aliases,
// CTEs, clause ranges, projections and temp objects.
//
// There is no grammar. The chunker tracks parenthesis depth and a handful of
// keywords, which is enough to survive half-typed SQL in an editor.
package statement

import (
	"github.com/leapstack-labs/sqlsense/pkg/batch"
	"github.com/leapstack-labs/sqlsense/pkg/token"
)

// Build chunks a batch. Every top-level statement becomes a root chunk;
// subqueries and CTE bodies become child chunks.
func Build(b batch.Batch) *Arena {
	a := &Arena{}
	for _, r := range splitStatements(b.Tokens, b.End) {
		id := build(a, r.toks, -1, 0, RoleStatement, r.start, r.end)
		a.Roots = append(a.Roots, id)
	}
	return a
}

// build adds one chunk and, recursively, its children. The chunk is written
// back to the arena only once its walk completes because child builds grow
// the arena slice.
func build(a *Arena, toks []token.Token, parent, depth int, role Role, start, end int) int {
	id := len(a.Chunks)
	a.Chunks = append(a.Chunks, Chunk{ID: id})

	w := &walker{
		arena: a,
		toks:  toks,
		c: Chunk{
			ID:     id,
			Parent: parent,
			Depth:  depth,
			Role:   role,
			Start:  start,
			End:    end,
			Tokens: toks,
		},
	}
	w.run()
	a.Chunks[id] = w.c
	return id
}

// walker extracts the structure of a single chunk.
type walker struct {
	arena *Arena
	toks  []token.Token
	c     Chunk

	clause      ClauseKind
	clauseStart int
	projDone    bool
	hasTarget   bool
}

func (w *walker) run() {
	toks := w.toks
	i := 0
	if len(toks) > 0 && toks[0].IsKeyword("with") {
		w.setClause(ClauseWith, toks[0].Pos.Offset)
		i = w.parseCTEs(1)
	}
	if i < len(toks) {
		w.c.Type = typeOf(toks[i])
	} else if len(toks) > 0 {
		w.c.Type = TypeSelect
	}

	depth := 0
	for i < len(toks) {
		tok := toks[i]
		switch tok.Kind {
		case token.LParen:
			if w.subqueryAt(i + 1) {
				closing := matchParen(toks, i)
				w.child(i, closing, RoleNested)
				i = min(closing+1, len(toks))
				continue
			}
			depth++
			i++
			continue
		case token.RParen:
			if depth > 0 {
				depth--
			}
			i++
			continue
		}

		switch {
		case depth > 0:
			i++
		case tok.Kind == token.Keyword:
			i = max(w.keyword(i), i+1)
		case tok.Kind == token.Comma && w.clause == ClauseFrom:
			i = w.addRef(i+1, RefFrom)
		default:
			i++
		}
	}
	w.setClause(ClauseNone, w.c.End)
	w.dedupeTargets()
}

// setClause closes the running clause at offset and opens kind.
func (w *walker) setClause(kind ClauseKind, offset int) {
	if w.clause != ClauseNone {
		w.c.Clauses = append(w.c.Clauses, Clause{
			Kind: w.clause,
			Span: token.Span{Start: w.clauseStart, End: offset},
		})
	}
	w.clause = kind
	w.clauseStart = offset
}

// keyword handles a depth-0 keyword and returns the index to resume at.
func (w *walker) keyword(i int) int {
	toks := w.toks
	tok := toks[i]
	off := tok.Pos.Offset
	next := func(j int) token.Token {
		if j < len(toks) {
			return toks[j]
		}
		return token.Token{Kind: token.EOF}
	}

	switch tok.Norm {
	case "select":
		w.setClause(ClauseSelect, off)
		if !w.projDone {
			w.c.Projection = projection(toks, i+1)
			w.projDone = true
		}
	case "into":
		if w.clause == ClauseSelect && w.c.Role == RoleStatement {
			w.setClause(ClauseInto, off)
			if t := next(i + 1); t.Kind == token.TempTable {
				w.c.Creates = append(w.c.Creates, Created{
					Name:       t.Text,
					Kind:       tempKind(t.Text),
					FromSelect: true,
				})
				return i + 2
			}
		}
	case "from":
		w.setClause(ClauseFrom, off)
		if w.c.Type == TypeDelete && !w.hasTarget {
			return w.addRef(i+1, RefTarget)
		}
		return w.addRef(i+1, RefFrom)
	case "join", "apply":
		if w.clause != ClauseFrom {
			w.setClause(ClauseFrom, off)
		}
		return w.addRef(i+1, RefJoin)
	case "on":
		w.setClause(ClauseOn, off)
	case "where":
		w.setClause(ClauseWhere, off)
	case "having":
		w.setClause(ClauseHaving, off)
	case "group":
		w.setClause(ClauseGroupBy, off)
	case "order":
		w.setClause(ClauseOrderBy, off)
	case "set":
		w.setClause(ClauseSet, off)
	case "values":
		w.setClause(ClauseValues, off)
	case "using":
		w.setClause(ClauseUsing, off)
		return w.addRef(i+1, RefUsing)
	case "update":
		if w.c.Type == TypeUpdate && !w.hasTarget {
			w.setClause(ClauseTarget, off)
			return w.addRef(skipTop(toks, i+1), RefTarget)
		}
	case "delete":
		if w.c.Type == TypeDelete && !w.hasTarget {
			w.setClause(ClauseTarget, off)
			j := skipTop(toks, i+1)
			if next(j).IsKeyword("from") {
				return j
			}
			return w.addRef(j, RefTarget)
		}
	case "insert", "merge":
		if (w.c.Type == TypeInsert || w.c.Type == TypeMerge) && !w.hasTarget {
			w.setClause(ClauseTarget, off)
			j := skipTop(toks, i+1)
			if next(j).IsKeyword("into") {
				j++
			}
			return w.addRef(j, RefTarget)
		}
	case "create":
		return w.parseCreate(i)
	case "declare":
		return w.parseDeclare(i)
	case "drop":
		return w.parseDrop(i)
	case "with":
		// table hint: WITH (NOLOCK)
		if next(i+1).Kind == token.LParen {
			return min(matchParen(toks, i+1)+1, len(toks))
		}
	}
	return i + 1
}

// subqueryAt reports whether a SELECT or WITH begins at j and there is room
// for another nesting level.
func (w *walker) subqueryAt(j int) bool {
	if w.c.Depth+1 > MaxDepth || j >= len(w.toks) {
		return false
	}
	return w.toks[j].IsAnyKeyword("select", "with")
}

// child builds the chunk between the parenthesis at open and closing.
func (w *walker) child(open, closing int, role Role) int {
	toks := w.toks
	end := w.c.End
	if closing < len(toks) {
		end = toks[closing].Pos.Offset
	}
	inner := toks[open+1 : min(closing, len(toks))]
	id := build(w.arena, inner, w.c.ID, w.c.Depth+1, role, toks[open].End(), end)
	w.c.Children = append(w.c.Children, id)
	return id
}

func (w *walker) addRef(i int, role RefRole) int {
	ref, next, ok := w.parseRef(i, role)
	if ok {
		w.c.Tables = append(w.c.Tables, ref)
		if role == RefTarget {
			w.hasTarget = true
		}
	}
	return max(next, i)
}

// parseRef reads one table source at i: a name, temp table, table variable,
// derived table or VALUES list, followed by an optional alias and hints.
func (w *walker) parseRef(i int, role RefRole) (TableRef, int, bool) {
	toks := w.toks
	ref := TableRef{Role: role, Subquery: -1}
	if i >= len(toks) {
		return ref, i, false
	}
	tok := toks[i]
	start := tok.Pos.Offset

	switch {
	case tok.Kind == token.LParen:
		closing := matchParen(toks, i)
		switch {
		case w.subqueryAt(i + 1):
			ref.Kind = RefSubquery
			ref.Subquery = w.child(i, closing, RoleDerived)
		case i+1 < len(toks) && toks[i+1].IsKeyword("values"):
			ref.Kind = RefSubquery
		case role == RefFrom || role == RefJoin:
			// parenthesized join group: ( a JOIN b ON ... )
			return w.parseRef(i+1, role)
		default:
			return ref, i, false
		}
		i = min(closing+1, len(toks))
	case tok.Kind == token.TempTable:
		ref.Name = tok.Text
		ref.Kind = tempKind(tok.Text)
		i++
	case tok.Kind == token.Variable:
		ref.Name = tok.Text
		ref.Kind = RefTableVariable
		i++
	case tok.IsName():
		parts, next := readName(toks, i)
		i = next
		n := len(parts)
		ref.Name = parts[n-1]
		if n >= 2 {
			ref.Schema = parts[n-2]
		}
		if n >= 3 {
			ref.Database = parts[n-3]
		}
		if ref.Name == "" {
			return ref, i, false
		}
		// function arguments, legacy hints or an INSERT column list
		if i < len(toks) && toks[i].Kind == token.LParen {
			i = min(matchParen(toks, i)+1, len(toks))
		}
	default:
		return ref, i, false
	}

	i = skipHints(toks, i)
	if i < len(toks) {
		switch {
		case toks[i].IsKeyword("as") && i+1 < len(toks) && isAlias(toks[i+1]):
			ref.Alias = aliasText(toks[i+1])
			i += 2
		case toks[i].IsName():
			ref.Alias = aliasText(toks[i])
			i++
		}
	}
	if ref.Kind == RefSubquery && i < len(toks) && toks[i].Kind == token.LParen {
		closing := matchParen(toks, i)
		ref.Columns = nameList(toks[i+1 : min(closing, len(toks))])
		i = min(closing+1, len(toks))
	}
	i = skipHints(toks, i)

	ref.Span = token.Span{Start: start, End: toks[i-1].End()}
	return ref, i, true
}

// parseCTEs reads "name [(cols)] AS (body) [, ...]" starting at i.
func (w *walker) parseCTEs(i int) int {
	toks := w.toks
	for i < len(toks) && toks[i].IsName() {
		cte := CTE{Name: token.Unquote(toks[i].Text), Body: -1}
		start := toks[i].Pos.Offset
		i++
		if i < len(toks) && toks[i].Kind == token.LParen {
			closing := matchParen(toks, i)
			cte.Columns = nameList(toks[i+1 : min(closing, len(toks))])
			i = min(closing+1, len(toks))
		}
		if i >= len(toks) || !toks[i].IsKeyword("as") {
			cte.Span = token.Span{Start: start, End: toks[i-1].End()}
			w.c.CTEs = append(w.c.CTEs, cte)
			return i
		}
		i++
		if i < len(toks) && toks[i].Kind == token.LParen {
			closing := matchParen(toks, i)
			if w.c.Depth+1 <= MaxDepth {
				cte.Body = w.child(i, closing, RoleCTE)
			}
			i = min(closing+1, len(toks))
		}
		cte.Span = token.Span{Start: start, End: toks[i-1].End()}
		w.c.CTEs = append(w.c.CTEs, cte)

		if i < len(toks) && toks[i].Kind == token.Comma {
			i++
			continue
		}
		break
	}
	return i
}

// parseCreate records CREATE TABLE #t (...) column definitions.
func (w *walker) parseCreate(i int) int {
	toks := w.toks
	j := i + 1
	if j+1 >= len(toks) || !toks[j].IsKeyword("table") || toks[j+1].Kind != token.TempTable {
		return j
	}
	created := Created{Name: toks[j+1].Text, Kind: tempKind(toks[j+1].Text)}
	j += 2
	if j < len(toks) && toks[j].Kind == token.LParen {
		closing := matchParen(toks, j)
		created.Columns = columnDefs(toks[j+1 : min(closing, len(toks))])
		j = min(closing+1, len(toks))
	}
	w.c.Creates = append(w.c.Creates, created)
	return j
}

// parseDeclare records DECLARE @t [AS] TABLE (...) table variables.
func (w *walker) parseDeclare(i int) int {
	toks := w.toks
	j := i + 1
	if j >= len(toks) || toks[j].Kind != token.Variable {
		return j
	}
	name := toks[j].Text
	j++
	if j < len(toks) && toks[j].IsKeyword("as") {
		j++
	}
	if j+1 >= len(toks) || !toks[j].IsKeyword("table") || toks[j+1].Kind != token.LParen {
		return j
	}
	closing := matchParen(toks, j+1)
	w.c.Creates = append(w.c.Creates, Created{
		Name:    name,
		Kind:    RefTableVariable,
		Columns: columnDefs(toks[j+2 : min(closing, len(toks))]),
	})
	return min(closing+1, len(toks))
}

// parseDrop records DROP TABLE [IF EXISTS] #a, #b.
func (w *walker) parseDrop(i int) int {
	toks := w.toks
	j := i + 1
	if j >= len(toks) || !toks[j].IsKeyword("table") {
		return j
	}
	j++
	if j+1 < len(toks) && toks[j].IsKeyword("if") && toks[j+1].IsKeyword("exists") {
		j += 2
	}
	for j < len(toks) {
		switch {
		case toks[j].Kind == token.TempTable:
			w.c.Drops = append(w.c.Drops, toks[j].Norm)
			j++
		case toks[j].IsName():
			_, j = readName(toks, j)
		default:
			return j
		}
		if j < len(toks) && toks[j].Kind == token.Comma {
			j++
			continue
		}
		return j
	}
	return j
}

// dedupeTargets drops an UPDATE/DELETE target that only names an alias
// declared in the FROM list ("UPDATE o SET ... FROM Orders o").
func (w *walker) dedupeTargets() {
	var kept []TableRef
	for _, ref := range w.c.Tables {
		if ref.Role == RefTarget && ref.Alias == "" && ref.Schema == "" && w.aliasedElsewhere(ref) {
			continue
		}
		kept = append(kept, ref)
	}
	w.c.Tables = kept
}

func (w *walker) aliasedElsewhere(target TableRef) bool {
	name := token.Fold(target.Name)
	for _, ref := range w.c.Tables {
		if ref.Role != RefTarget && token.Fold(ref.Qualifier()) == name {
			return true
		}
	}
	return false
}

func tempKind(name string) RefKind {
	if len(name) > 1 && name[1] == '#' {
		return RefGlobalTemp
	}
	return RefLocalTemp
}

// matchParen returns the index of the parenthesis closing the one at i, or
// len(toks) when it is never closed.
func matchParen(toks []token.Token, i int) int {
	depth := 0
	for j := i; j < len(toks); j++ {
		switch toks[j].Kind {
		case token.LParen:
			depth++
		case token.RParen:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return len(toks)
}

// readName reads a dotted name of up to four parts. Empty parts are kept
// ("db..t") and a trailing dot yields an empty last part.
func readName(toks []token.Token, i int) ([]string, int) {
	var parts []string
	expectName := true
	for i < len(toks) {
		t := toks[i]
		switch {
		case expectName && t.IsName():
			parts = append(parts, token.Unquote(t.Text))
			expectName = false
		case t.Kind == token.Dot:
			if expectName {
				parts = append(parts, "")
			}
			expectName = true
		default:
			if expectName {
				parts = append(parts, "")
			}
			return parts, i
		}
		i++
	}
	if expectName {
		parts = append(parts, "")
	}
	return parts, i
}

// skipHints skips WITH (NOLOCK, ...) table hints.
func skipHints(toks []token.Token, i int) int {
	if i+1 < len(toks) && toks[i].IsKeyword("with") && toks[i+1].Kind == token.LParen {
		return min(matchParen(toks, i+1)+1, len(toks))
	}
	return i
}

// skipTop skips TOP n / TOP (n) [PERCENT].
func skipTop(toks []token.Token, i int) int {
	if i >= len(toks) || !toks[i].IsKeyword("top") {
		return i
	}
	i++
	if i < len(toks) && toks[i].Kind == token.LParen {
		i = min(matchParen(toks, i)+1, len(toks))
	} else if i < len(toks) {
		i++
	}
	if i < len(toks) && toks[i].IsKeyword("percent") {
		i++
	}
	return i
}

func isAlias(t token.Token) bool {
	return t.IsName() || t.Kind == token.String
}

func aliasText(t token.Token) string {
	if t.Kind == token.String && len(t.Text) >= 2 {
		return t.Text[1 : len(t.Text)-1]
	}
	return token.Unquote(t.Text)
}

// nameList collects the identifiers of a parenthesized column list.
func nameList(toks []token.Token) []string {
	var names []string
	for _, t := range toks {
		if t.IsName() {
			names = append(names, token.Unquote(t.Text))
		}
	}
	return names
}

var constraintWords = map[string]bool{
	"constraint": true, "primary": true, "foreign": true, "unique": true,
	"check": true, "index": true, "period": true,
}

// columnDefs parses the body of CREATE TABLE / DECLARE TABLE.
func columnDefs(toks []token.Token) []ColumnDef {
	var defs []ColumnDef
	for _, item := range splitTopLevel(toks) {
		if len(item) == 0 || !item[0].IsName() || constraintWords[item[0].Norm] {
			continue
		}
		def := ColumnDef{Name: token.Unquote(item[0].Text)}
		if len(item) > 1 && (item[1].IsName() || item[1].Kind == token.Keyword) && !item[1].IsKeyword("as") {
			def.Type = token.Unquote(item[1].Text)
			if len(item) > 2 && item[2].Kind == token.LParen {
				closing := matchParen(item, 2)
				for _, t := range item[2:min(closing+1, len(item))] {
					def.Type += t.Text
				}
			}
		}
		defs = append(defs, def)
	}
	return defs
}

// splitTopLevel splits toks at commas outside parentheses.
func splitTopLevel(toks []token.Token) [][]token.Token {
	var items [][]token.Token
	depth, start := 0, 0
	for i, t := range toks {
		switch t.Kind {
		case token.LParen:
			depth++
		case token.RParen:
			depth--
		case token.Comma:
			if depth == 0 {
				items = append(items, toks[start:i])
				start = i + 1
			}
		}
	}
	if start < len(toks) {
		items = append(items, toks[start:])
	}
	return items
}
