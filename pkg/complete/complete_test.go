package complete_test

import (
	"strings"
	"testing"

	"github.com/leapstack-labs/sqlsense/internal/testutil"
	"github.com/leapstack-labs/sqlsense/pkg/batch"
	"github.com/leapstack-labs/sqlsense/pkg/catalog"
	"github.com/leapstack-labs/sqlsense/pkg/complete"
	"github.com/leapstack-labs/sqlsense/pkg/lexer"
	"github.com/leapstack-labs/sqlsense/pkg/scope"
	"github.com/leapstack-labs/sqlsense/pkg/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// split removes the "|" cursor marker and returns the text and offset.
func split(t *testing.T, marked string) (string, int) {
	t.Helper()
	off := strings.Index(marked, "|")
	require.GreaterOrEqual(t, off, 0)
	return marked[:off] + marked[off+1:], off
}

func detect(t *testing.T, marked string) complete.Cursor {
	t.Helper()
	sql, off := split(t, marked)
	return complete.DetectCursor(lexer.Tokenize(sql), off)
}

func candidates(t *testing.T, marked string, cat *catalog.Snapshot) []complete.Candidate {
	t.Helper()
	sql, off := split(t, marked)
	toks := lexer.Tokenize(sql)
	pos := scope.Walk(batch.Split(toks), off, cat)
	return complete.Resolve(pos.Scope(cat), complete.DetectCursor(toks, off), cat)
}

func labels(cands []complete.Candidate) []string {
	var out []string
	for _, c := range cands {
		out = append(out, c.Label)
	}
	return out
}

func TestDetectCursor(t *testing.T) {
	tests := []struct {
		name      string
		sql       string
		context   complete.Context
		prefix    string
		qualifier []string
		clause    statement.ClauseKind
	}{
		{"after from", "SELECT * FROM |", complete.ContextTable, "", nil, statement.ClauseFrom},
		{"partial table", "SELECT * FROM Ord|", complete.ContextTable, "Ord", nil, statement.ClauseFrom},
		{"schema qualified", "SELECT * FROM sales.|", complete.ContextTable, "", []string{"sales"}, statement.ClauseFrom},
		{"database qualified", "SELECT * FROM Shop.dbo.Cu|", complete.ContextTable, "Cu", []string{"Shop", "dbo"}, statement.ClauseFrom},
		{"join", "SELECT * FROM Orders o JOIN |", complete.ContextTable, "", nil, statement.ClauseFrom},
		{"from list comma", "SELECT * FROM Orders o, |", complete.ContextTable, "", nil, statement.ClauseFrom},
		{"alias position", "SELECT * FROM Orders |", complete.ContextNone, "", nil, statement.ClauseFrom},
		{"insert into", "INSERT INTO |", complete.ContextTable, "", nil, statement.ClauseInto},
		{"update", "UPDATE |", complete.ContextTable, "", nil, statement.ClauseTarget},
		{"apply", "SELECT * FROM Orders o CROSS APPLY |", complete.ContextTable, "", nil, statement.ClauseFrom},
		{"qualified column", "SELECT o.| FROM Orders o", complete.ContextColumn, "", []string{"o"}, statement.ClauseSelect},
		{"qualified partial", "SELECT * FROM Orders o WHERE o.Ord|", complete.ContextColumn, "Ord", []string{"o"}, statement.ClauseWhere},
		{"on clause", "SELECT * FROM Orders o JOIN Customers c ON c.CustomerID = o.|", complete.ContextColumn, "", []string{"o"}, statement.ClauseOn},
		{"bare select", "SELECT |", complete.ContextBareColumn, "", nil, statement.ClauseSelect},
		{"bare where and", "SELECT * FROM Orders WHERE Total > 1 AND |", complete.ContextBareColumn, "", nil, statement.ClauseWhere},
		{"function argument", "SELECT COUNT(|", complete.ContextBareColumn, "", nil, statement.ClauseSelect},
		{"group by", "SELECT 1 FROM Orders GROUP BY |", complete.ContextBareColumn, "", nil, statement.ClauseGroupBy},
		{"after as", "SELECT Total AS |", complete.ContextNone, "", nil, statement.ClauseNone},
		{"statement start", "SEL|", complete.ContextNone, "SEL", nil, statement.ClauseNone},
		{"in string", "SELECT 'FROM |'", complete.ContextNone, "", nil, statement.ClauseNone},
		{"in line comment", "SELECT 1 -- FROM |", complete.ContextNone, "", nil, statement.ClauseNone},
		{"after semicolon", "SELECT 1; |", complete.ContextNone, "", nil, statement.ClauseNone},
		{"bracketed partial", "SELECT * FROM [Order|", complete.ContextTable, "Order", nil, statement.ClauseFrom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := detect(t, tt.sql)
			assert.Equal(t, tt.context, cur.Context)
			assert.Equal(t, tt.prefix, cur.Prefix)
			assert.Equal(t, tt.qualifier, cur.Qualifier)
			if tt.context != complete.ContextNone {
				assert.Equal(t, tt.clause, cur.Clause)
			}
		})
	}
}

func TestReplaceSpan(t *testing.T) {
	sql, off := split(t, "SELECT * FROM Cus|tomers")
	cur := complete.DetectCursor(lexer.Tokenize(sql), off)
	assert.Equal(t, "Cus", cur.Prefix)
	assert.Equal(t, 14, cur.Replace.Start)
	assert.Equal(t, 23, cur.Replace.End)
}

func TestTableCandidates(t *testing.T) {
	cat := testutil.SampleCatalog()

	got := candidates(t, "SELECT * FROM Ord|", cat)
	assert.Equal(t, []string{"OrderLines", "Orders"}, labels(got))
	for i, c := range got {
		assert.Equal(t, complete.KindTable, c.Kind)
		assert.Equal(t, i, c.SortPriority)
	}

	got = candidates(t, "SELECT * FROM sales.|", cat)
	assert.Equal(t, []string{"Regions"}, labels(got))
	assert.Equal(t, "Regions", got[0].InsertText)

	got = candidates(t, "SELECT * FROM Reg|", cat)
	require.Len(t, got, 1)
	assert.Equal(t, "sales.Regions", got[0].InsertText)

	assert.Empty(t, candidates(t, "SELECT * FROM Other.dbo.|", cat))
}

func TestTableCandidatesIncludeTempsAndCTEs(t *testing.T) {
	cat := testutil.SampleCatalog()
	sql := "CREATE TABLE #work (ID int);\nWITH recent AS (SELECT 1 AS x) SELECT * FROM |"

	got := labels(candidates(t, sql, cat))
	assert.Contains(t, got, "#work")
	assert.Contains(t, got, "recent")
	assert.Contains(t, got, "Customers")
}

func TestFuzzyTableCandidatesRankAfterPrefix(t *testing.T) {
	cat := testutil.SampleCatalog()

	got := labels(candidates(t, "SELECT * FROM Custmers|", cat))
	require.NotEmpty(t, got)
	assert.Equal(t, "Customers", got[0])

	got = labels(candidates(t, "SELECT * FROM Product|", cat))
	assert.Equal(t, "Products", got[0])
}

func TestJoinedTablesAreSkipped(t *testing.T) {
	cat := testutil.SampleCatalog()
	sql, off := split(t, "SELECT * FROM Orders o JOIN |")
	toks := lexer.Tokenize(sql)
	pos := scope.Walk(batch.Split(toks), off, cat)

	cur := complete.DetectCursor(toks, off)
	cur.Joined = map[string]bool{catalog.Key("dbo", "Orders"): true}
	got := labels(complete.Resolve(pos.Scope(cat), cur, cat))
	assert.NotContains(t, got, "Orders")
	assert.Contains(t, got, "OrderLines")
	assert.Contains(t, got, "Customers")
}

func TestKeyPrefixAloneDoesNotFuzzyMatch(t *testing.T) {
	cat, err := catalog.Parse([]byte(`
default_schema: dbo
objects:
  - name: FK_Audit
    columns: [{name: ID, type: int}]
  - name: Pricing
    columns: [{name: ID, type: int}]
`))
	require.NoError(t, err)

	assert.Empty(t, candidates(t, "SELECT * FROM PK|", cat))
	assert.Equal(t, []string{"FK_Audit"}, labels(candidates(t, "SELECT * FROM FK|", cat)))
}

func TestColumnCandidates(t *testing.T) {
	cat := testutil.SampleCatalog()

	got := candidates(t, "SELECT o.| FROM Orders o", cat)
	assert.Equal(t, []string{"OrderID", "CustomerID", "EmployeeID", "OrderDate", "Total"}, labels(got))
	assert.Equal(t, "int PK", got[0].Detail)
	assert.Equal(t, "int FK", got[1].Detail)

	got = candidates(t, "SELECT O.ord| FROM Orders o", cat)
	assert.Equal(t, []string{"OrderID", "OrderDate"}, labels(got))

	assert.Empty(t, candidates(t, "SELECT x.| FROM Orders o", cat))
}

func TestColumnCandidatesFromDerivedTable(t *testing.T) {
	cat := testutil.SampleCatalog()
	got := candidates(t, "SELECT d.| FROM (SELECT CustomerID AS ID, Name FROM Customers) d", cat)
	assert.Equal(t, []string{"ID", "Name"}, labels(got))
}

func TestBareColumnCandidates(t *testing.T) {
	cat := testutil.SampleCatalog()

	got := labels(candidates(t, "SELECT Na| FROM Categories", cat))
	assert.Equal(t, []string{"Name"}, got)

	got = labels(candidates(t, "SELECT * FROM Orders o JOIN Customers c ON 1 = 1 WHERE Cust|", cat))
	assert.Contains(t, got, "o.CustomerID")
	assert.Contains(t, got, "c.CustomerID")
}

func TestOnClauseBoostsMatchingColumns(t *testing.T) {
	cat := testutil.SampleCatalog()
	got := candidates(t, "SELECT * FROM Orders o JOIN Customers c ON o.CustomerID = c.|", cat)
	require.NotEmpty(t, got)
	assert.Equal(t, "CustomerID", got[0].Label)
}

func TestEmptyCatalogYieldsNothing(t *testing.T) {
	assert.Empty(t, candidates(t, "SELECT * FROM |", catalog.Empty()))
	assert.Empty(t, candidates(t, "SELECT * FROM |", nil))
}

func TestLimit(t *testing.T) {
	cat := testutil.SampleCatalog()
	sql, off := split(t, "SELECT * FROM |")
	toks := lexer.Tokenize(sql)
	pos := scope.Walk(batch.Split(toks), off, cat)

	opts := complete.DefaultOptions()
	opts.Limit = 2
	got := opts.Resolve(pos.Scope(cat), complete.DetectCursor(toks, off), cat)
	assert.Len(t, got, 2)
}

func TestQuotedInsertText(t *testing.T) {
	cat := catalog.New("", "", []catalog.Object{
		{Name: "Order Details", Columns: []catalog.Column{{Name: "select"}}},
	}, nil)
	got := candidates(t, "SELECT * FROM Ord|", cat)
	require.Len(t, got, 1)
	assert.Equal(t, "[Order Details]", got[0].InsertText)

	got = candidates(t, "SELECT d.| FROM [Order Details] d", cat)
	require.Len(t, got, 1)
	assert.Equal(t, "[select]", got[0].InsertText)
}
