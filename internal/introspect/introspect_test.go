package introspect

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlsense/internal/testutil"
	"github.com/leapstack-labs/sqlsense/pkg/catalog"
)

var testQueries = Queries{
	Database:    "SELECT db",
	Objects:     "SELECT objects",
	Columns:     "SELECT columns",
	PrimaryKeys: "SELECT pks",
	ForeignKeys: "SELECT fks",
}

// expectShop queues the metadata of a small two-schema database. The
// queries run concurrently, so expectations are unordered.
func expectShop(mock sqlmock.Sqlmock) {
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery("SELECT db").WillReturnRows(
		sqlmock.NewRows([]string{"name"}).AddRow("Shop"))
	mock.ExpectQuery("SELECT objects").WillReturnRows(
		sqlmock.NewRows([]string{"schema", "name", "kind"}).
			AddRow("dbo", "Customers", "BASE TABLE").
			AddRow("dbo", "Orders", "BASE TABLE").
			AddRow("dbo", "vOrders", "VIEW").
			AddRow("audit", "Log", "FOREIGN"))
	mock.ExpectQuery("SELECT columns").WillReturnRows(
		sqlmock.NewRows([]string{"schema", "table", "column", "type", "nullable", "ordinal"}).
			AddRow("dbo", "Customers", "CustomerID", "int", "NO", 1).
			AddRow("dbo", "Customers", "Name", "nvarchar", "YES", 2).
			AddRow("dbo", "Orders", "OrderID", "int", "NO", 1).
			AddRow("dbo", "Orders", "CustomerID", "int", "NO", 2).
			AddRow("dbo", "vOrders", "OrderID", "int", "YES", 1).
			AddRow("audit", "Log", "LogID", "bigint", "NO", 1).
			AddRow("dbo", "Dropped", "X", "int", "NO", 1))
	mock.ExpectQuery("SELECT pks").WillReturnRows(
		sqlmock.NewRows([]string{"schema", "table", "column"}).
			AddRow("dbo", "Customers", "CustomerID").
			AddRow("dbo", "Orders", "OrderID"))
	mock.ExpectQuery("SELECT fks").WillReturnRows(
		sqlmock.NewRows([]string{"constraint", "ss", "st", "sc", "ts", "tt", "tc"}).
			AddRow("FK_Orders_Customers", "dbo", "Orders", "CustomerID", "dbo", "Customers", "").
			AddRow("FK_Log_Orders", "audit", "Log", "LogID", "dbo", "Orders", "OrderID"))
}

func TestBase_Load(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	expectShop(mock)

	base := NewBase("fake", "fake", "dbo", testQueries, testutil.NewTestLogger(t))
	snap, err := base.Load(context.Background(), db, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "Shop", snap.Database)
	assert.Len(t, snap.Objects(), 4)

	customers, ok := snap.Lookup("dbo", "customers")
	require.True(t, ok)
	require.Len(t, customers.Columns, 2)
	assert.True(t, customers.Columns[0].PrimaryKey)
	assert.False(t, customers.Columns[0].Nullable)
	assert.True(t, customers.Columns[1].Nullable)

	view, ok := snap.Lookup("dbo", "vOrders")
	require.True(t, ok)
	assert.Equal(t, catalog.KindView, view.Kind)

	log, ok := snap.Lookup("audit", "Log")
	require.True(t, ok)
	assert.Equal(t, catalog.KindTable, log.Kind, "unknown kinds load as tables")

	orders, ok := snap.Lookup("dbo", "Orders")
	require.True(t, ok)
	fk, ok := orders.Column("CustomerID")
	require.True(t, ok)
	assert.True(t, fk.ForeignKey)

	edges := snap.EdgesFrom("dbo", "Orders")
	require.Len(t, edges, 1)
	assert.Equal(t, "CustomerID", edges[0].TargetColumn, "missing target column falls back to the single-column key")
}

func TestBase_Load_SchemaFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	expectShop(mock)

	base := NewBase("fake", "fake", "dbo", testQueries, nil)
	snap, err := base.Load(context.Background(), db, []string{"DBO"})
	require.NoError(t, err)

	assert.Len(t, snap.Objects(), 3)
	_, ok := snap.Lookup("audit", "Log")
	assert.False(t, ok)
	assert.Empty(t, snap.EdgesTo("dbo", "Orders"), "edges leaving the filter are dropped")
}

func TestBase_Load_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.MatchExpectationsInOrder(false)
	boom := errors.New("boom")
	mock.ExpectQuery("SELECT db").WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("x"))
	mock.ExpectQuery("SELECT objects").WillReturnError(boom)
	mock.ExpectQuery("SELECT columns").WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e", "f"}))
	mock.ExpectQuery("SELECT pks").WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c"}))
	mock.ExpectQuery("SELECT fks").WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e", "f", "g"}))

	base := NewBase("fake", "fake", "dbo", testQueries, nil)
	_, err = base.Load(context.Background(), db, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to query objects")
}

func TestBase_Load_NoConnection(t *testing.T) {
	base := NewBase("fake", "fake", "dbo", testQueries, nil)
	_, err := base.Load(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNoConnection)
}

func TestRegistry(t *testing.T) {
	Register("test_driver_internal", func(l *slog.Logger) Introspector {
		b := NewBase("test_driver_internal", "none", "dbo", testQueries, l)
		return &b
	})

	assert.True(t, IsRegistered("test_driver_internal"))
	assert.Contains(t, ListDrivers(), "test_driver_internal")

	in, err := New("test_driver_internal", nil)
	require.NoError(t, err)
	assert.Equal(t, "none", in.DriverName())

	_, err = New("", nil)
	require.Error(t, err)
	assert.Equal(t, "introspection driver not specified", err.Error())

	_, err = New("oracle", nil)
	var unknown *UnknownDriverError
	require.ErrorAs(t, err, &unknown)
	assert.Contains(t, unknown.Available, "test_driver_internal")
	assert.Contains(t, err.Error(), "sqlsense.yaml")
}
