package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlsense/internal/introspect"
	"github.com/leapstack-labs/sqlsense/internal/testutil"
	"github.com/leapstack-labs/sqlsense/pkg/catalog"
)

const schema = `
CREATE TABLE Customers (
	CustomerID INTEGER PRIMARY KEY,
	Name TEXT NOT NULL,
	Email TEXT
);
CREATE TABLE Orders (
	OrderID INTEGER PRIMARY KEY,
	CustomerID INTEGER NOT NULL REFERENCES Customers(CustomerID),
	PlacedAt DATETIME
);
CREATE TABLE OrderLines (
	OrderID INTEGER NOT NULL,
	LineNo INTEGER NOT NULL,
	Qty INTEGER,
	PRIMARY KEY (OrderID, LineNo),
	FOREIGN KEY (OrderID) REFERENCES Orders
);
CREATE VIEW vCustomerOrders AS
	SELECT c.CustomerID, o.OrderID FROM Customers c JOIN Orders o ON o.CustomerID = c.CustomerID;
`

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(schema)
	require.NoError(t, err)
	return db
}

func TestIntrospector_Load(t *testing.T) {
	db := openTestDB(t)

	snap, err := New(testutil.NewTestLogger(t)).Load(context.Background(), db, nil)
	require.NoError(t, err)

	assert.Equal(t, "main", snap.DefaultSchema)
	assert.Len(t, snap.Objects(), 4)

	orders, ok := snap.Lookup("", "orders")
	require.True(t, ok)
	require.Len(t, orders.Columns, 3)
	assert.Equal(t, "OrderID", orders.Columns[0].Name)
	assert.True(t, orders.Columns[0].PrimaryKey)
	assert.Equal(t, "INTEGER", orders.Columns[1].Type)
	assert.False(t, orders.Columns[1].Nullable)
	assert.True(t, orders.Columns[1].ForeignKey)
	assert.True(t, orders.Columns[2].Nullable)

	view, ok := snap.Lookup("main", "vCustomerOrders")
	require.True(t, ok)
	assert.Equal(t, catalog.KindView, view.Kind)
	assert.Len(t, view.Columns, 2)

	edges := snap.EdgesFrom("main", "OrderLines")
	require.Len(t, edges, 1)
	assert.Equal(t, "Orders", edges[0].TargetTable)
	assert.Equal(t, "OrderID", edges[0].TargetColumn, "implicit reference resolves to the primary key")

	assert.Len(t, snap.EdgesTo("main", "Customers"), 1)
}

func TestRegistered(t *testing.T) {
	assert.True(t, introspect.IsRegistered("sqlite"))
	in, err := introspect.New("sqlite", nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", in.DriverName())
}

func TestLoad_ByName(t *testing.T) {
	dsn := "file:" + t.TempDir() + "/meta.db"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	snap, err := introspect.Load(context.Background(), "sqlite", dsn, []string{"main"}, nil)
	require.NoError(t, err)
	_, ok := snap.Lookup("main", "Customers")
	assert.True(t, ok)
}
