package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlsense/internal/introspect"
)

func TestIntrospector_Load(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT current_database()")).WillReturnRows(
		sqlmock.NewRows([]string{"current_database"}).AddRow("shop"))
	mock.ExpectQuery("FROM information_schema.tables").WillReturnRows(
		sqlmock.NewRows([]string{"table_schema", "table_name", "table_type"}).
			AddRow("public", "customers", "BASE TABLE").
			AddRow("public", "orders", "BASE TABLE").
			AddRow("sales", "regions", "BASE TABLE"))
	mock.ExpectQuery("FROM information_schema.columns").WillReturnRows(
		sqlmock.NewRows([]string{"table_schema", "table_name", "column_name", "data_type", "is_nullable", "ordinal_position"}).
			AddRow("public", "customers", "customer_id", "uuid", "NO", 1).
			AddRow("public", "orders", "order_id", "integer", "NO", 1).
			AddRow("public", "orders", "customer_id", "uuid", "NO", 2).
			AddRow("sales", "regions", "region_id", "integer", "NO", 1))
	mock.ExpectQuery("constraint_type = 'PRIMARY KEY'").WillReturnRows(
		sqlmock.NewRows([]string{"table_schema", "table_name", "column_name"}).
			AddRow("public", "customers", "customer_id").
			AddRow("public", "orders", "order_id"))
	mock.ExpectQuery("FROM information_schema.referential_constraints").WillReturnRows(
		sqlmock.NewRows([]string{"constraint_name", "s", "t", "c", "rs", "rt", "rc"}).
			AddRow("orders_customer_id_fkey", "public", "orders", "customer_id", "public", "customers", "customer_id"))

	snap, err := New(nil).Load(context.Background(), db, []string{"public"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "shop", snap.Database)
	assert.Equal(t, DefaultSchema, snap.DefaultSchema)
	assert.Len(t, snap.Objects(), 2)

	orders, ok := snap.Lookup("", "orders")
	require.True(t, ok)
	assert.True(t, orders.Columns[1].ForeignKey)
	assert.Len(t, snap.EdgesTo("public", "customers"), 1)
}

func TestRegistered(t *testing.T) {
	in, err := introspect.New("postgres", nil)
	require.NoError(t, err)
	assert.Equal(t, "pgx", in.DriverName())
	assert.Equal(t, "postgres", in.Name())
}
