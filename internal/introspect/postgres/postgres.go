// Package postgres reads PostgreSQL metadata through information_schema.
//
// Import this package with a blank identifier to register the driver:
//
//	import _ "github.com/leapstack-labs/sqlsense/internal/introspect/postgres"
package postgres

import (
	"log/slog"

	// database/sql driver "pgx"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/leapstack-labs/sqlsense/internal/introspect"
)

// DefaultSchema is PostgreSQL's default search_path schema.
const DefaultSchema = "public"

const systemSchemas = `('pg_catalog', 'information_schema', 'pg_toast')`

// Queries are the PostgreSQL metadata statements.
var Queries = introspect.Queries{
	Database: `SELECT current_database()`,
	Objects: `
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_schema NOT IN ` + systemSchemas,
	Columns: `
		SELECT table_schema, table_name, column_name, data_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema NOT IN ` + systemSchemas + `
		ORDER BY table_schema, table_name, ordinal_position`,
	PrimaryKeys: `
		SELECT kcu.table_schema, kcu.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_schema = tc.constraint_schema
		 AND kcu.constraint_name = tc.constraint_name
		WHERE tc.constraint_type = 'PRIMARY KEY'`,
	ForeignKeys: `
		SELECT kcu.constraint_name,
		       kcu.table_schema, kcu.table_name, kcu.column_name,
		       ref.table_schema, ref.table_name, ref.column_name
		FROM information_schema.referential_constraints rc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_schema = rc.constraint_schema
		 AND kcu.constraint_name = rc.constraint_name
		JOIN information_schema.key_column_usage ref
		  ON ref.constraint_schema = rc.unique_constraint_schema
		 AND ref.constraint_name = rc.unique_constraint_name
		 AND ref.ordinal_position = kcu.position_in_unique_constraint
		ORDER BY kcu.constraint_name, kcu.ordinal_position`,
}

// Introspector reads PostgreSQL metadata.
type Introspector struct {
	introspect.Base
}

// New creates a PostgreSQL introspector.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Introspector {
	return &Introspector{
		Base: introspect.NewBase("postgres", "pgx", DefaultSchema, Queries, logger),
	}
}

func init() {
	introspect.Register("postgres", func(l *slog.Logger) introspect.Introspector { return New(l) })
}

var _ introspect.Introspector = (*Introspector)(nil)
