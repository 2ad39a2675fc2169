// Package mysql reads MySQL metadata through information_schema for the
// connected database.
//
// Import this package with a blank identifier to register the driver:
//
//	import _ "github.com/leapstack-labs/sqlsense/internal/introspect/mysql"
package mysql

import (
	"log/slog"

	// database/sql driver "mysql"
	_ "github.com/go-sql-driver/mysql"

	"github.com/leapstack-labs/sqlsense/internal/introspect"
)

// Queries are the MySQL metadata statements. MySQL has no schemas inside a
// database, so the database name doubles as the schema.
var Queries = introspect.Queries{
	Database: `SELECT DATABASE()`,
	Objects: `
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_schema = DATABASE()`,
	Columns: `
		SELECT table_schema, table_name, column_name, data_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		ORDER BY table_name, ordinal_position`,
	PrimaryKeys: `
		SELECT table_schema, table_name, column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND constraint_name = 'PRIMARY'`,
	ForeignKeys: `
		SELECT constraint_name,
		       table_schema, table_name, column_name,
		       referenced_table_schema, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND referenced_table_name IS NOT NULL
		ORDER BY constraint_name, ordinal_position`,
}

// Introspector reads MySQL metadata.
type Introspector struct {
	introspect.Base
}

// New creates a MySQL introspector.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Introspector {
	return &Introspector{
		Base: introspect.NewBase("mysql", "mysql", "", Queries, logger),
	}
}

func init() {
	introspect.Register("mysql", func(l *slog.Logger) introspect.Introspector { return New(l) })
}

var _ introspect.Introspector = (*Introspector)(nil)
