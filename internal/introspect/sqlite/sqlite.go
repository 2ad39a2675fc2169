// Package sqlite reads SQLite metadata from sqlite_master and the pragma
// table functions. Everything lives in the "main" schema.
//
// Import this package with a blank identifier to register the driver:
//
//	import _ "github.com/leapstack-labs/sqlsense/internal/introspect/sqlite"
package sqlite

import (
	"log/slog"

	// database/sql driver "sqlite"
	_ "modernc.org/sqlite"

	"github.com/leapstack-labs/sqlsense/internal/introspect"
)

// DefaultSchema is the schema SQLite reports for the primary database.
const DefaultSchema = "main"

const userObjects = `m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite_%'`

// Queries are the SQLite metadata statements.
var Queries = introspect.Queries{
	Database: `SELECT 'main'`,
	Objects: `
		SELECT 'main', m.name, m.type
		FROM sqlite_master m
		WHERE ` + userObjects,
	Columns: `
		SELECT 'main', m.name, p.name, p.type,
		       CASE WHEN p."notnull" = 0 THEN 'YES' ELSE 'NO' END,
		       p.cid + 1
		FROM sqlite_master m
		JOIN pragma_table_info(m.name) p
		WHERE ` + userObjects + `
		ORDER BY m.name, p.cid`,
	PrimaryKeys: `
		SELECT 'main', m.name, p.name
		FROM sqlite_master m
		JOIN pragma_table_info(m.name) p
		WHERE m.type = 'table' AND p.pk > 0`,
	ForeignKeys: `
		SELECT 'fk_' || m.name || '_' || f.id,
		       'main', m.name, f."from",
		       'main', f."table", COALESCE(f."to", '')
		FROM sqlite_master m
		JOIN pragma_foreign_key_list(m.name) f
		WHERE m.type = 'table'
		ORDER BY m.name, f.id, f.seq`,
}

// Introspector reads SQLite metadata.
type Introspector struct {
	introspect.Base
}

// New creates a SQLite introspector.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Introspector {
	return &Introspector{
		Base: introspect.NewBase("sqlite", "sqlite", DefaultSchema, Queries, logger),
	}
}

func init() {
	introspect.Register("sqlite", func(l *slog.Logger) introspect.Introspector { return New(l) })
}

var _ introspect.Introspector = (*Introspector)(nil)
