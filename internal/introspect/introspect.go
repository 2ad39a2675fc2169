// Package introspect builds catalog snapshots from a live database's
// metadata views. Drivers register themselves from init:
//
//	import _ "github.com/leapstack-labs/sqlsense/internal/introspect/postgres"
package introspect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/sqlsense/pkg/catalog"
	"github.com/leapstack-labs/sqlsense/pkg/token"
)

// ErrNoConnection is returned when Load is called without a database.
var ErrNoConnection = errors.New("database connection not established")

// Introspector reads a database's objects, columns and keys.
type Introspector interface {
	// Name is the registry name, also used as catalog.source.
	Name() string
	// DriverName is the database/sql driver to open.
	DriverName() string
	// Load reads metadata. An empty schemas list means every user schema.
	Load(ctx context.Context, db *sql.DB, schemas []string) (*catalog.Snapshot, error)
}

// Queries are the metadata statements a driver runs. Each returns every
// row of its kind; schema filtering happens after the fact.
type Queries struct {
	// Database returns one row with the database name.
	Database string
	// Objects returns schema, name, kind.
	Objects string
	// Columns returns schema, table, column, type, is_nullable (YES/NO), ordinal.
	Columns string
	// PrimaryKeys returns schema, table, column.
	PrimaryKeys string
	// ForeignKeys returns constraint, source schema, table, column and
	// target schema, table, column, ordered by constraint and position.
	ForeignKeys string
}

// Base implements Load over a set of Queries. Embed it in concrete
// drivers.
// An empty DefaultSchema means the database name, as in MySQL.
type Base struct {
	name          string
	driver        string
	DefaultSchema string
	Queries       Queries
	Logger        *slog.Logger
}

// NewBase creates a Base. If logger is nil, a discard logger is used.
func NewBase(name, driverName, defaultSchema string, q Queries, logger *slog.Logger) Base {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return Base{
		name:          name,
		driver:        driverName,
		DefaultSchema: defaultSchema,
		Queries:       q,
		Logger:        logger,
	}
}

// Name returns the registry name.
func (b *Base) Name() string { return b.name }

// DriverName returns the database/sql driver name.
func (b *Base) DriverName() string { return b.driver }

type objectRow struct {
	schema, name, kind string
}

type columnRow struct {
	schema, table string
	column        catalog.Column
}

type keyRow struct {
	schema, table, column string
}

// Load runs the metadata queries concurrently and assembles a snapshot.
func (b *Base) Load(ctx context.Context, db *sql.DB, schemas []string) (*catalog.Snapshot, error) {
	if db == nil {
		return nil, ErrNoConnection
	}

	var (
		database string
		objects  []objectRow
		columns  []columnRow
		keys     []keyRow
		edges    []catalog.FKEdge
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := db.QueryRowContext(gctx, b.Queries.Database).Scan(&database); err != nil {
			return fmt.Errorf("failed to query database name: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return scanRows(gctx, db, "objects", b.Queries.Objects, func(rows *sql.Rows) error {
			var r objectRow
			if err := rows.Scan(&r.schema, &r.name, &r.kind); err != nil {
				return err
			}
			objects = append(objects, r)
			return nil
		})
	})
	g.Go(func() error {
		return scanRows(gctx, db, "columns", b.Queries.Columns, func(rows *sql.Rows) error {
			var r columnRow
			var nullable string
			if err := rows.Scan(&r.schema, &r.table, &r.column.Name, &r.column.Type, &nullable, &r.column.Ordinal); err != nil {
				return err
			}
			r.column.Nullable = token.Fold(nullable) == "yes"
			columns = append(columns, r)
			return nil
		})
	})
	g.Go(func() error {
		return scanRows(gctx, db, "primary keys", b.Queries.PrimaryKeys, func(rows *sql.Rows) error {
			var r keyRow
			if err := rows.Scan(&r.schema, &r.table, &r.column); err != nil {
				return err
			}
			keys = append(keys, r)
			return nil
		})
	})
	g.Go(func() error {
		return scanRows(gctx, db, "foreign keys", b.Queries.ForeignKeys, func(rows *sql.Rows) error {
			var e catalog.FKEdge
			if err := rows.Scan(&e.ConstraintName, &e.SourceSchema, &e.SourceTable, &e.SourceColumn,
				&e.TargetSchema, &e.TargetTable, &e.TargetColumn); err != nil {
				return err
			}
			edges = append(edges, e)
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := b.assemble(database, schemas, objects, columns, keys, edges)
	b.Logger.Debug("introspected catalog",
		slog.String("driver", b.name),
		slog.String("database", database),
		slog.Int("objects", len(snap.Objects())),
		slog.Int("edges", len(snap.Edges())))
	return snap, nil
}

func scanRows(ctx context.Context, db *sql.DB, what, query string, scan func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", what, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("failed to scan %s: %w", what, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating %s: %w", what, err)
	}
	return nil
}

func (b *Base) assemble(database string, schemas []string, objects []objectRow, columns []columnRow, keys []keyRow, edges []catalog.FKEdge) *catalog.Snapshot {
	want := make(map[string]bool, len(schemas))
	for _, s := range schemas {
		want[token.Fold(s)] = true
	}
	keep := func(schema string) bool {
		return len(want) == 0 || want[token.Fold(schema)]
	}

	pk := make(map[string]bool, len(keys))
	for _, k := range keys {
		pk[catalog.Key(k.schema, k.table)+"."+token.Fold(k.column)] = true
	}

	index := make(map[string]int, len(objects))
	out := make([]catalog.Object, 0, len(objects))
	for _, r := range objects {
		if !keep(r.schema) {
			continue
		}
		kind, err := catalog.ParseKind(r.kind)
		if err != nil {
			b.Logger.Debug("treating unknown object kind as table",
				slog.String("object", r.schema+"."+r.name), slog.String("kind", r.kind))
			kind = catalog.KindTable
		}
		index[catalog.Key(r.schema, r.name)] = len(out)
		out = append(out, catalog.Object{Schema: r.schema, Name: r.name, Kind: kind})
	}

	for _, r := range columns {
		key := catalog.Key(r.schema, r.table)
		i, ok := index[key]
		if !ok {
			continue
		}
		c := r.column
		c.PrimaryKey = pk[key+"."+token.Fold(c.Name)]
		out[i].Columns = append(out[i].Columns, c)
	}

	kept := make([]catalog.FKEdge, 0, len(edges))
	for _, e := range edges {
		if !keep(e.SourceSchema) || !keep(e.TargetSchema) {
			continue
		}
		if e.TargetColumn == "" {
			e.TargetColumn = soleKey(out, index, e, pk)
		}
		if e.TargetColumn == "" {
			continue
		}
		kept = append(kept, e)
	}

	def := b.DefaultSchema
	if def == "" {
		def = database
	}
	return catalog.New(database, def, out, kept)
}

// soleKey returns the target's primary key column when the edge names no
// target column and the key is a single column.
func soleKey(objects []catalog.Object, index map[string]int, e catalog.FKEdge, pk map[string]bool) string {
	i, ok := index[e.TargetKey()]
	if !ok {
		return ""
	}
	var name string
	for _, c := range objects[i].Columns {
		if pk[e.TargetKey()+"."+token.Fold(c.Name)] {
			if name != "" {
				return ""
			}
			name = c.Name
		}
	}
	return name
}

// Open opens and pings a database for the named driver.
func Open(ctx context.Context, in Introspector, dsn string) (*sql.DB, error) {
	db, err := sql.Open(in.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", in.Name(), err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", in.Name(), err)
	}
	return db, nil
}

// Load connects with the named driver, reads the catalog and disconnects.
func Load(ctx context.Context, name, dsn string, schemas []string, logger *slog.Logger) (*catalog.Snapshot, error) {
	in, err := New(name, logger)
	if err != nil {
		return nil, err
	}
	db, err := Open(ctx, in, dsn)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	return in.Load(ctx, db, schemas)
}
