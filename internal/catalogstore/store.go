// Package catalogstore keeps named catalog snapshots in a local SQLite
// file so editors and the CLI can start without reaching the live
// database.
package catalogstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	// database/sql driver "sqlite"
	_ "modernc.org/sqlite"

	"github.com/leapstack-labs/sqlsense/pkg/catalog"
)

// ErrNotOpen is returned by every operation on a closed store.
var ErrNotOpen = errors.New("catalog store not opened")

// SnapshotInfo describes a saved snapshot without loading it.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Database  string    `json:"database"`
	Source    string    `json:"source"`
	Objects   int       `json:"objects"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a SQLite-backed snapshot store.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the store at path and runs pending
// migrations. Use ":memory:" for an in-memory store.
// If logger is nil, a discard logger is used.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one connection: an in-memory database exists per connection, and
	// a single writer avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("catalog store opened", slog.String("path", path))
	return s, nil
}

// Path returns the file the store was opened with.
func (s *Store) Path() string { return s.path }

// Close closes the database connection. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// SaveSnapshot stores snap under name, replacing any snapshot with the
// same name in one transaction. It returns the new snapshot id.
func (s *Store) SaveSnapshot(ctx context.Context, name, source string, snap *catalog.Snapshot) (string, error) {
	if s.db == nil {
		return "", ErrNotOpen
	}
	if name == "" {
		return "", fmt.Errorf("snapshot name is required")
	}
	if snap == nil {
		snap = catalog.Empty()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteByName(ctx, tx, name); err != nil {
		return "", err
	}

	id := uuid.New().String()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, name, database_name, default_schema, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, snap.Database, snap.DefaultSchema, source, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return "", fmt.Errorf("failed to insert snapshot: %w", err)
	}

	objStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO objects (snapshot_id, seq, schema_name, name, kind) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare object insert: %w", err)
	}
	defer func() { _ = objStmt.Close() }()

	colStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO columns (snapshot_id, object_seq, ordinal, name, data_type, is_primary_key, is_nullable)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare column insert: %w", err)
	}
	defer func() { _ = colStmt.Close() }()

	for i, o := range snap.Objects() {
		if _, err := objStmt.ExecContext(ctx, id, i, o.Schema, o.Name, o.Kind.String()); err != nil {
			return "", fmt.Errorf("failed to insert object %s: %w", o.QualifiedName(), err)
		}
		for _, c := range o.Columns {
			if _, err := colStmt.ExecContext(ctx, id, i, c.Ordinal, c.Name, c.Type, c.PrimaryKey, c.Nullable); err != nil {
				return "", fmt.Errorf("failed to insert column %s.%s: %w", o.QualifiedName(), c.Name, err)
			}
		}
	}

	fkStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO foreign_keys (snapshot_id, seq, constraint_name,
		     source_schema, source_table, source_column, target_schema, target_table, target_column)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare foreign key insert: %w", err)
	}
	defer func() { _ = fkStmt.Close() }()

	for i, e := range snap.Edges() {
		if _, err := fkStmt.ExecContext(ctx, id, i, e.ConstraintName,
			e.SourceSchema, e.SourceTable, e.SourceColumn,
			e.TargetSchema, e.TargetTable, e.TargetColumn); err != nil {
			return "", fmt.Errorf("failed to insert foreign key %s: %w", e.ConstraintName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit snapshot: %w", err)
	}

	s.logger.Debug("saved catalog snapshot",
		slog.String("name", name),
		slog.String("id", id),
		slog.Int("objects", len(snap.Objects())))
	return id, nil
}

// LoadSnapshot rebuilds the named snapshot. A missing name yields an error
// wrapping catalog.ErrNotFound.
func (s *Store) LoadSnapshot(ctx context.Context, name string) (*catalog.Snapshot, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	var id, database, defaultSchema string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, database_name, default_schema FROM snapshots WHERE name = ?`, name,
	).Scan(&id, &database, &defaultSchema)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %q: %w", name, catalog.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %q: %w", name, err)
	}

	objects, err := s.loadObjects(ctx, id)
	if err != nil {
		return nil, err
	}
	edges, err := s.loadEdges(ctx, id)
	if err != nil {
		return nil, err
	}
	return catalog.New(database, defaultSchema, objects, edges), nil
}

func (s *Store) loadObjects(ctx context.Context, id string) ([]catalog.Object, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, schema_name, name, kind FROM objects WHERE snapshot_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var objects []catalog.Object
	seqs := make(map[int]int)
	for rows.Next() {
		var seq int
		var o catalog.Object
		var kind string
		if err := rows.Scan(&seq, &o.Schema, &o.Name, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		if o.Kind, err = catalog.ParseKind(kind); err != nil {
			return nil, err
		}
		seqs[seq] = len(objects)
		objects = append(objects, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating objects: %w", err)
	}
	_ = rows.Close()

	cols, err := s.db.QueryContext(ctx,
		`SELECT object_seq, ordinal, name, data_type, is_primary_key, is_nullable
		 FROM columns WHERE snapshot_id = ? ORDER BY object_seq, ordinal`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer func() { _ = cols.Close() }()

	for cols.Next() {
		var seq int
		var c catalog.Column
		if err := cols.Scan(&seq, &c.Ordinal, &c.Name, &c.Type, &c.PrimaryKey, &c.Nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		if i, ok := seqs[seq]; ok {
			objects[i].Columns = append(objects[i].Columns, c)
		}
	}
	if err := cols.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	return objects, nil
}

func (s *Store) loadEdges(ctx context.Context, id string) ([]catalog.FKEdge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT constraint_name, source_schema, source_table, source_column,
		        target_schema, target_table, target_column
		 FROM foreign_keys WHERE snapshot_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []catalog.FKEdge
	for rows.Next() {
		var e catalog.FKEdge
		if err := rows.Scan(&e.ConstraintName, &e.SourceSchema, &e.SourceTable, &e.SourceColumn,
			&e.TargetSchema, &e.TargetTable, &e.TargetColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foreign keys: %w", err)
	}
	return edges, nil
}

// ListSnapshots returns every saved snapshot, newest first.
func (s *Store) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.database_name, s.source, s.created_at,
		       (SELECT COUNT(*) FROM objects o WHERE o.snapshot_id = s.id)
		FROM snapshots s
		ORDER BY s.created_at DESC, s.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var created string
		if err := rows.Scan(&info.ID, &info.Name, &info.Database, &info.Source, &created, &info.Objects); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if info.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("snapshot %q has bad created_at %q: %w", info.Name, created, err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return out, nil
}

// DeleteSnapshot removes the named snapshot. Deleting a missing name
// yields an error wrapping catalog.ErrNotFound.
func (s *Store) DeleteSnapshot(ctx context.Context, name string) error {
	if s.db == nil {
		return ErrNotOpen
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx, `SELECT id FROM snapshots WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("snapshot %q: %w", name, catalog.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get snapshot %q: %w", name, err)
	}
	if err := deleteByName(ctx, tx, name); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteByName(ctx context.Context, tx *sql.Tx, name string) error {
	for _, table := range []string{"foreign_keys", "columns", "objects"} {
		//nolint:gosec // table names are constants
		q := `DELETE FROM ` + table + ` WHERE snapshot_id IN (SELECT id FROM snapshots WHERE name = ?)`
		if _, err := tx.ExecContext(ctx, q, name); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
