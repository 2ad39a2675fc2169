package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlsense/internal/catalogstore"
	"github.com/leapstack-labs/sqlsense/internal/cli/output"
	"github.com/leapstack-labs/sqlsense/internal/config"
	"github.com/leapstack-labs/sqlsense/internal/introspect"
	"github.com/leapstack-labs/sqlsense/pkg/catalog"
)

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect, introspect and store catalog snapshots",
		Long: `Work with the catalog metadata sqlsense resolves names against.

The configured source (catalog.source) is a YAML file, a snapshot in the
local catalog store, or a live database read through one of the
introspection drivers.`,
	}
	cmd.AddCommand(newCatalogShowCommand())
	cmd.AddCommand(newCatalogIntrospectCommand())
	cmd.AddCommand(newCatalogImportCommand())
	cmd.AddCommand(newCatalogSnapshotsCommand())
	cmd.AddCommand(newCatalogDropCommand())
	cmd.AddCommand(newCatalogDriversCommand())
	return cmd
}

// --- show ---

// ObjectOutput is one catalog object in JSON output.
type ObjectOutput struct {
	Schema  string           `json:"schema"`
	Name    string           `json:"name"`
	Kind    string           `json:"kind"`
	Columns []catalog.Column `json:"columns"`
}

// ShowOutput is the JSON shape of catalog show.
type ShowOutput struct {
	Database      string           `json:"database"`
	DefaultSchema string           `json:"default_schema"`
	Objects       []ObjectOutput   `json:"objects"`
	ForeignKeys   []catalog.FKEdge `json:"foreign_keys"`
}

func newCatalogShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [table]",
		Short: "Show the configured catalog, or one table's columns",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContextWithoutEngine(cmd)
			if err != nil {
				return err
			}
			snap, err := LoadCatalog(cmd.Context(), cc.Cfg, cc.Logger)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return showObject(cc.Renderer, snap, args[0])
			}
			return showCatalog(cc.Renderer, snap)
		},
	}
}

func showCatalog(r *output.Renderer, snap *catalog.Snapshot) error {
	if r.EffectiveMode() == output.ModeJSON {
		out := ShowOutput{
			Database:      snap.Database,
			DefaultSchema: snap.DefaultSchema,
			Objects:       []ObjectOutput{},
			ForeignKeys:   snap.Edges(),
		}
		for _, o := range snap.Objects() {
			out.Objects = append(out.Objects, ObjectOutput{Schema: o.Schema, Name: o.Name, Kind: o.Kind.String(), Columns: o.Columns})
		}
		if out.ForeignKeys == nil {
			out.ForeignKeys = []catalog.FKEdge{}
		}
		return r.JSON(out)
	}

	r.Header(1, fmt.Sprintf("Catalog %s (default schema %s)", snap.Database, snap.DefaultSchema))
	rows := make([][]string, 0, len(snap.Objects()))
	for _, o := range snap.Objects() {
		rows = append(rows, []string{o.QualifiedName(), o.Kind.String(), strconv.Itoa(len(o.Columns))})
	}
	r.Table([]string{"Object", "Kind", "Columns"}, rows)

	r.Header(2, "Foreign keys")
	fks := make([][]string, 0, len(snap.Edges()))
	for _, e := range snap.Edges() {
		fks = append(fks, []string{
			e.ConstraintName,
			e.SourceSchema + "." + e.SourceTable + "." + e.SourceColumn,
			e.TargetSchema + "." + e.TargetTable + "." + e.TargetColumn,
		})
	}
	r.Table([]string{"Constraint", "From", "To"}, fks)
	return nil
}

func showObject(r *output.Renderer, snap *catalog.Snapshot, name string) error {
	schema, table := "", name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		schema, table = name[:i], name[i+1:]
	}
	obj, ok := snap.Lookup(schema, table)
	if !ok {
		return fmt.Errorf("object %s: %w", name, catalog.ErrNotFound)
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(ObjectOutput{Schema: obj.Schema, Name: obj.Name, Kind: obj.Kind.String(), Columns: obj.Columns})
	}

	r.Header(1, fmt.Sprintf("%s (%s)", obj.QualifiedName(), obj.Kind))
	rows := make([][]string, 0, len(obj.Columns))
	for _, c := range obj.Columns {
		var flags []string
		if c.PrimaryKey {
			flags = append(flags, "PK")
		}
		if c.ForeignKey {
			flags = append(flags, "FK")
		}
		if c.Nullable {
			flags = append(flags, "NULL")
		}
		rows = append(rows, []string{strconv.Itoa(c.Ordinal), c.Name, c.Type, strings.Join(flags, " ")})
	}
	r.Table([]string{"#", "Column", "Type", "Flags"}, rows)
	return nil
}

// --- introspect ---

func newCatalogIntrospectCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "introspect",
		Short: "Read a live database's metadata and write it as a catalog file",
		Long: `Connect with catalog.source and catalog.dsn, read tables, views,
columns and keys, and write the result as YAML to --out (or stdout).`,
		Example: `  sqlsense catalog introspect --source postgres --dsn "$DATABASE_URL" --out catalog.yaml
  sqlsense catalog introspect --source sqlite --dsn app.db --schemas main`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContextWithoutEngine(cmd)
			if err != nil {
				return err
			}
			c := cc.Cfg.Catalog
			if !introspect.IsRegistered(c.Source) {
				return fmt.Errorf("catalog introspect needs a database source: %w",
					&introspect.UnknownDriverError{Driver: c.Source, Available: introspect.ListDrivers()})
			}

			start := time.Now()
			snap, err := introspect.Load(cmd.Context(), c.Source, c.DSN, c.Schemas, cc.Logger)
			if err != nil {
				return err
			}
			cc.Logger.Info("introspected", "source", c.Source, "objects", len(snap.Objects()), "duration", time.Since(start))

			if out == "" || out == "-" {
				return snap.Encode(cmd.OutOrStdout())
			}
			f, err := os.Create(out) //nolint:gosec // path comes from the command line
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			if err := snap.Encode(f); err != nil {
				_ = f.Close()
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			cc.Renderer.Success(fmt.Sprintf("wrote %d objects to %s", len(snap.Objects()), out))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "file to write (default: stdout)")
	return cmd
}

// --- import ---

func newCatalogImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [name]",
		Short: "Save the configured catalog as a named snapshot in the store",
		Long: `Load the catalog from catalog.source and save it in the local store
(catalog.store) under name, replacing any snapshot with that name.
The name defaults to catalog.snapshot.`,
		Example: `  sqlsense catalog import --catalog catalog.yaml
  sqlsense catalog import prod --source postgres --dsn "$DATABASE_URL"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContextWithoutEngine(cmd)
			if err != nil {
				return err
			}
			if cc.Cfg.Catalog.Source == config.SourceStore {
				return fmt.Errorf("catalog import reads from yaml or a database source, not the store itself")
			}
			name := cc.Cfg.Catalog.Snapshot
			if len(args) == 1 {
				name = args[0]
			}

			snap, err := LoadCatalog(cmd.Context(), cc.Cfg, cc.Logger)
			if err != nil {
				return err
			}
			store, err := catalogstore.Open(cmd.Context(), cc.Cfg.Catalog.Store, cc.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			id, err := store.SaveSnapshot(cmd.Context(), name, cc.Cfg.Catalog.Source, snap)
			if err != nil {
				return err
			}
			if cc.Renderer.EffectiveMode() == output.ModeJSON {
				return cc.Renderer.JSON(map[string]any{"id": id, "name": name, "objects": len(snap.Objects())})
			}
			cc.Renderer.Success(fmt.Sprintf("saved snapshot %q (%d objects) to %s", name, len(snap.Objects()), store.Path()))
			return nil
		},
	}
	return cmd
}

// --- snapshots ---

func newCatalogSnapshotsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List snapshots in the catalog store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContextWithoutEngine(cmd)
			if err != nil {
				return err
			}
			store, err := catalogstore.Open(cmd.Context(), cc.Cfg.Catalog.Store, cc.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			list, err := store.ListSnapshots(cmd.Context())
			if err != nil {
				return err
			}
			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				if list == nil {
					list = []catalogstore.SnapshotInfo{}
				}
				return r.JSON(list)
			}
			rows := make([][]string, 0, len(list))
			for _, s := range list {
				rows = append(rows, []string{s.Name, s.Database, s.Source, strconv.Itoa(s.Objects), s.CreatedAt.Format(time.RFC3339)})
			}
			r.Table([]string{"Name", "Database", "Source", "Objects", "Created"}, rows)
			return nil
		},
	}
}

// --- drop ---

func newCatalogDropCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <name>",
		Short: "Delete a snapshot from the catalog store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContextWithoutEngine(cmd)
			if err != nil {
				return err
			}
			store, err := catalogstore.Open(cmd.Context(), cc.Cfg.Catalog.Store, cc.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteSnapshot(cmd.Context(), args[0]); err != nil {
				return err
			}
			cc.Renderer.Success(fmt.Sprintf("deleted snapshot %q", args[0]))
			return nil
		},
	}
}

// --- drivers ---

func newCatalogDriversCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drivers",
		Short: "List the catalog sources this build supports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sources := append([]string{config.SourceYAML, config.SourceStore}, introspect.ListDrivers()...)
			for _, s := range sources {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}
