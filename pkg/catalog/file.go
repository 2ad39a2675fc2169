package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// fileFormat is the on-disk shape of a snapshot. JSON files parse too since
// YAML is a superset.
type fileFormat struct {
	Database      string       `yaml:"database,omitempty"`
	DefaultSchema string       `yaml:"default_schema,omitempty"`
	Objects       []fileObject `yaml:"objects"`
	ForeignKeys   []fileFK     `yaml:"foreign_keys,omitempty"`
}

type fileObject struct {
	Schema  string       `yaml:"schema,omitempty"`
	Name    string       `yaml:"name"`
	Kind    ObjectKind   `yaml:"kind,omitempty"`
	Columns []fileColumn `yaml:"columns,omitempty"`
}

type fileColumn struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type,omitempty"`
	Ordinal  int    `yaml:"ordinal,omitempty"`
	PK       bool   `yaml:"pk,omitempty"`
	Nullable bool   `yaml:"nullable,omitempty"`
}

type fileFK struct {
	Name string     `yaml:"name,omitempty"`
	From fileColRef `yaml:"from"`
	To   fileColRef `yaml:"to"`
}

type fileColRef struct {
	Schema string `yaml:"schema,omitempty"`
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

// LoadFile reads a snapshot from a YAML or JSON file.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from user configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	snap, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}
	return snap, nil
}

// Parse decodes a snapshot document.
func Parse(data []byte) (*Snapshot, error) {
	var f fileFormat
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	objects := make([]Object, 0, len(f.Objects))
	for i, fo := range f.Objects {
		if fo.Name == "" {
			return nil, fmt.Errorf("object %d: missing name", i)
		}
		o := Object{Schema: fo.Schema, Name: fo.Name, Kind: fo.Kind}
		for _, fc := range fo.Columns {
			o.Columns = append(o.Columns, Column{
				Name:       fc.Name,
				Type:       fc.Type,
				Ordinal:    fc.Ordinal,
				PrimaryKey: fc.PK,
				Nullable:   fc.Nullable,
			})
		}
		objects = append(objects, o)
	}

	edges := make([]FKEdge, 0, len(f.ForeignKeys))
	for i, fk := range f.ForeignKeys {
		if fk.From.Table == "" || fk.To.Table == "" || fk.From.Column == "" || fk.To.Column == "" {
			return nil, fmt.Errorf("foreign key %d: incomplete column reference", i)
		}
		edges = append(edges, FKEdge{
			ConstraintName: fk.Name,
			SourceSchema:   fk.From.Schema,
			SourceTable:    fk.From.Table,
			SourceColumn:   fk.From.Column,
			TargetSchema:   fk.To.Schema,
			TargetTable:    fk.To.Table,
			TargetColumn:   fk.To.Column,
		})
	}
	return New(f.Database, f.DefaultSchema, objects, edges), nil
}

// Encode writes the snapshot as YAML.
func (s *Snapshot) Encode(w io.Writer) error {
	f := fileFormat{Objects: []fileObject{}}
	if s != nil {
		f.Database = s.Database
		f.DefaultSchema = s.DefaultSchema
		for _, o := range s.objects {
			fo := fileObject{Schema: o.Schema, Name: o.Name, Kind: o.Kind}
			for _, c := range o.Columns {
				fo.Columns = append(fo.Columns, fileColumn{
					Name:     c.Name,
					Type:     c.Type,
					Ordinal:  c.Ordinal,
					PK:       c.PrimaryKey,
					Nullable: c.Nullable,
				})
			}
			f.Objects = append(f.Objects, fo)
		}
		for _, e := range s.edges {
			f.ForeignKeys = append(f.ForeignKeys, fileFK{
				Name: e.ConstraintName,
				From: fileColRef{Schema: e.SourceSchema, Table: e.SourceTable, Column: e.SourceColumn},
				To:   fileColRef{Schema: e.TargetSchema, Table: e.TargetTable, Column: e.TargetColumn},
			})
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&f); err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	return enc.Close()
}
