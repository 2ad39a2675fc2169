package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlsense/internal/cli/output"
	clitest "github.com/leapstack-labs/sqlsense/internal/cli/testutil"
	"github.com/leapstack-labs/sqlsense/internal/config"
	"github.com/leapstack-labs/sqlsense/internal/testutil"
	"github.com/leapstack-labs/sqlsense/pkg/catalog"
	"github.com/leapstack-labs/sqlsense/pkg/engine"
)

func TestCommandMetadata(t *testing.T) {
	cmds := []*cobra.Command{
		NewCompleteCommand(),
		NewJoinsCommand(),
		NewCheckCommand(),
		NewTokensCommand(),
		NewScopeCommand(),
		NewCatalogCommand(),
		NewLSPCommand("test"),
		NewREPLCommand(),
		NewVersionCommand("1.0", "abc", "today"),
	}
	for _, cmd := range cmds {
		t.Run(cmd.Name(), func(t *testing.T) {
			assert.NotEmpty(t, cmd.Use)
			assert.NotEmpty(t, cmd.Short)
			assert.True(t, cmd.RunE != nil || cmd.HasSubCommands())
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestVersionOutput(t *testing.T) {
	cmd := NewVersionCommand("1.0", "abc", "today")
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "sqlsense v1.0\n")
	assert.Contains(t, buf.String(), "commit abc, built today")

	cmd = NewVersionCommand("1.0", "abc", "today")
	cmd.SetOut(failingWriter{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	assert.EqualError(t, cmd.Execute(), "closed pipe")
}

func TestCatalogSubcommands(t *testing.T) {
	var names []string
	for _, c := range NewCatalogCommand().Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"show", "introspect", "import", "snapshots", "drop", "drivers"}, names)
}

func TestPositionFlags(t *testing.T) {
	var pos position
	cmd := &cobra.Command{Use: "x"}
	pos.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--line", "1"}))

	line, col := pos.resolve("SELECT 1\nFROM Orders\n")
	assert.Equal(t, 1, line)
	assert.Equal(t, 11, col, "a missing column means end of line")

	pos.col = 4
	line, col = pos.resolve("SELECT 1\nFROM Orders\n")
	assert.Equal(t, 1, line)
	assert.Equal(t, 4, col)
}

func TestReadInput(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("SELECT 1"))
	name, text, err := readInput(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, "<stdin>", name)
	assert.Equal(t, "SELECT 1", text)

	path := filepath.Join(t.TempDir(), "q.sql")
	require.NoError(t, os.WriteFile(path, []byte("SELECT 2"), 0o600))
	name, text, err = readInput(cmd, []string{path})
	require.NoError(t, err)
	assert.Equal(t, path, name)
	assert.Equal(t, "SELECT 2", text)

	_, _, err = readInput(cmd, []string{filepath.Join(t.TempDir(), "missing.sql")})
	assert.Error(t, err)
}

func TestLoadCatalog_MissingFileIsEmpty(t *testing.T) {
	cfg := &config.Config{Catalog: config.CatalogConfig{Source: config.SourceYAML, Path: filepath.Join(t.TempDir(), "none.yaml")}}
	snap, err := LoadCatalog(context.Background(), cfg, testutil.NewTestLogger(t))
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
}

func TestLoadCatalog_StoreMissingSnapshot(t *testing.T) {
	cfg := &config.Config{Catalog: config.CatalogConfig{
		Source:   config.SourceStore,
		Store:    filepath.Join(t.TempDir(), "catalog.db"),
		Snapshot: "nope",
	}}
	_, err := LoadCatalog(context.Background(), cfg, testutil.NewTestLogger(t))
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestCatalogWatcher(t *testing.T) {
	eng := engine.New(engine.Config{})
	cfg := &config.Config{Catalog: config.CatalogConfig{Source: config.SourceYAML, Path: "catalog.yaml"}}
	assert.Nil(t, catalogWatcher(cfg, eng, testutil.NewTestLogger(t), nil), "watch is off")

	cfg.Catalog.Watch = true
	assert.NotNil(t, catalogWatcher(cfg, eng, testutil.NewTestLogger(t), nil))

	cfg.Catalog.Source = config.SourceStore
	assert.Nil(t, catalogWatcher(cfg, eng, testutil.NewTestLogger(t), nil), "only files are watched")
}

// newTestSession builds a REPL session over the sample catalog, loaded
// through .reload. Output is captured by the returned renderer.
func newTestSession(t *testing.T) (*replSession, *clitest.TestRenderer) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testutil.SampleCatalogYAML), 0o600))

	out := clitest.NewTestRenderer(output.ModeText, false)
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cc := &CommandContext{
		Cfg:      &config.Config{Catalog: config.CatalogConfig{Source: config.SourceYAML, Path: path}},
		Logger:   testutil.NewTestLogger(t),
		Engine:   engine.New(engine.Config{}),
		Renderer: out.Renderer,
	}
	s := newREPLSession(cmd, cc)
	require.False(t, s.handle(".reload"))
	assert.Contains(t, out.Output(), "catalog reloaded")
	out.Reset()
	return s, out
}

func TestREPLSession_Document(t *testing.T) {
	s, out := newTestSession(t)

	assert.False(t, s.handle(""))
	assert.Empty(t, s.text, "leading blank lines are ignored")

	s.handle("SELECT *")
	s.handle("FROM Orders o JOIN Customers c")
	assert.Equal(t, "SELECT *\nFROM Orders o JOIN Customers c\n", s.text)

	s.handle(".show")
	assert.Contains(t, out.Output(), "FROM Orders o JOIN Customers c")

	out.Reset()
	s.handle(".scope")
	assert.Contains(t, out.Output(), "Customers")
	assert.Contains(t, out.Output(), "Orders")

	s.handle(".clear")
	assert.Empty(t, s.text)

	assert.True(t, s.handle(".quit"))
	assert.True(t, s.handle(".EXIT"))
}

func TestREPLSession_Commands(t *testing.T) {
	s, out := newTestSession(t)

	s.handle("SELECT * FROM OrderLines ol JOIN")
	s.handle(".joins")
	assert.Contains(t, out.Output(), "ol.OrderID = o.OrderID")

	out.Reset()
	s.handle(".clear")
	s.handle("SELECT * FROM Orders o JOIN sales.Regions r ON r.RegionID = o.OrderID")
	s.handle(".check")
	assert.Contains(t, out.Output(), "uniqueidentifier")

	out.Reset()
	s.handle(".tables sales")
	assert.Contains(t, out.Output(), "sales.Regions")
	assert.NotContains(t, out.Output(), "dbo.Orders")

	out.Reset()
	s.handle(".columns Products")
	assert.Contains(t, out.Output(), "ProductID")

	out.Reset()
	s.handle(".columns")
	assert.Contains(t, out.ErrorOutput(), "usage: .columns <table>")

	out.Reset()
	s.handle(".bogus")
	assert.Contains(t, out.ErrorOutput(), "unknown command .bogus")
}

func TestREPLSession_JSONFallsBackToText(t *testing.T) {
	cc := &CommandContext{Renderer: clitest.NewTestRenderer(output.ModeJSON, false).Renderer}
	s := newREPLSession(&cobra.Command{}, cc)
	assert.Equal(t, output.ModeText, s.cc.Renderer.EffectiveMode())
}

func TestREPLCompleter(t *testing.T) {
	s, _ := newTestSession(t)
	c := &replCompleter{session: s}

	got, n := c.Do([]rune(".co"), 3)
	assert.Equal(t, 3, n)
	assert.ElementsMatch(t, [][]rune{[]rune("mplete"), []rune("lumns")}, got)

	s.handle("SELECT *")
	line := []rune("FROM Categ")
	got, n = c.Do(line, len(line))
	assert.Equal(t, len("Categ"), n)
	require.NotEmpty(t, got)
	assert.Equal(t, "ories", string(got[0]))
}

func TestCompleteWords(t *testing.T) {
	got, n := completeWords("or", []string{"Orders", "OrderLines", "Products", "Orders"})
	assert.Equal(t, 2, n)
	assert.Equal(t, [][]rune{[]rune("ders"), []rune("derLines")}, got)

	got, n = completeWords("", []string{"a", "b"})
	assert.Equal(t, 0, n)
	assert.Len(t, got, 2)
}
