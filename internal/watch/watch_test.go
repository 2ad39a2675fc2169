package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlsense/internal/testutil"
	"github.com/leapstack-labs/sqlsense/pkg/catalog"
	"github.com/leapstack-labs/sqlsense/pkg/engine"
)

const smallCatalog = `
database: Small
objects:
  - name: Widgets
    columns:
      - {name: WidgetID, type: int, pk: true}
`

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testutil.SampleCatalogYAML), 0o600))

	initial, err := catalog.LoadFile(path)
	require.NoError(t, err)
	eng := engine.New(engine.Config{Catalog: initial})

	reloaded := make(chan error, 16)
	w := New(path, func(context.Context) (*catalog.Snapshot, error) {
		return catalog.LoadFile(path)
	}, eng, Options{
		Debounce: 20 * time.Millisecond,
		OnReload: func(_ *catalog.Snapshot, err error) { reloaded <- err },
		Logger:   testutil.NewTestLogger(t),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// the watch is registered asynchronously, so keep touching the file
	// until a reload lands
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(smallCatalog), 0o600)
		select {
		case err := <-reloaded:
			return err == nil
		default:
			return false
		}
	}, 5*time.Second, 100*time.Millisecond)

	assert.Equal(t, "Small", eng.Catalog().Database)
	_, ok := eng.Catalog().Lookup("", "Widgets")
	assert.True(t, ok)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(smallCatalog), 0o600))

	var loads atomic.Int32
	w := New(path, func(context.Context) (*catalog.Snapshot, error) {
		loads.Add(1)
		return catalog.Empty(), nil
	}, engine.New(engine.Config{}), Options{Debounce: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600))
		time.Sleep(30 * time.Millisecond)
	}
	assert.Zero(t, loads.Load())
}

func TestWatcher_FailedReloadKeepsSnapshot(t *testing.T) {
	eng := engine.New(engine.Config{Catalog: testutil.SampleCatalog()})
	boom := errors.New("bad yaml")

	var got error
	w := New("catalog.yaml", func(context.Context) (*catalog.Snapshot, error) {
		return nil, boom
	}, eng, Options{OnReload: func(_ *catalog.Snapshot, err error) { got = err }})

	w.Reload(context.Background())

	assert.ErrorIs(t, got, boom)
	assert.Equal(t, "Shop", eng.Catalog().Database)
}
