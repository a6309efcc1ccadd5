package consumer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNodeCallbacks(t *testing.T) {
	n := NewNode("n1", "/cache", "depth/a.png")
	var seen []string
	n.OnChange(func(v string) { seen = append(seen, v) })

	n.SetFilename("canny/b.png")
	n.SetPreview([]byte("img"))
	assert.Equal(t, "canny/b.png", n.Filename())
	assert.Equal(t, []byte("img"), n.Preview())
	assert.Equal(t, []string{"canny/b.png"}, seen)

	n.SetPreview(nil)
	assert.Nil(t, n.Preview())
}

func TestFileNodeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loader.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"7","cache_path":"/cache","filename":"depth/a.png"}`), 0o644))

	n, err := OpenFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "7", n.ID())
	assert.Equal(t, "/cache", n.CachePath())
	assert.Equal(t, "depth/a.png", n.Filename())

	n.SetFilename("canny/b.png")
	n.SetPreview([]byte("img"))

	again, err := OpenFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "canny/b.png", again.Filename())
	data, err := os.ReadFile(n.PreviewPath())
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)

	n.SetPreview(nil)
	_, err = os.Stat(n.PreviewPath())
	assert.True(t, os.IsNotExist(err))
}

func TestFileNodeMissingFile(t *testing.T) {
	n, err := OpenFile(filepath.Join(t.TempDir(), "fresh.json"), nil)
	require.NoError(t, err)
	assert.Equal(t, "fresh", n.ID())
	assert.Equal(t, "", n.Filename())
	require.NoError(t, n.SetCachePath("/cache"))

	again, err := OpenFile(n.Path(), nil)
	require.NoError(t, err)
	assert.Equal(t, "/cache", again.CachePath())
}

func TestFileNodeWatchReportsExternalEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loader.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"7","cache_path":"/cache","filename":"depth/a.png"}`), 0o644))
	n, err := OpenFile(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	changes, err := n.Watch(ctx)
	require.NoError(t, err)

	n.SetFilename("depth/self.png")
	other, err := OpenFile(path, nil)
	require.NoError(t, err)
	other.SetFilename("canny/external.png")

	select {
	case c := <-changes:
		assert.Equal(t, "canny/external.png", c.Filename)
		assert.Equal(t, "canny/external.png", n.Filename())
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	for range changes {
	}
}
