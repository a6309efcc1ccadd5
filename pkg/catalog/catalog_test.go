package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableflip.dev/cachemap/pkg/asset"
)

type fakeLister struct {
	mu    sync.Mutex
	files map[asset.Category][]string
	errs  map[asset.Category]error
	paths []string
}

func (f *fakeLister) ListFiles(_ context.Context, storagePath string, category asset.Category) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, storagePath)
	if err := f.errs[category]; err != nil {
		return nil, err
	}
	return f.files[category], nil
}

func TestListCategoryFiltersImages(t *testing.T) {
	l := &fakeLister{files: map[asset.Category][]string{
		asset.Depth: {"b.png", "notes.txt", "a.JPG"},
	}}
	c := New(l, nil)
	c.SetStoragePath(" /cache ")

	got, err := c.ListCategory(context.Background(), asset.Depth)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"b.png", "a.JPG"}, got); diff != "" {
		t.Errorf("unexpected listing (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"/cache"}, l.paths)
}

func TestListAllPrefixesAndSkipsFailures(t *testing.T) {
	l := &fakeLister{
		files: map[asset.Category][]string{
			asset.Original: {"forest_01.png"},
			asset.Depth:    {"forest_01.png", "city.png"},
			asset.SoftEdge: {"city.png"},
		},
		errs: map[asset.Category]error{
			asset.Canny: errors.New("offline"),
		},
	}
	c := New(l, nil)

	got := c.ListAll(context.Background())
	want := []string{
		"original/forest_01.png",
		"depth/forest_01.png",
		"depth/city.png",
		"softedge/city.png",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected listing (-want +got):\n%s", diff)
	}
}

func TestListDependsOnStoragePath(t *testing.T) {
	l := &fakeLister{files: map[asset.Category][]string{
		asset.Depth: {"a.png"},
		asset.Pose:  {"b.png"},
	}}
	c := New(l, nil)
	ctx := context.Background()

	got, err := c.List(ctx, asset.Depth)
	require.NoError(t, err)
	assert.Equal(t, []string{"depth/a.png", "pose/b.png"}, got)

	c.SetStoragePath("/cache")
	got, err = c.List(ctx, asset.Depth)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png"}, got)
}

func TestResolve(t *testing.T) {
	c := New(&fakeLister{}, nil)
	assert.Equal(t, "forest_01", c.Resolve("depth/forest_01.png"))
	assert.Equal(t, "forest_01", c.Resolve("forest_01.webp"))
}
