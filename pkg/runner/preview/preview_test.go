package preview

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableflip.dev/cachemap/pkg/app/apptest"
	"tableflip.dev/cachemap/pkg/asset"
)

func TestURL(t *testing.T) {
	b := apptest.NewBackend(t, nil)
	var buf bytes.Buffer
	p := &Preview{Service: b.Service(t, nil), Asset: "canny/a.png", URLOnly: true, Out: &buf}
	require.NoError(t, p.Do(context.Background()))

	out := buf.String()
	assert.Contains(t, out, b.Server.URL+"/eros/cache/view_image?")
	assert.Contains(t, out, "filename=a.png")
	assert.Contains(t, out, "subfolder=canny")
	assert.Contains(t, out, "&t=")
}

func TestDownload(t *testing.T) {
	b := apptest.NewBackend(t, nil)
	dest := filepath.Join(t.TempDir(), "a.png")
	p := &Preview{Service: b.Service(t, nil), Category: asset.Depth, Asset: "a.png", Output: dest}
	require.NoError(t, p.Do(context.Background()))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "png:depth/a.png", string(data))
}

func TestDefaultsToCurrentTab(t *testing.T) {
	b := apptest.NewBackend(t, nil)
	var buf bytes.Buffer
	p := &Preview{Service: b.Service(t, nil), Asset: "a.png", Out: &buf}
	require.NoError(t, p.Do(context.Background()))
	assert.Equal(t, "png:depth/a.png", buf.String())
}
