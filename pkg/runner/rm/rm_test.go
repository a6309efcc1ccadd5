package rm

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tableflip.dev/cachemap/pkg/app/apptest"
	"tableflip.dev/cachemap/pkg/asset"
	"tableflip.dev/cachemap/pkg/printers"
	"tableflip.dev/cachemap/pkg/prompt"
	"tableflip.dev/cachemap/pkg/remote"
	"tableflip.dev/cachemap/pkg/tags"
)

func init() {
	color.NoColor = true
}

func files() map[string][]string {
	return map[string][]string{
		"depth": {"a.png", "b.png"},
		"canny": {"a.png"},
	}
}

func TestRemoveFromCategory(t *testing.T) {
	b := apptest.NewBackend(t, files())
	b.SetTags("a", "night")
	svc := b.Service(t, prompt.New(true, zap.NewNop()))

	var buf bytes.Buffer
	r := &Remove{Service: svc, Printer: &printers.Printer{Out: &buf, Format: printers.FormatJSON}, Category: asset.Depth, Asset: "a.png"}
	require.NoError(t, r.Do(context.Background()))

	var res remote.DeleteResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, []string{"depth/a.png"}, res.Deleted)
	assert.Equal(t, []string{"b.png"}, b.Files("depth"))
	assert.Equal(t, []string{"a.png"}, b.Files("canny"))
	assert.Equal(t, []string{"b.png"}, svc.Session.Listing())
	assert.Empty(t, svc.Session.Selected())
}

func TestRemoveAll(t *testing.T) {
	b := apptest.NewBackend(t, files())
	svc := b.Service(t, prompt.New(true, zap.NewNop()))

	r := &Remove{Service: svc, Printer: &printers.Printer{Out: &bytes.Buffer{}, Format: printers.FormatTable}, Category: asset.Canny, Asset: "a", All: true}
	require.NoError(t, r.Do(context.Background()))
	assert.Equal(t, []string{"b.png"}, b.Files("depth"))
	assert.Empty(t, b.Files("canny"))
}

func TestRemoveRefused(t *testing.T) {
	b := apptest.NewBackend(t, files())
	b.Refuse = "file in use"
	var alerts bytes.Buffer
	term := prompt.New(true, zap.NewNop())
	term.Err = &alerts
	svc := b.Service(t, term)

	r := &Remove{Service: svc, Printer: printers.New(printers.FormatTable), Category: asset.Depth, Asset: "a"}
	var derr *tags.DeleteError
	require.ErrorAs(t, r.Do(context.Background()), &derr)
	assert.Contains(t, alerts.String(), "file in use")
	assert.Equal(t, []string{"a.png", "b.png"}, b.Files("depth"))
	assert.Equal(t, "a.png", svc.Session.Selected())
}

func TestRemoveNeedsConfirmation(t *testing.T) {
	b := apptest.NewBackend(t, files())
	term := prompt.New(false, zap.NewNop())
	term.Interactive = false
	svc := b.Service(t, term)

	r := &Remove{Service: svc, Printer: printers.New(printers.FormatTable), Category: asset.Depth, Asset: "a"}
	assert.ErrorIs(t, r.Do(context.Background()), prompt.ErrNotInteractive)
	assert.Equal(t, []string{"a.png", "b.png"}, b.Files("depth"))
}
