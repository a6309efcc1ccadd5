package list

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableflip.dev/cachemap/pkg/app/apptest"
	"tableflip.dev/cachemap/pkg/asset"
	"tableflip.dev/cachemap/pkg/printers"
)

func files() map[string][]string {
	return map[string][]string{
		"depth": {"a.png", "b.png", "c.png", "notes.txt"},
		"canny": {"a.png"},
	}
}

func run(t *testing.T, l *List) []printers.AssetRow {
	t.Helper()
	var buf bytes.Buffer
	l.Printer = &printers.Printer{Out: &buf, Format: printers.FormatJSON}
	require.NoError(t, l.Do(context.Background()))
	var rows []printers.AssetRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	return rows
}

func names(rows []printers.AssetRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Asset)
	}
	return out
}

func TestListCategory(t *testing.T) {
	b := apptest.NewBackend(t, files())
	b.SetTags("a", "night", "rain")

	rows := run(t, &List{Service: b.Service(t, nil), Category: asset.Depth})
	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, names(rows))
	assert.Equal(t, []string{"night", "rain"}, rows[0].Tags)
	assert.Empty(t, rows[1].Tags)
}

func TestListFilters(t *testing.T) {
	b := apptest.NewBackend(t, files())
	b.SetTags("a", "night", "rain")
	b.SetTags("b", "Night")
	b.SetTags("c", "day")

	rows := run(t, &List{Service: b.Service(t, nil), Category: asset.Depth, Filters: []string{"NIGHT"}})
	assert.Equal(t, []string{"a.png", "b.png"}, names(rows))

	rows = run(t, &List{Service: b.Service(t, nil), Category: asset.Depth, Filters: []string{"night", "rain"}})
	assert.Equal(t, []string{"a.png"}, names(rows))
}

func TestListQuery(t *testing.T) {
	b := apptest.NewBackend(t, files())
	b.SetTags("c", "Rainy")

	rows := run(t, &List{Service: b.Service(t, nil), Category: asset.Depth, Query: "rain"})
	assert.Equal(t, []string{"c.png"}, names(rows))

	rows = run(t, &List{Service: b.Service(t, nil), Category: asset.Depth, Query: "B"})
	assert.Equal(t, []string{"b.png"}, names(rows))
}

func TestListAll(t *testing.T) {
	b := apptest.NewBackend(t, files())

	rows := run(t, &List{Service: b.Service(t, nil), All: true})
	assert.Equal(t, []string{"depth/a.png", "depth/b.png", "depth/c.png", "canny/a.png"}, names(rows))
}
