package printers

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"tableflip.dev/cachemap/pkg/remote"
	"tableflip.dev/cachemap/pkg/settings"
)

func init() {
	color.NoColor = true
}

func TestAssetsTable(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, Format: FormatTable}

	require.NoError(t, p.Assets("depth", []AssetRow{
		{Asset: "a.png", Tags: []string{"night", "rain"}, Selected: true},
		{Asset: "b.png"},
	}))
	out := buf.String()
	assert.Contains(t, out, "depth - 2 assets")
	assert.Contains(t, out, "a.png")
	assert.Contains(t, out, "night, rain")
	assert.Contains(t, out, "*")
}

func TestAssetsEmpty(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, Format: FormatTable}
	require.NoError(t, p.Assets("canny", nil))
	assert.Contains(t, buf.String(), "none")
}

func TestAssetsJSON(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, Format: FormatJSON}
	require.NoError(t, p.Assets("depth", []AssetRow{{Asset: "a.png", Tags: []string{"x"}}}))

	var got []AssetRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []AssetRow{{Asset: "a.png", Tags: []string{"x"}}}, got)
}

func TestSettingsYAML(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, Format: FormatYAML}
	require.NoError(t, p.Settings(settings.Defaults()))

	var got settings.Settings
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, settings.Defaults(), got)
}

func TestTagIndexTable(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, Format: FormatTable}
	require.NoError(t, p.TagIndex([]remote.TagCount{{Name: "night", Count: 12}, {Name: "rain", Count: 1}}))
	out := buf.String()
	assert.Contains(t, out, "Tags - 2 tags")
	assert.Contains(t, out, "12  night")
}

func TestEventLine(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, Format: FormatTable}
	at := time.Date(2024, 5, 1, 10, 11, 12, 0, time.UTC)
	p.Event(at, "tags", `type:"tag-added"`)
	assert.True(t, strings.HasPrefix(buf.String(), "10:11:12.000 tags"), buf.String())
}

func TestBuildYAML(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, Format: FormatYAML}

	want := BuildInfo{Version: "1.2.0", Commit: "abc123", Date: "2026-01-02", Go: "go1.24.0", Platform: "linux/amd64"}
	require.NoError(t, p.Build(want))
	var got BuildInfo
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, want, got)
}
