package commands

import (
	"bytes"
	"encoding/json"
	"runtime"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableflip.dev/cachemap/pkg/app/apptest"
	"tableflip.dev/cachemap/pkg/printers"
)

func init() {
	homedir.DisableCache = true
}

func env(t *testing.T, server string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("CACHEMAP_CONFIG_PATH", dir)
	t.Setenv("CACHEMAP_SERVER", server)
	t.Setenv("CACHEMAP_BUS", "none")
	t.Setenv("CACHEMAP_STORAGE_PATH", "/cache")
	t.Setenv("CACHEMAP_SETTINGS_DIR", t.TempDir())
	t.Chdir(dir)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := New()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	root := New()
	for _, path := range [][]string{
		{"ls"}, {"list"}, {"tags"}, {"tag", "add"}, {"tag", "rm"},
		{"autotag"}, {"rm"}, {"preview"}, {"settings"}, {"watch"}, {"version"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.NotSame(t, root, cmd, path)
	}
}

func TestListCommand(t *testing.T) {
	b := apptest.NewBackend(t, map[string][]string{"canny": {"a.png", "b.png"}})
	b.SetTags("b", "night")
	env(t, b.Server.URL)

	out, err := execute(t, "ls", "-c", "canny", "--tag", "night", "-o", "json")
	require.NoError(t, err)

	var rows []printers.AssetRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Equal(t, []printers.AssetRow{{Asset: "b.png", Tags: []string{"night"}}}, rows)
}

func TestTagCommand(t *testing.T) {
	b := apptest.NewBackend(t, map[string][]string{"depth": {"a.png"}})
	env(t, b.Server.URL)

	_, err := execute(t, "tag", "add", "a.png", "night", "rain")
	require.NoError(t, err)
	assert.Equal(t, []string{"night", "rain"}, b.Tags("a"))
}

func TestBadCategory(t *testing.T) {
	b := apptest.NewBackend(t, nil)
	env(t, b.Server.URL)

	_, err := execute(t, "ls", "-c", "sketch")
	assert.ErrorContains(t, err, `unknown category "sketch"`)
}

func TestVersionNeedsNoConfig(t *testing.T) {
	env(t, "")

	out, err := execute(t, "version", "-s")
	require.NoError(t, err)
	assert.Contains(t, out, "dev")
}

func TestVersionTable(t *testing.T) {
	env(t, "")

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
	assert.Contains(t, out, runtime.GOOS+"/"+runtime.GOARCH)
	assert.Contains(t, out, runtime.Version())
}

func TestVersionStructured(t *testing.T) {
	env(t, "")

	out, err := execute(t, "version", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"dev"`)
	assert.NotContains(t, out, runtime.GOOS+"/"+runtime.GOARCH)
}
