package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tableflip.dev/cachemap/pkg/asset"
	"tableflip.dev/cachemap/pkg/bus"
	"tableflip.dev/cachemap/pkg/config"
	"tableflip.dev/cachemap/pkg/session"
	"tableflip.dev/cachemap/pkg/settings"
)

func backend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/eros/cache/fetch_files", func(w http.ResponseWriter, r *http.Request) {
		files := map[string][]string{
			"depth": {"a.png", "b.png"},
			"canny": {"a.png"},
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"files": files[r.URL.Query().Get("subfolder")]})
	})
	mux.HandleFunc("/eros/tags/list", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"tags": []map[string]any{{"name": "night", "count": 1}}})
	})
	mux.HandleFunc("/eros/tags/for_image", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"tags": []string{"night"}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(server string) *config.Config {
	return &config.Config{
		Server:      server,
		StoragePath: "/cache",
		Bus:         config.BusNone,
		RetryDelay:  10 * time.Millisecond,
		Debounce:    time.Millisecond,
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(&config.Config{}, zap.NewNop(), Options{})
	assert.Error(t, err)

	_, err = New(nil, zap.NewNop(), Options{})
	assert.Error(t, err)
}

func TestBrowse(t *testing.T) {
	srv := backend(t)
	store := settings.NewMemoryStore(nil)
	svc, err := New(testConfig(srv.URL), zap.NewNop(), Options{Store: store})
	require.NoError(t, err)

	require.NoError(t, svc.Browse(context.Background(), asset.Canny))
	st := svc.Session.State()
	assert.Equal(t, session.ModeUnlinked, st.Mode)
	assert.Equal(t, asset.Canny, st.Category)
	assert.Equal(t, "/cache", st.StoragePath)
	assert.Equal(t, []string{"a.png"}, svc.Session.View())
	assert.Equal(t, 1, svc.Tags.Index()["night"])

	require.NoError(t, svc.Close())
	assert.Equal(t, asset.Canny.String(), store.Load().CurrentTab)
}

func TestReconcilerNeedsBus(t *testing.T) {
	srv := backend(t)
	svc, err := New(testConfig(srv.URL), zap.NewNop(), Options{Store: settings.NewMemoryStore(nil)})
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Reconciler()
	assert.ErrorIs(t, err, ErrNoBus)
}

func TestReconcilerWithSource(t *testing.T) {
	srv := backend(t)
	mb := bus.NewMemoryBus()
	defer mb.Close()

	svc, err := New(testConfig(srv.URL), zap.NewNop(), Options{
		Store:  settings.NewMemoryStore(nil),
		Source: mb,
	})
	require.NoError(t, err)
	defer svc.Close()

	r, err := svc.Reconciler()
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Stop())
}
