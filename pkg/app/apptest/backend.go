// Package apptest serves an in-memory cache backend for tests.
package apptest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"tableflip.dev/cachemap/pkg/app"
	"tableflip.dev/cachemap/pkg/asset"
	"tableflip.dev/cachemap/pkg/config"
	"tableflip.dev/cachemap/pkg/remote"
	"tableflip.dev/cachemap/pkg/session"
	"tableflip.dev/cachemap/pkg/settings"
)

// Backend holds files per category and tags per basename.
type Backend struct {
	Server *httptest.Server

	mu    sync.Mutex
	files map[string][]string
	tags  map[string][]string
	// Refuse makes delete requests report this failure.
	Refuse string
}

// NewBackend starts a backend closed with t.
func NewBackend(t *testing.T, files map[string][]string) *Backend {
	t.Helper()
	b := &Backend{files: files, tags: map[string][]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/eros/cache/fetch_files", b.fetchFiles)
	mux.HandleFunc("/eros/tags/list", b.list)
	mux.HandleFunc("/eros/tags/for_image", b.forImage)
	mux.HandleFunc("/eros/tags/add_to_image", b.mutate(true))
	mux.HandleFunc("/eros/tags/remove_from_image", b.mutate(false))
	mux.HandleFunc("/eros/tags/auto_tag", b.autoTag)
	mux.HandleFunc("/eros/cache/delete_map", b.deleteMap)
	mux.HandleFunc("/eros/cache/view_image", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("png:" + r.URL.Query().Get("subfolder") + "/" + r.URL.Query().Get("filename")))
	})
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)
	return b
}

// SetTags replaces the tags of basename.
func (b *Backend) SetTags(basename string, tags ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tags[basename] = tags
}

// Tags returns the stored tags of basename.
func (b *Backend) Tags(basename string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.tags[basename]...)
}

// Files returns the files of category.
func (b *Backend) Files(category string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.files[category]...)
}

// Service wires an app.Service against b with in-memory settings and no bus.
func (b *Backend) Service(t *testing.T, prompter session.Prompter) *app.Service {
	t.Helper()
	svc, err := app.New(&config.Config{
		Server:      b.Server.URL,
		StoragePath: "/cache",
		Bus:         config.BusNone,
		RetryDelay:  10 * time.Millisecond,
		Debounce:    time.Millisecond,
	}, zap.NewNop(), app.Options{Prompter: prompter, Store: settings.NewMemoryStore(nil)})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func write(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Backend) fetchFiles(w http.ResponseWriter, r *http.Request) {
	write(w, map[string]any{"files": b.Files(r.URL.Query().Get("subfolder"))})
}

func (b *Backend) list(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	counts := map[string]int{}
	for _, list := range b.tags {
		for _, t := range list {
			counts[t]++
		}
	}
	b.mu.Unlock()
	out := make([]remote.TagCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, remote.TagCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	write(w, map[string]any{"tags": out})
}

func (b *Backend) forImage(w http.ResponseWriter, r *http.Request) {
	write(w, map[string]any{"tags": b.Tags(r.URL.Query().Get("path"))})
}

func (b *Backend) mutate(add bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Path string `json:"path"`
			Tag  string `json:"tag"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		list := b.tags[body.Path]
		idx := -1
		for i, t := range list {
			if strings.EqualFold(t, body.Tag) {
				idx = i
			}
		}
		switch {
		case add && idx < 0:
			b.tags[body.Path] = append(list, body.Tag)
		case !add && idx >= 0:
			b.tags[body.Path] = append(list[:idx:idx], list[idx+1:]...)
		}
		b.mu.Unlock()
		write(w, map[string]bool{"success": true})
	}
}

func (b *Backend) autoTag(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	b.tags[body.Path] = append(b.tags[body.Path], "auto")
	b.mu.Unlock()
	write(w, map[string]any{"success": true, "tags": []string{"auto"}})
}

func (b *Backend) deleteMap(w http.ResponseWriter, r *http.Request) {
	var req remote.DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Refuse != "" {
		write(w, remote.DeleteResult{Error: b.Refuse})
		return
	}
	var deleted []string
	for category, files := range b.files {
		if !req.DeleteAll && category != req.Subfolder {
			continue
		}
		kept := files[:0:0]
		for _, f := range files {
			if asset.Basename(f) == req.Basename {
				deleted = append(deleted, category+"/"+f)
				continue
			}
			kept = append(kept, f)
		}
		b.files[category] = kept
	}
	delete(b.tags, req.Basename)
	sort.Strings(deleted)
	write(w, remote.DeleteResult{Success: true, Deleted: deleted})
}
