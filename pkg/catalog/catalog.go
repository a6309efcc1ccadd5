// Package catalog lists cached map files per category.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tableflip.dev/cachemap/pkg/asset"
)

// Lister is the backend listing call.
type Lister interface {
	ListFiles(ctx context.Context, storagePath string, category asset.Category) ([]string, error)
}

// Catalog resolves listings for the bound storage path.
type Catalog struct {
	lister Lister
	log    *zap.Logger

	mu          sync.RWMutex
	storagePath string
}

// New creates a Catalog. A nil logger discards output.
func New(lister Lister, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{lister: lister, log: log.Named("catalog")}
}

// SetStoragePath binds the catalog to a cache directory. Empty unbinds it.
func (c *Catalog) SetStoragePath(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storagePath = strings.TrimSpace(p)
}

// StoragePath returns the bound cache directory, or "".
func (c *Catalog) StoragePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.storagePath
}

// ListCategory lists one category under the bound storage path, in backend
// order. Non-image entries are dropped.
func (c *Catalog) ListCategory(ctx context.Context, category asset.Category) ([]string, error) {
	files, err := c.lister.ListFiles(ctx, c.StoragePath(), category)
	if err != nil {
		return nil, fmt.Errorf("catalog: list %s: %w", category, err)
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		if asset.IsImage(f) {
			out = append(out, f)
		}
	}
	return out, nil
}

// ListAll lists every category concurrently and concatenates the results in
// category order, each entry prefixed with its category. A category that
// fails to list is logged and skipped.
func (c *Catalog) ListAll(ctx context.Context) []string {
	categories := asset.Categories()
	results := make([][]string, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, category := range categories {
		g.Go(func() error {
			files, err := c.ListCategory(gctx, category)
			if err != nil {
				c.log.Warn("category listing failed", zap.String("category", category.String()), zap.Error(err))
				return nil
			}
			prefixed := make([]string, 0, len(files))
			for _, f := range files {
				prefixed = append(prefixed, asset.Path(category, f))
			}
			results[i] = prefixed
			return nil
		})
	}
	_ = g.Wait()

	var out []string
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// List lists category when a storage path is bound and every category
// otherwise.
func (c *Catalog) List(ctx context.Context, category asset.Category) ([]string, error) {
	if c.StoragePath() == "" {
		return c.ListAll(ctx), nil
	}
	return c.ListCategory(ctx, category)
}

// Resolve returns the canonical basename of an identifier.
func (c *Catalog) Resolve(id string) string {
	return asset.Basename(id)
}
