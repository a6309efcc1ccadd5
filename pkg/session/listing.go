package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tableflip.dev/cachemap/pkg/asset"
	"tableflip.dev/cachemap/pkg/metrics"
	"tableflip.dev/cachemap/pkg/reconcile"
	"tableflip.dev/cachemap/pkg/remote"
)

// tagLoadLimit bounds concurrent per-asset tag fetches after a listing.
const tagLoadLimit = 4

// refresh fetches the listing for the current category. A result is
// installed when it is the newest fetch, or when it is the only listing of
// the current category that arrived, so a failed newer fetch cannot leave
// another category's files in place. A requested write-back survives until
// some fetch of the category installs; a linked consumer then receives the
// resolved selection.
func (s *Session) refresh(ctx context.Context, writeBack bool) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrClosed
	}
	s.generation++
	gen, category := s.generation, s.category
	if writeBack {
		s.pendingWriteBack = true
	}
	s.mu.Unlock()

	files, err := s.catalog.List(ctx, category)
	if err != nil {
		s.log.Warn("listing failed", zap.String("category", category.String()), zap.Error(err))
		return fmt.Errorf("session: list %s: %w", category, err)
	}

	s.mu.Lock()
	if !s.installableLocked(gen, category) {
		s.mu.Unlock()
		metrics.StaleListings.Inc()
		s.log.Debug("discarding stale listing", zap.String("category", category.String()), zap.Uint64("generation", gen))
		s.emit(Event{Type: EventListingStale, Category: category.String()})
		return nil
	}
	s.listing = files
	s.listingCategory = category
	writeBack = s.pendingWriteBack
	s.pendingWriteBack = false
	previous := s.selected
	var target Consumer
	if previous != "" {
		s.selected = matchBasename(files, asset.Basename(previous))
		if s.selected != "" && writeBack {
			target = s.consumer
		}
	}
	selected := s.selected
	s.mu.Unlock()

	s.emit(Event{Type: EventListingLoaded, Category: category.String(), Count: len(files)})
	if selected != previous {
		s.emit(Event{Type: EventSelectionChanged, Selected: selected})
	}
	if target != nil {
		s.writeBack(ctx, target, category, selected)
	}
	s.loadTags(ctx, files)
	return nil
}

// installableLocked reports whether a listing fetched for category at gen
// may replace the current one.
func (s *Session) installableLocked(gen uint64, category asset.Category) bool {
	if !s.open || category != s.category {
		return false
	}
	return gen == s.generation || s.listingCategory != category
}

// listingLocked returns the listing when it belongs to the current category.
func (s *Session) listingLocked() []string {
	if s.listingCategory != s.category {
		return nil
	}
	return append([]string(nil), s.listing...)
}

// matchBasename returns the first entry of files sharing basename, or "".
func matchBasename(files []string, basename string) string {
	for _, f := range files {
		if asset.Basename(f) == basename {
			return f
		}
	}
	return ""
}

// loadTags fetches tags for listed assets not yet mirrored. Failures are
// logged by the store and leave the asset untagged.
func (s *Session) loadTags(ctx context.Context, files []string) {
	seen := make(map[string]struct{}, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tagLoadLimit)
	for _, f := range files {
		basename := s.catalog.Resolve(f)
		if _, ok := seen[basename]; ok {
			continue
		}
		seen[basename] = struct{}{}
		g.Go(func() error {
			_, _ = s.tags.LoadTagsFor(gctx, basename)
			return nil
		})
	}
	_ = g.Wait()
}

// writeBack points c at id and loads its preview.
func (s *Session) writeBack(ctx context.Context, c Consumer, category asset.Category, id string) {
	full := asset.Path(category, id)
	c.SetFilename(full)

	if s.previews == nil {
		return
	}
	prefix, name := asset.Split(full)
	req := remote.PreviewRequest{
		StoragePath: s.catalog.StoragePath(),
		Category:    prefix,
		Filename:    name,
		CacheBust:   s.settings.Current().CacheBusting,
	}
	data, err := s.previews.Preview(ctx, req)
	if err != nil {
		s.log.Warn("preview failed", zap.String("asset", full), zap.Error(err))
		return
	}
	if s.Linked() != c {
		return
	}
	c.SetPreview(data)
}

// Reconcile reruns the listing and reloads the tag index. A closed session
// only reloads the index; its listing is refreshed on the next Open.
func (s *Session) Reconcile(ctx context.Context, t reconcile.Trigger) error {
	s.log.Debug("reconcile", zap.String("topic", t.Topic), zap.Bool("deferred", t.Deferred))
	var listErr error
	if err := s.refresh(ctx, false); err != nil && !errors.Is(err, ErrClosed) {
		listErr = err
	}
	if err := s.tags.LoadIndex(ctx); err != nil {
		return err
	}
	return listErr
}
