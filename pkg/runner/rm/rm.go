package rm

import (
	"context"
	"sync"

	"tableflip.dev/cachemap/pkg/app"
	"tableflip.dev/cachemap/pkg/asset"
	"tableflip.dev/cachemap/pkg/printers"
	"tableflip.dev/cachemap/pkg/remote"
	"tableflip.dev/cachemap/pkg/tags"
)

// Remove deletes one asset from its category, or from every category when
// All is set.
type Remove struct {
	Service  *app.Service
	Printer  *printers.Printer
	Category asset.Category
	Asset    string
	All      bool
}

func (r *Remove) Do(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	res := remote.DeleteResult{}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		events := r.Service.Tags.Events()
		record := func(ev tags.Event) {
			if ev.Type == tags.EventAssetDeleted {
				res = remote.DeleteResult{Success: true, Deleted: ev.Deleted}
			}
		}
		for {
			select {
			case ev := <-events:
				record(ev)
			case <-ctx.Done():
				for {
					select {
					case ev := <-events:
						record(ev)
					default:
						return
					}
				}
			}
		}
	}()
	err := r.do(ctx)
	cancel()
	wg.Wait()
	if err != nil {
		return err
	}
	return r.Printer.Deleted(r.Service.Catalog.Resolve(r.Asset), res)
}

func (r *Remove) do(ctx context.Context) error {
	if err := r.Service.Select(ctx, r.Category, r.Asset); err != nil {
		return err
	}
	return r.Service.Session.DeleteAsset(ctx, r.All)
}
