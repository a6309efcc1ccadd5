package tags

import (
	"context"

	"tableflip.dev/cachemap/pkg/app"
	"tableflip.dev/cachemap/pkg/printers"
)

// Tags prints the tag index, or one asset's tags when Basename is set.
type Tags struct {
	Service  *app.Service
	Printer  *printers.Printer
	Basename string
}

func (t *Tags) Do(ctx context.Context) error {
	store := t.Service.Tags
	if t.Basename == "" {
		if err := store.LoadIndex(ctx); err != nil {
			return err
		}
		return t.Printer.TagIndex(store.Index().Sorted())
	}
	basename := t.Service.Catalog.Resolve(t.Basename)
	set, err := store.LoadTagsFor(ctx, basename)
	if err != nil {
		return err
	}
	return t.Printer.Tags(basename, set.List())
}
