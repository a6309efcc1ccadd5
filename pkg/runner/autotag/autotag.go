package autotag

import (
	"context"

	"tableflip.dev/cachemap/pkg/app"
	"tableflip.dev/cachemap/pkg/asset"
	"tableflip.dev/cachemap/pkg/printers"
)

// AutoTag asks the backend to tag one asset and prints its answer.
type AutoTag struct {
	Service  *app.Service
	Printer  *printers.Printer
	Category asset.Category
	Asset    string
}

func (a *AutoTag) Do(ctx context.Context) error {
	if err := a.Service.Select(ctx, a.Category, a.Asset); err != nil {
		return err
	}
	raw, err := a.Service.Session.AutoTag(ctx)
	if err != nil {
		return err
	}
	return a.Printer.Raw(raw)
}
