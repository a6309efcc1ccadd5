package tag

import (
	"context"
	"errors"

	"tableflip.dev/cachemap/pkg/app"
	"tableflip.dev/cachemap/pkg/asset"
	"tableflip.dev/cachemap/pkg/printers"
)

// Tag adds tags to, or removes them from, one asset.
type Tag struct {
	Service  *app.Service
	Printer  *printers.Printer
	Category asset.Category
	Asset    string
	Tags     []string
	Remove   bool
}

func (t *Tag) Do(ctx context.Context) error {
	if err := t.Service.Select(ctx, t.Category, t.Asset); err != nil {
		return err
	}
	s := t.Service.Session
	var errs []error
	for _, tag := range t.Tags {
		var err error
		if t.Remove {
			err = s.RemoveTag(ctx, tag)
		} else {
			err = s.AddTag(ctx, tag)
		}
		errs = append(errs, err)
	}
	set, _ := s.SelectedTags()
	if err := t.Printer.Tags(t.Service.Catalog.Resolve(s.Selected()), set.List()); err != nil {
		return err
	}
	return errors.Join(errs...)
}
