package list

import (
	"context"
	"strings"

	"tableflip.dev/cachemap/pkg/app"
	"tableflip.dev/cachemap/pkg/asset"
	"tableflip.dev/cachemap/pkg/printers"
	"tableflip.dev/cachemap/pkg/session"
)

// List prints the assets of one category, narrowed by tag filters and a
// search query, or of every category when All is set.
type List struct {
	Service  *app.Service
	Printer  *printers.Printer
	Category asset.Category
	Filters  []string
	Query    string
	All      bool
}

func (l *List) Do(ctx context.Context) error {
	if l.All {
		files := l.Service.Catalog.ListAll(ctx)
		return l.Printer.Assets("all categories", l.Service.Rows(files))
	}

	if err := l.Service.Browse(ctx, l.Category); err != nil {
		return err
	}
	for _, f := range l.Filters {
		if err := l.Service.Session.ApplyFilter(ctx, f, session.FilterToggle); err != nil {
			return err
		}
	}
	if q := strings.TrimSpace(l.Query); q != "" {
		l.Service.Session.SetSearchQuery(q)
	}
	st := l.Service.Session.State()
	return l.Printer.Assets(st.Category.String(), l.Service.Rows(l.Service.Session.View()))
}
