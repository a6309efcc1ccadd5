package preview

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"tableflip.dev/cachemap/pkg/app"
	"tableflip.dev/cachemap/pkg/asset"
	"tableflip.dev/cachemap/pkg/remote"
)

// Preview downloads an asset image, or prints its URL.
type Preview struct {
	Service  *app.Service
	Category asset.Category
	Asset    string
	// Output is the destination file. Empty writes to stdout.
	Output  string
	URLOnly bool

	Out io.Writer
}

func (p *Preview) Do(ctx context.Context) error {
	out := p.Out
	if out == nil {
		out = color.Output
	}
	category, name := asset.Split(p.Asset)
	if category == "" {
		category = p.Category
	}
	if category == "" {
		if c, ok := asset.ParseCategory(p.Service.Settings.Current().CurrentTab); ok {
			category = c
		}
	}
	req := remote.PreviewRequest{
		StoragePath: p.Service.Catalog.StoragePath(),
		Category:    category,
		Filename:    name,
		CacheBust:   p.Service.Settings.Current().CacheBusting,
	}
	if p.URLOnly {
		_, err := fmt.Fprintln(out, p.Service.Client.PreviewURL(req))
		return err
	}
	data, err := p.Service.Client.Preview(ctx, req)
	if err != nil {
		return err
	}
	if p.Output == "" {
		_, err = out.Write(data)
		return err
	}
	return os.WriteFile(p.Output, data, 0o644)
}
