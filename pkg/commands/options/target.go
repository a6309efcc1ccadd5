package options

import (
	"fmt"

	"github.com/spf13/cobra"

	"tableflip.dev/cachemap/pkg/asset"
)

// TargetOptions pick the category and storage path a command works on.
type TargetOptions struct {
	Category    string
	StoragePath string
	All         bool
}

func AddTargetArgs(cmd *cobra.Command, o *TargetOptions) {
	cmd.Flags().StringVarP(&o.Category, "category", "c", "",
		`Category tab, one of original, depth, canny, pose, segmentation, lineart, openpose, scribble or softedge.`)
	cmd.Flags().StringVar(&o.StoragePath, "storage", "",
		`Storage path to browse. Defaults to the configured storage_path.`)
}

// ParseCategory returns the chosen category, or fallback when unset.
func (o *TargetOptions) ParseCategory(fallback asset.Category) (asset.Category, error) {
	if o.Category == "" {
		return fallback, nil
	}
	c, ok := asset.ParseCategory(o.Category)
	if !ok {
		return "", fmt.Errorf("unknown category %q", o.Category)
	}
	return c, nil
}
