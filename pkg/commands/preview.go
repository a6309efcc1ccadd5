package commands

import (
	"github.com/spf13/cobra"

	"tableflip.dev/cachemap/pkg/commands/options"
	"tableflip.dev/cachemap/pkg/runner/preview"
)

func addPreview(topLevel *cobra.Command) {
	to := &options.TargetOptions{}
	var output string
	var urlOnly bool
	cmd := &cobra.Command{
		Use:   "preview <asset>",
		Short: "Download an asset image, or print its URL.",
		Example: `
cachemap preview depth/forest.png -f forest.png
cachemap preview --url -c canny forest.png
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := to.ParseCategory("")
			if err != nil {
				return err
			}
			svc, err := ro.service(false, to)
			if err != nil {
				return err
			}
			defer svc.Close()
			p := &preview.Preview{
				Service:  svc,
				Category: category,
				Asset:    args[0],
				Output:   output,
				URLOnly:  urlOnly,
				Out:      cmd.OutOrStdout(),
			}
			return p.Do(cmd.Context())
		},
	}
	options.AddTargetArgs(cmd, to)
	cmd.Flags().StringVarP(&output, "file", "f", "", "Write the image to this file instead of stdout.")
	cmd.Flags().BoolVar(&urlOnly, "url", false, "Print the image URL instead of downloading it.")

	topLevel.AddCommand(cmd)
}
