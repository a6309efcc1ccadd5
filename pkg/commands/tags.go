package commands

import (
	"github.com/spf13/cobra"

	"tableflip.dev/cachemap/pkg/commands/options"
	"tableflip.dev/cachemap/pkg/runner/autotag"
	"tableflip.dev/cachemap/pkg/runner/tag"
	"tableflip.dev/cachemap/pkg/runner/tags"
)

func addTags(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "tags [asset]",
		Short: "Print the tag index, or the tags of one asset.",
		Example: `
cachemap tags
cachemap tags depth/forest.png
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ro.service(false, nil)
			if err != nil {
				return oo.HandleError(cmd.OutOrStdout(), err)
			}
			defer svc.Close()
			t := &tags.Tags{Service: svc, Printer: printer(cmd)}
			if len(args) == 1 {
				t.Basename = args[0]
			}
			return oo.HandleError(cmd.OutOrStdout(), t.Do(cmd.Context()))
		},
	}
	options.AddOutputArg(cmd, oo)

	topLevel.AddCommand(cmd)
}

func addTag(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Add or remove tags on an asset.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(tagCommand("add", "Tag an asset.", false))
	cmd.AddCommand(tagCommand("rm", "Untag an asset.", true))

	topLevel.AddCommand(cmd)
}

func tagCommand(use, short string, remove bool) *cobra.Command {
	to := &options.TargetOptions{}
	cmd := &cobra.Command{
		Use:   use + " <asset> <tag>...",
		Short: short,
		Example: `
cachemap tag ` + use + ` -c depth forest.png night
`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := to.ParseCategory("")
			if err != nil {
				return err
			}
			svc, err := ro.service(false, to)
			if err != nil {
				return oo.HandleError(cmd.OutOrStdout(), err)
			}
			defer svc.Close()
			t := &tag.Tag{
				Service:  svc,
				Printer:  printer(cmd),
				Category: category,
				Asset:    args[0],
				Tags:     args[1:],
				Remove:   remove,
			}
			return oo.HandleError(cmd.OutOrStdout(), t.Do(cmd.Context()))
		},
	}
	options.AddTargetArgs(cmd, to)
	options.AddOutputArg(cmd, oo)
	return cmd
}

func addAutoTag(topLevel *cobra.Command) {
	to := &options.TargetOptions{}
	cmd := &cobra.Command{
		Use:   "autotag <asset>",
		Short: "Ask the server to generate tags for an asset.",
		Example: `
cachemap autotag -c pose dancer.png
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := to.ParseCategory("")
			if err != nil {
				return err
			}
			svc, err := ro.service(false, to)
			if err != nil {
				return oo.HandleError(cmd.OutOrStdout(), err)
			}
			defer svc.Close()
			a := &autotag.AutoTag{Service: svc, Printer: printer(cmd), Category: category, Asset: args[0]}
			return oo.HandleError(cmd.OutOrStdout(), a.Do(cmd.Context()))
		},
	}
	options.AddTargetArgs(cmd, to)
	options.AddOutputArg(cmd, oo)

	topLevel.AddCommand(cmd)
}
