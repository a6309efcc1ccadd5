package commands

import (
	"github.com/spf13/cobra"

	"tableflip.dev/cachemap/pkg/commands/options"
	"tableflip.dev/cachemap/pkg/runner/rm"
)

func addRemove(topLevel *cobra.Command) {
	to := &options.TargetOptions{}
	co := &options.ConfirmOptions{}
	cmd := &cobra.Command{
		Use:   "rm <asset>",
		Short: "Delete an asset from its category, or from every category.",
		Example: `
cachemap rm -c depth forest.png
cachemap rm --all -y forest
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := to.ParseCategory("")
			if err != nil {
				return err
			}
			svc, err := ro.service(co.Yes, to)
			if err != nil {
				return oo.HandleError(cmd.OutOrStdout(), err)
			}
			defer svc.Close()
			r := &rm.Remove{
				Service:  svc,
				Printer:  printer(cmd),
				Category: category,
				Asset:    args[0],
				All:      to.All,
			}
			return oo.HandleError(cmd.OutOrStdout(), r.Do(cmd.Context()))
		},
	}
	options.AddTargetArgs(cmd, to)
	options.AddConfirmArgs(cmd, co)
	options.AddOutputArg(cmd, oo)
	cmd.Flags().BoolVar(&to.All, "all", false, "Delete the asset from every category.")

	topLevel.AddCommand(cmd)
}
