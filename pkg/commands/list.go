package commands

import (
	"github.com/spf13/cobra"

	"tableflip.dev/cachemap/pkg/commands/options"
	"tableflip.dev/cachemap/pkg/runner/list"
)

func addList(topLevel *cobra.Command) {
	to := &options.TargetOptions{}
	var filters []string
	var query string
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List the assets of a category with their tags.",
		Example: `
cachemap ls
cachemap ls -c canny --tag night --tag rain
cachemap ls --all -o yaml
`,
		Args: cobra.NoArgs,
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
			l := &list.List{
				Service:  svc,
				Printer:  printer(cmd),
				Category: category,
				Filters:  filters,
				Query:    query,
				All:      to.All,
			}
			return oo.HandleError(cmd.OutOrStdout(), l.Do(cmd.Context()))
		},
	}
	options.AddTargetArgs(cmd, to)
	options.AddOutputArg(cmd, oo)
	cmd.Flags().BoolVar(&to.All, "all", false, "List every category, prefixing each file with its category.")
	cmd.Flags().StringSliceVarP(&filters, "tag", "t", nil, "Only show assets carrying this tag. Repeat to require several.")
	cmd.Flags().StringVarP(&query, "search", "s", "", "Only show assets whose name or tags contain this text.")

	topLevel.AddCommand(cmd)
}
