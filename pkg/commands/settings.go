package commands

import (
	"github.com/spf13/cobra"

	"tableflip.dev/cachemap/pkg/commands/options"
	"tableflip.dev/cachemap/pkg/runner/settings"
	prefs "tableflip.dev/cachemap/pkg/settings"
)

func addSettings(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "settings [key [value]]",
		Short: "Show or change browser preferences.",
		Example: `
cachemap settings
cachemap settings opacity
cachemap settings opacity 0.4
cachemap settings currentTab canny
`,
		Args:      cobra.MaximumNArgs(2),
		ValidArgs: prefs.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ro.service(false, nil)
			if err != nil {
				return oo.HandleError(cmd.OutOrStdout(), err)
			}
			defer svc.Close()
			s := &settings.Settings{Service: svc, Printer: printer(cmd)}
			if len(args) > 0 {
				s.Key = args[0]
			}
			if len(args) > 1 {
				s.Value = &args[1]
			}
			return oo.HandleError(cmd.OutOrStdout(), s.Do(cmd.Context()))
		},
	}
	options.AddOutputArg(cmd, oo)

	topLevel.AddCommand(cmd)
}
