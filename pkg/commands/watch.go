package commands

import (
	"github.com/spf13/cobra"

	"tableflip.dev/cachemap/pkg/commands/options"
	"tableflip.dev/cachemap/pkg/runner/watch"
)

func addWatch(topLevel *cobra.Command) {
	to := &options.TargetOptions{}
	var node, metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep a browsing session open and print its events.",
		Long: `Keep a browsing session open, following server pushes, until interrupted.

With --node the session links to a consumer node file: its cache path and
filename seed the session, and edits to the file are followed.`,
		Example: `
cachemap watch --node ./nodes/apply-depth.json
cachemap watch -c canny --metrics :9090
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
			w := &watch.Watch{
				Service:     svc,
				Printer:     printer(cmd),
				Category:    category,
				Node:        node,
				MetricsAddr: metricsAddr,
			}
			return oo.HandleError(cmd.OutOrStdout(), w.Do(cmd.Context()))
		},
	}
	options.AddTargetArgs(cmd, to)
	options.AddOutputArg(cmd, oo)
	cmd.Flags().StringVar(&node, "node", "", "Consumer node file to link.")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "Serve Prometheus metrics on this address.")

	topLevel.AddCommand(cmd)
}
