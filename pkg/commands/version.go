package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	goversion "go.hein.dev/go-version"

	"tableflip.dev/cachemap/pkg/commands/options"
	"tableflip.dev/cachemap/pkg/printers"
)

// Build metadata, stamped with -ldflags "-X tableflip.dev/cachemap/pkg/commands.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func addVersion(topLevel *cobra.Command) {
	short := false
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the cachemap build.",
		Example: `
cachemap version
cachemap version --short
cachemap version -o yaml
`,
		Args: cobra.NoArgs,
		// The build is known without a config file or a server.
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := printer(cmd)
			if short || p.Format != printers.FormatTable {
				_, err := fmt.Fprint(p.Out, goversion.FuncWithOutput(short, Version, Commit, Date, string(p.Format)))
				return err
			}
			return p.Build(printers.BuildInfo{
				Version:  Version,
				Commit:   Commit,
				Date:     Date,
				Go:       runtime.Version(),
				Platform: runtime.GOOS + "/" + runtime.GOARCH,
			})
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print just the version number.")
	options.AddOutputArg(cmd, oo)

	topLevel.AddCommand(cmd)
}
