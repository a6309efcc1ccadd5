package commands

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	base "github.com/n3wscott/cli-base/pkg/commands/options"

	"tableflip.dev/cachemap/pkg/app"
	"tableflip.dev/cachemap/pkg/commands/options"
	"tableflip.dev/cachemap/pkg/config"
	"tableflip.dev/cachemap/pkg/printers"
	"tableflip.dev/cachemap/pkg/prompt"
)

var (
	oo = &options.OutputOptions{}
	ro = &rootOptions{}
)

type rootOptions struct {
	Verbose bool

	cfg *config.Config
	log *zap.Logger
}

func New() *cobra.Command {

	cmd := &cobra.Command{
		Use:   "cachemap",
		Short: base.Wrap80("Browse, tag and prune the control-map cache of an image generation server."),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ro.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if ro.log != nil {
				_ = ro.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().BoolVarP(&ro.Verbose, "verbose", "v", false, "Log debug output to stderr.")

	AddCommands(cmd)
	return cmd
}

func AddCommands(topLevel *cobra.Command) {
	addList(topLevel)
	addTags(topLevel)
	addTag(topLevel)
	addAutoTag(topLevel)
	addRemove(topLevel)
	addPreview(topLevel)
	addSettings(topLevel)
	addWatch(topLevel)
	addVersion(topLevel)
}

func (r *rootOptions) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	r.cfg = cfg

	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if r.Verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	log, err := zc.Build()
	if err != nil {
		return err
	}
	r.log = log
	return nil
}

// service wires the app for one command run. yes skips delete
// confirmations.
func (r *rootOptions) service(yes bool, to *options.TargetOptions) (*app.Service, error) {
	svc, err := app.New(r.cfg, r.log, app.Options{
		Prompter: prompt.New(yes, r.log),
	})
	if err != nil {
		return nil, err
	}
	if to != nil && to.StoragePath != "" {
		svc.Catalog.SetStoragePath(to.StoragePath)
	}
	return svc, nil
}

// printer writes to color.Output unless the command output was redirected.
func printer(cmd *cobra.Command) *printers.Printer {
	p := oo.Printer()
	if w := cmd.OutOrStdout(); w != os.Stdout {
		p.Out = w
	}
	return p
}
