package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/reconcile/common/logging"
	"github.com/telhawk-systems/reconcile/internal/config"
)

// Version is overridden at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// app carries what the persistent pre-run resolves for every subcommand.
type app struct {
	cfgFile   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *logging.Logger
}

// NewRootCommand builds the reconcile command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile intake and outcome event logs",
		Long: `reconcile pairs each entity's intake events with its outcome events.

It retrieves the intake and outcome datasets, normalizes their timestamps,
pairs the Nth intake of every entity with its Nth outcome, and derives ages
and lengths of stay from the joined rows.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./config.yaml or /etc/reconcile/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: json, text")

	root.AddCommand(newRunCommand(a))
	root.AddCommand(newCorrelateCommand(a))
	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Logging.Format = a.logFormat
	}

	a.cfg = cfg
	a.logger = logging.NewWithWriter(cmd.ErrOrStderr(), logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(a.logger)
	return nil
}
