// Package cli implements the kind2run command line.
package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dkoosis/kind2run/internal/config"
)

// RootOptions holds global flags and the state resolved from them.
type RootOptions struct {
	Flags config.CliFlags
	// Lookup controls where config files and environment come from.
	Lookup config.Options

	Config *config.Resolved
	Logger *slog.Logger
}

// NewRootCommand creates the root command for the kind2run CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kind2run",
		Short: "Run the Kind 2 model checker and follow its verdicts live",
		Long: `kind2run spawns the Kind 2 model checker in XML mode, follows its
output while it runs and reports every property as it is proved, falsified
or left unknown.

Example:
  kind2run run model.lus
  kind2run run --timeout 60 --format json model.lus
  kind2 -xml model.lus > out.xml && kind2run parse out.xml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	f := &opts.Flags
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.ConfigFile, "config", "", "path to a config file (default: ./"+config.FileName+")")
	pf.StringVar(&f.Theme, "theme", config.DefaultTheme, "color theme (default|orca|mono)")
	pf.StringVar(&f.Format, "format", config.DefaultFormat, "output format (auto|terminal|plain|json)")
	pf.BoolVar(&f.NoColor, "no-color", false, "disable colors")
	pf.BoolVar(&f.Debug, "debug", false, "debug logging on stderr")
	pf.StringVar(&f.HistoryDB, "history-db", "", "path to the run history database")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewParseCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// resolve records which flags the user set, resolves the configuration and
// builds the logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	changed := cmd.Flags().Changed
	o.Flags.BinarySet = changed("binary")
	o.Flags.TimeoutSet = changed("timeout")
	o.Flags.ThemeSet = changed("theme")
	o.Flags.FormatSet = changed("format")
	o.Flags.NoColorSet = changed("no-color")
	o.Flags.DebugSet = changed("debug")
	o.Flags.HistoryDBSet = changed("history-db")
	o.Flags.MetricsAddrSet = changed("metrics-addr")

	cfg, err := config.Resolve(o.Flags, o.Lookup)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.Config = cfg
	o.Logger = newLogger(cmd.ErrOrStderr(), cfg.Debug)

	if cfg.Debug {
		o.Logger.Debug("configuration resolved", "file", cfg.File, "sources", cfg.Sources)
	}
	return nil
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
