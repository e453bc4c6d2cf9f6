package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dkoosis/kind2run/internal/history"
	"github.com/dkoosis/kind2run/internal/metrics"
	"github.com/dkoosis/kind2run/pkg/live"
	"github.com/dkoosis/kind2run/pkg/outcome"
	"github.com/dkoosis/kind2run/pkg/render"
	"github.com/dkoosis/kind2run/pkg/result"
	"github.com/dkoosis/kind2run/pkg/supervisor"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	NoHistory bool
	Follow    bool
	Hide      []string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Analyze a Lustre file with Kind 2",
		Long: `Spawn Kind 2 on a Lustre file and report each property as soon as the
analyzer settles it.

On a terminal the run is shown as a live view; press ctrl+c to stop the
analyzer, q to leave once it has finished. With --follow, or when output is
not a terminal, properties are printed as they resolve or once at the end.

The exit code is 0 when no property was falsified, 1 when one was or the
analyzer failed, and 130 when the run was interrupted.

Example:
  kind2run run model.lus
  kind2run run --timeout 30 --hide 'sub.*' model.lus
  kind2run run --binary ./kind2 --format json model.lus > verdicts.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(cmd, opts, args[0])
		},
	}

	f := &opts.Flags
	cmd.Flags().StringVar(&f.Binary, "binary", "", "Kind 2 executable (default: kind2 on PATH)")
	cmd.Flags().Float64Var(&f.Timeout, "timeout", 0, "analyzer timeout in seconds (0: none)")
	cmd.Flags().StringVar(&f.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "do not record the run in the history database")
	cmd.Flags().BoolVar(&opts.Follow, "follow", false, "print properties as they resolve instead of the live view")
	cmd.Flags().StringSliceVar(&opts.Hide, "hide", nil, "glob of property names to leave out of the output (repeatable)")

	return cmd
}

func runAnalysis(cmd *cobra.Command, opts *RunOptions, file string) error {
	if _, err := os.Stat(file); err != nil {
		return WrapExitError(ExitCommandError, "cannot read input", err)
	}
	cfg, log := opts.Config, opts.Logger
	out := cmd.OutOrStdout()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var obs observers
	if cfg.MetricsAddr != "" {
		m := metrics.New()
		addr, err := m.Serve(ctx, cfg.MetricsAddr, log)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to serve metrics", err)
		}
		log.Info("serving metrics", "addr", addr.String())
		obs = append(obs, m)
	}
	if !opts.NoHistory {
		store, err := history.Open(cfg.HistoryDB, log)
		if err != nil {
			log.Warn("history disabled", "error", err)
		} else {
			defer func() {
				if err := store.Close(); err != nil {
					log.Error("error closing history database", "error", err)
				}
			}()
			obs = append(obs, store)
		}
	}

	res := result.New(filepath.Base(file))
	src := view{Result: res, rename: hider(opts.Hide)}
	format := resolveFormat(cfg.Format, out)
	tty := isTTYWriter(out)

	sup := &supervisor.Supervisor{
		PollInterval: cfg.PollInterval,
		KillTimeout:  cfg.KillTimeout,
		Logger:       log,
		Observer:     obs,
	}
	argv := cfg.Argv(file)
	log.Debug("starting analyzer", "argv", argv)

	var runErr error
	switch {
	case format == "terminal" && tty && !opts.Follow:
		// The full-screen view owns the terminal; keep stderr quiet.
		if !cfg.Debug {
			sup.Logger = slog.New(slog.DiscardHandler)
		}
		runErr = runLive(ctx, sup, res, src, argv, theme(cfg))
	case format == "terminal" && tty:
		width, height := termSize(out)
		runErr = runFollow(ctx, sup, res, src, argv, render.NewFollower(out, theme(cfg), width, height))
	default:
		width, _ := termSize(out)
		r, err := render.ByName(format, theme(cfg), width)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid format", err)
		}
		runErr = sup.Run(ctx, res, argv)
		if err := copyTo(out, r, src.Snapshot()); err != nil {
			return WrapExitError(ExitFailure, "writing output", err)
		}
	}
	return verdict(src.Snapshot(), runErr)
}

func runLive(ctx context.Context, sup *supervisor.Supervisor, res *result.Result, src live.Source, argv []string, th render.Theme) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- sup.Run(runCtx, res, argv) }()

	if _, err := live.Run(ctx, src, live.Options{Theme: th, Cancel: cancel}); err != nil {
		cancel()
		<-errCh
		return err
	}
	return <-errCh
}

func runFollow(ctx context.Context, sup *supervisor.Supervisor, res *result.Result, src view, argv []string, f *render.Follower) error {
	changes, unsubscribe := res.Subscribe()
	defer unsubscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-changes:
				f.Update(src.Snapshot())
			case <-res.Finished():
				return
			}
		}
	}()

	err := sup.Run(ctx, res, argv)
	<-done
	f.Finish(src.Snapshot())
	return err
}

// verdict maps a finished run to the command's error, and so its exit code.
func verdict(snap result.Snapshot, runErr error) error {
	if snap.State == result.StateCanceled {
		return NewExitError(ExitCanceled, "run canceled")
	}
	if runErr != nil {
		return WrapExitError(ExitFailure, "analysis failed", runErr)
	}
	counts := snap.Counts()
	if n := counts[outcome.StatusFalsified] + counts[outcome.StatusInconsistent]; n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d properties falsified or inconsistent", n, len(snap.Properties)))
	}
	return nil
}

// copyTo writes the rendered snapshot for non-interactive outputs.
func copyTo(w io.Writer, r render.Renderer, snap result.Snapshot) error {
	_, err := io.WriteString(w, r.Render(snap))
	return err
}
