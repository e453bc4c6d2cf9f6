package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dkoosis/kind2run/internal/history"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runHistory(cmd, opts, id)
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of runs to list (0: all)")
	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions, id string) error {
	store, err := history.Open(opts.Config.HistoryDB, opts.Logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	asJSON := opts.Config.Format == "json"
	ctx := cmd.Context()

	if id == "" {
		runs, err := store.List(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to list runs", err)
		}
		if asJSON {
			return writeJSON(out, runs)
		}
		writeRuns(out, runs)
		return nil
	}

	run, props, err := store.Get(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load run", err)
	}
	if asJSON {
		return writeJSON(out, struct {
			history.Run
			Properties []history.Property
		}{run, props})
	}
	writeRuns(out, []history.Run{run})
	for _, p := range props {
		line := "  " + runewidth.FillRight(p.Status, len("INCONSISTENT")) + "  " + p.Name
		if p.Source != "" {
			line += "  source=" + p.Source
		}
		fmt.Fprintf(out, "%s  k=%d  runtime=%.3fs\n", line, p.K, p.Runtime)
	}
	return nil
}

func writeRuns(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no recorded runs")
		return
	}
	nameWidth := len("NAME")
	for _, r := range runs {
		nameWidth = max(nameWidth, runewidth.StringWidth(r.Name))
	}
	fmt.Fprintf(w, "%-36s  %-19s  %s  %-8s  %4s  %s\n",
		"ID", "STARTED", runewidth.FillRight("NAME", nameWidth), "STATE", "EXIT", "PROPERTIES")
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-19s  %s  %-8s  %4d  %s\n",
			r.ID, r.Started.Local().Format("2006-01-02 15:04:05"),
			runewidth.FillRight(r.Name, nameWidth), r.State, r.ExitCode, tally(r.Counts))
	}
}

// tally renders status counts as "2 valid, 1 falsified" in a stable order.
func tally(counts map[string]int) string {
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	parts := make([]string, 0, len(statuses))
	for _, s := range statuses {
		parts = append(parts, fmt.Sprintf("%d %s", counts[s], strings.ToLower(s)))
	}
	return strings.Join(parts, ", ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
