package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dkoosis/kind2run/pkg/render"
	"github.com/dkoosis/kind2run/pkg/result"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	Hide []string
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Replay captured Kind 2 XML output",
		Long: `Feed a saved Kind 2 XML stream through the same pipeline a live run
uses and print the resulting verdicts. Reads stdin when no file is given
or the file is "-".

Example:
  kind2 -xml -v model.lus > out.xml
  kind2run parse out.xml
  kind2run parse --format json < out.xml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := "-"
			if len(args) == 1 {
				file = args[0]
			}
			return runParse(cmd, opts, file)
		},
	}
	cmd.Flags().StringSliceVar(&opts.Hide, "hide", nil, "glob of property names to leave out of the output (repeatable)")
	return cmd
}

func runParse(cmd *cobra.Command, opts *ParseOptions, file string) error {
	var in io.Reader = cmd.InOrStdin()
	name := "stdin"
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return WrapExitError(ExitCommandError, "cannot read input", err)
		}
		defer f.Close()
		in, name = f, filepath.Base(file)
	}

	out := cmd.OutOrStdout()
	width, _ := termSize(out)
	r, err := render.ByName(resolveFormat(opts.Config.Format, out), theme(opts.Config), width)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid format", err)
	}

	res := result.New(name)
	if err := res.Running(); err != nil {
		return err
	}
	consumeErr := result.NewAggregator(res, opts.Logger).Consume(cmd.Context(), in)
	_ = res.Done()

	snap := view{Result: res, rename: hider(opts.Hide)}.Snapshot()
	if err := copyTo(out, r, snap); err != nil {
		return WrapExitError(ExitFailure, "writing output", err)
	}
	if consumeErr != nil {
		return WrapExitError(ExitCommandError, "invalid analyzer output", consumeErr)
	}
	return verdict(snap, nil)
}
