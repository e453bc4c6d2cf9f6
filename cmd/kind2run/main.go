// kind2run runs the Kind 2 model checker and follows its verdicts live.
//
// Usage:
//
//	kind2run run model.lus
//	kind2run run --format json --timeout 60 model.lus
//	kind2 -xml -v model.lus | kind2run parse
//	kind2run history
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dkoosis/kind2run/internal/cli"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(stderr, "kind2run: %v\n", err)
	}
	return cli.GetExitCode(err)
}
