// Command seoforge researches keywords and generates SEO articles, one at a
// time or in batches driven by a project plan.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run executes the root command and maps its outcome to an exit code.
// Cancellation exits non-zero without printing.
func run(args []string, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	err := cmd.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 1
	default:
		fmt.Fprintf(stderr, "seoforge: %v\n", err)
		return 1
	}
}
