// Command ubi runs and inspects a trust-gated basic income ledger.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/ubi/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(cli.GetExitCode(err))
}
