// Command uow plans and executes unit-of-work scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/uow/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "uow:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
