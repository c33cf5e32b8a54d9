// Command pheval-phen2gene runs Phen2Gene as a PhEval benchmark tool.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/pheval-phen2gene/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pheval-phen2gene:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
