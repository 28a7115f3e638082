// Command elfdiff derives conditional-branch graphs from ELF binaries and
// matches them against a prior graph to find the largest shared
// structural subgraph, for malware-triage style comparison.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// usageErrorAsExitCode2 maps a flag-parse failure (an unparseable
// --min-size, an unknown flag, and the like) to the argument-error exit
// code, so it reaches main's ExitCoder handling instead of the generic
// non-zero fallback.
func usageErrorAsExitCode2(c *cli.Context, err error, isSubcommand bool) error {
	return cli.Exit(err.Error(), 2)
}

func main() {
	app := cli.NewApp()
	app.Name = "elfdiff"
	app.Usage = "Structural fingerprinting of ELF executables by conditional-branch graph"
	app.Action = func(c *cli.Context) error {
		cli.ShowAppHelp(c)
		return nil
	}
	app.OnUsageError = usageErrorAsExitCode2
	app.Commands = []*cli.Command{
		extractCommand(),
		compareCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		if ee, ok := err.(cli.ExitCoder); ok {
			fmt.Fprintln(os.Stderr, ee.Error())
			os.Exit(ee.ExitCode())
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
