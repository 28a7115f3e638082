package main

import (
	"bytes"

	"elfdiff/asmgraph"

	"github.com/urfave/cli/v2"
)

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Extract the conditional-branch graph from a binary",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "binary", Usage: "path to the ELF binary to disassemble"},
			&cli.StringFlag{Name: "output", Usage: "path to write the graph JSON to"},
		},
		// Flags are left optional here so a missing one surfaces through
		// runExtract's own check as exit code 2, rather than urfave/cli's
		// Required-flag error (which isn't a cli.ExitCoder).
		OnUsageError: usageErrorAsExitCode2,
		Action: func(c *cli.Context) error {
			return runExtract(c.String("binary"), c.String("output"))
		},
	}
}

func runExtract(binary, output string) error {
	if binary == "" || output == "" {
		return cli.Exit("--binary and --output are required", 2)
	}

	if err := checkELFMagic(binary); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	raw, err := disassembleBinary(binary)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	instrs, err := asmgraph.ParseDisassembly(bytes.NewReader(raw))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	g := asmgraph.BuildGraph(instrs, binary)
	if err := asmgraph.WriteGraphFile(output, g); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}
