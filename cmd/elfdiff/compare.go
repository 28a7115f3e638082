package main

import (
	"bytes"

	"elfdiff/asmgraph"

	"github.com/urfave/cli/v2"
)

func compareCommand() *cli.Command {
	return &cli.Command{
		Name:  "compare",
		Usage: "Extract a new graph and match it against a prior graph",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "binary", Usage: "path to the ELF binary to disassemble"},
			&cli.StringFlag{Name: "prior-graph", Usage: "path to a previously extracted graph JSON"},
			&cli.StringFlag{Name: "output", Usage: "path to write the comparison JSON to"},
			&cli.StringFlag{Name: "extracted-output", Usage: "optional path to also write the newly extracted graph"},
			&cli.BoolFlag{Name: "collect-all-sizes", Usage: "switch the matcher to all_sizes mode"},
			&cli.UintFlag{Name: "min-size", Value: asmgraph.DefaultMinSize, Usage: "lower bound on window size"},
			&cli.UintFlag{Name: "size-filter", Usage: "report only matches of exactly this size"},
			&cli.UintFlag{Name: "max-report", Usage: "hard cap on reported matches"},
		},
		// Flags are left optional here so a missing one surfaces through
		// runCompare's own check as exit code 2, rather than urfave/cli's
		// Required-flag error (which isn't a cli.ExitCoder).
		OnUsageError: usageErrorAsExitCode2,
		Action: func(c *cli.Context) error {
			var sizeFilter *uint32
			if c.IsSet("size-filter") {
				v := uint32(c.Uint("size-filter"))
				sizeFilter = &v
			}

			mode := asmgraph.BestSize
			if c.Bool("collect-all-sizes") {
				mode = asmgraph.AllSizes
			}

			maxReport := uint32(c.Uint("max-report"))
			if !c.IsSet("max-report") {
				if mode == asmgraph.AllSizes {
					maxReport = asmgraph.DefaultMaxReportAllSizes
				} else {
					maxReport = asmgraph.DefaultMaxReportBest
				}
			}

			params := asmgraph.MatchParams{
				Mode:       mode,
				MinSize:    uint32(c.Uint("min-size")),
				SizeFilter: sizeFilter,
				MaxReport:  maxReport,
			}

			return runCompare(
				c.String("binary"),
				c.String("prior-graph"),
				c.String("output"),
				c.String("extracted-output"),
				params,
			)
		},
	}
}

func runCompare(binary, priorGraphPath, output, extractedOutput string, params asmgraph.MatchParams) error {
	if binary == "" || priorGraphPath == "" || output == "" {
		return cli.Exit("--binary, --prior-graph, and --output are required", 2)
	}

	if err := checkELFMagic(binary); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	priorGraph, err := asmgraph.LoadGraphFile(priorGraphPath)
	if err != nil {
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
	newGraph := asmgraph.BuildGraph(instrs, binary)

	if extractedOutput != "" {
		if err := asmgraph.WriteGraphFile(extractedOutput, newGraph); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}

	result := asmgraph.Compare(priorGraph, newGraph, params)

	report := asmgraph.ComparisonReport{
		PriorPath:      priorGraphPath,
		PriorNodeCount: priorGraph.NodeCount(),
		NewPath:        binary,
		NewNodeCount:   newGraph.NodeCount(),
		Params:         params,
		Result:         result,
	}
	if err := asmgraph.WriteComparisonFile(output, report); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}
