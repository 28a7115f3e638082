package main

import (
	"bytes"
	"fmt"
	"os/exec"

	"elfdiff/asmgraph"
)

// disassembleBinary shells out to the system disassembler and returns its
// stdout as the byte source the parser consumes. A non-zero exit, or
// empty output against a non-empty binary, is a Disassembly failure per
// §7 — the external tool's stderr is surfaced verbatim.
func disassembleBinary(path string) ([]byte, error) {
	cmd := exec.Command("objdump", "-d", path)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		return nil, &asmgraph.DisassemblyError{
			Msg:    fmt.Sprintf("objdump -d %s failed", path),
			Stderr: stderr.String(),
			Err:    runErr,
		}
	}
	if stdout.Len() == 0 {
		return nil, &asmgraph.DisassemblyError{
			Msg:    fmt.Sprintf("objdump produced no output for %s", path),
			Stderr: stderr.String(),
		}
	}
	return stdout.Bytes(), nil
}
