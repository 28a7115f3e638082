package asmgraph

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Instruction is a single decoded line from a disassembly listing.
type Instruction struct {
	Address  uint64
	Mnemonic string
	Operands string
}

// addrPattern matches the address column of an objdump-style instruction
// line: "<hex digits>:" at the start of the line. ParseDisassembly trims
// leading whitespace before matching.
var addrPattern = regexp.MustCompile(`^([0-9a-fA-F]{1,16}):(.*)$`)

// hexLiteralPattern finds the first hex literal in an operand string,
// preferring an explicit "0x..." token over a bare hex run, per the first
// alternative that matches at the leftmost position.
var hexLiteralPattern = regexp.MustCompile(`(?i)0x[0-9a-f]+|[0-9a-f]{4,}`)

// labelPattern recognizes a lone "<symbol>:" line, which is not an
// instruction line and must be ignored.
var labelPattern = regexp.MustCompile(`^<[^>]+>:$`)

// ParseDisassembly tokenizes the raw textual output of an external
// disassembler into a linear sequence of instruction records. Lines that
// aren't instruction lines (section headers, symbol labels, blank lines)
// are ignored. A line that looks instruction-like but fails to yield a
// valid address is skipped silently. Producing zero instructions is not an
// error.
func ParseDisassembly(r io.Reader) ([]Instruction, error) {
	var out []Instruction

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || labelPattern.MatchString(line) {
			continue
		}

		instr, ok := parseLine(line)
		if !ok {
			continue
		}
		out = append(out, instr)
	}
	if err := scanner.Err(); err != nil {
		return nil, &InputError{Msg: "reading disassembly", Err: err}
	}
	return out, nil
}

// parseLine attempts to decode a single instruction line. It returns
// ok=false for anything that isn't an instruction line, or whose address
// column fails to parse as hex.
func parseLine(line string) (Instruction, bool) {
	m := addrPattern.FindStringSubmatch(line)
	if m == nil {
		return Instruction{}, false
	}

	addr, err := strconv.ParseUint(m[1], 16, 64)
	if err != nil {
		return Instruction{}, false
	}

	rest := stripComment(m[2])
	mnemonic, operands, ok := splitColumns(rest)
	if !ok {
		return Instruction{}, false
	}

	return Instruction{Address: addr, Mnemonic: mnemonic, Operands: operands}, true
}

// stripComment removes any trailing "# ..." comment some disassemblers
// append after the operands.
func stripComment(s string) string {
	if idx := strings.IndexByte(s, '#'); idx >= 0 {
		s = s[:idx]
	}
	return s
}

// splitColumns consumes the raw byte-listing column (if present) and
// splits what remains into mnemonic and operand text. The byte column is a
// run of space-separated two-hex-digit tokens terminated by a tab or by
// two-or-more consecutive spaces; some disassemblers omit it entirely, in
// which case the mnemonic follows directly.
func splitColumns(rest string) (mnemonic, operands string, ok bool) {
	if idx := strings.LastIndexByte(rest, '\t'); idx >= 0 {
		// A line with a byte-listing column is tab-separated on both
		// sides of it ("addr:\tBYTES\tmnemonic..."); the last tab is the
		// one that precedes the mnemonic, whether or not a byte column
		// is actually present before it.
		body := rest[idx+1:]
		return tokenizeRemainder(body)
	}

	i := skipByteColumn(rest)
	return tokenizeRemainder(rest[i:])
}

// skipByteColumn scans a leading run of two-hex-digit tokens separated by
// single spaces, stopping at the first gap of two-or-more spaces. It
// returns the index at which the byte column ends (and the mnemonic
// column, possibly still padded by whitespace, begins). If no such run is
// found, it returns the index just past any leading spaces, so the rest of
// the string is re-examined as mnemonic text.
func skipByteColumn(rest string) int {
	n := len(rest)
	i := 0
	for i < n && rest[i] == ' ' {
		i++
	}
	start := i
	lastTokenEnd := i
	for i < n {
		j := i
		for j < n && isHexDigit(rest[j]) {
			j++
		}
		if j-i != 2 {
			break
		}
		lastTokenEnd = j
		i = j
		sp := i
		for sp < n && rest[sp] == ' ' {
			sp++
		}
		gap := sp - i
		if gap >= 2 {
			return sp
		}
		if gap == 0 {
			// Byte token runs straight into the next token: not a
			// well-formed byte column, bail out and treat the whole
			// thing as mnemonic text.
			return start
		}
		i = sp
	}
	if lastTokenEnd == start {
		return start
	}
	return lastTokenEnd
}

func tokenizeRemainder(s string) (mnemonic, operands string, ok bool) {
	s = strings.TrimLeft(s, " \t")
	if s == "" {
		return "", "", false
	}
	sp := strings.IndexAny(s, " \t")
	if sp < 0 {
		return s, "", true
	}
	return s[:sp], strings.TrimSpace(s[sp:]), true
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// isConditionalBranch implements the sole mnemonic predicate that turns an
// instruction into a graph node: begins with 'j' but isn't exactly "jmp",
// or is one of the loop-conditional mnemonics. Case-insensitive.
func isConditionalBranch(mnemonic string) bool {
	m := strings.ToLower(mnemonic)
	if m == "jmp" {
		return false
	}
	if strings.HasPrefix(m, "j") {
		return true
	}
	switch m {
	case "loop", "loope", "loopne", "loopz", "loopnz":
		return true
	}
	return false
}

// firstHexLiteral extracts the first hex literal token from operand text,
// accepting an explicit "0x..." form or a bare hex run of four-or-more
// digits. Returns ok=false if none is present or it fails to parse.
func firstHexLiteral(operands string) (uint64, bool) {
	tok := hexLiteralPattern.FindString(operands)
	if tok == "" {
		return 0, false
	}
	tok = strings.TrimPrefix(strings.TrimPrefix(tok, "0x"), "0X")
	v, err := strconv.ParseUint(tok, 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
