package asmgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// GraphMeta, GraphNode, GraphEdges, and GraphFile mirror
// the wire schema of §6.2 exactly: a tagged record with a fixed field set.
type GraphMeta struct {
	Binary    string `json:"binary"`
	NodeCount int    `json:"node_count"`
}

type GraphNode struct {
	Index         uint32  `json:"index"`
	Address       string  `json:"address"`
	TargetAddress *string `json:"target_address"`
}

type GraphEdges struct {
	Seq [][2]uint32 `json:"seq"`
	Jmp [][2]uint32 `json:"jmp"`
}

type GraphFile struct {
	Meta  GraphMeta   `json:"meta"`
	Nodes []GraphNode `json:"nodes"`
	Edges GraphEdges  `json:"edges"`
}

// EncodeGraph produces the JSON-shaped graph file record for g, per §6.2.
// seq edges are always emitted, per the schema's "MUST be emitted on
// write" clause.
func EncodeGraph(g *Graph) GraphFile {
	nodes := make([]GraphNode, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nj := GraphNode{Index: n.Index, Address: hexAddr(n.Address)}
		if n.HasTarget {
			s := hexAddr(n.TargetAddress)
			nj.TargetAddress = &s
		}
		nodes = append(nodes, nj)
	}

	seq := g.SeqEdges()
	seqPairs := make([][2]uint32, 0, len(seq))
	for _, e := range seq {
		seqPairs = append(seqPairs, [2]uint32{e.From, e.To})
	}

	srcs := make([]uint32, 0, len(g.JumpEdges))
	for src := range g.JumpEdges {
		srcs = append(srcs, src)
	}
	sort.Slice(srcs, func(i, j int) bool { return srcs[i] < srcs[j] })
	jmpPairs := make([][2]uint32, 0, len(srcs))
	for _, src := range srcs {
		jmpPairs = append(jmpPairs, [2]uint32{src, g.JumpEdges[src]})
	}

	return GraphFile{
		Meta:  GraphMeta{Binary: g.BinaryPath, NodeCount: len(g.Nodes)},
		Nodes: nodes,
		Edges: GraphEdges{Seq: seqPairs, Jmp: jmpPairs},
	}
}

// DecodeGraph converts a decoded graph file record back into a Graph. seq
// is ignored if present (it's reconstructible from node_count) and is
// never required on read, per §6.2.
func DecodeGraph(gf GraphFile) (*Graph, error) {
	nodes := make([]Node, 0, len(gf.Nodes))
	seen := make(map[uint64]bool, len(gf.Nodes))
	for i, nj := range gf.Nodes {
		if nj.Index != uint32(i) {
			return nil, &SchemaError{Field: "nodes[].index", Msg: "node indices must be contiguous and in order"}
		}
		addr, err := parseHexAddr(nj.Address)
		if err != nil {
			return nil, &SchemaError{Field: "nodes[].address", Msg: err.Error()}
		}
		if seen[addr] {
			return nil, &SchemaError{Field: "nodes[].address", Msg: "duplicate node address"}
		}
		seen[addr] = true

		n := Node{Index: nj.Index, Address: addr}
		if nj.TargetAddress != nil {
			t, err := parseHexAddr(*nj.TargetAddress)
			if err != nil {
				return nil, &SchemaError{Field: "nodes[].target_address", Msg: err.Error()}
			}
			n.TargetAddress = t
			n.HasTarget = true
		}
		nodes = append(nodes, n)
	}

	jumpEdges := make(map[uint32]uint32, len(gf.Edges.Jmp))
	for _, pair := range gf.Edges.Jmp {
		src, dst := pair[0], pair[1]
		if int(src) >= len(nodes) || int(dst) >= len(nodes) {
			return nil, &SchemaError{Field: "edges.jmp", Msg: "edge endpoint out of range"}
		}
		jumpEdges[src] = dst
	}

	if gf.Meta.NodeCount != len(nodes) {
		return nil, &SchemaError{Field: "meta.node_count", Msg: "does not match number of nodes"}
	}

	return NewGraph(gf.Meta.Binary, nodes, jumpEdges), nil
}

// LoadGraphFile reads and validates a serialized graph from path,
// rejecting unknown fields per the Design Notes' "reject unknown fields"
// guidance for a statically-typed target.
func LoadGraphFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &InputError{Msg: "opening prior graph", Err: err}
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()

	var gf GraphFile
	if err := dec.Decode(&gf); err != nil {
		return nil, &SchemaError{Field: "<root>", Msg: err.Error()}
	}
	return DecodeGraph(gf)
}

// WriteGraphFile serializes g and writes it atomically to path (temp file
// plus rename), so a crash mid-write leaves either the prior file or
// nothing.
func WriteGraphFile(path string, g *Graph) error {
	return writeJSONAtomic(path, EncodeGraph(g))
}

// ComparisonParams, ComparisonGraphRef, Match, and
// ComparisonFile mirror §6.3's wire schema.
type ComparisonParams struct {
	Mode       string  `json:"mode"`
	MinSize    uint32  `json:"min_size"`
	SizeFilter *uint32 `json:"size_filter"`
	MaxReport  uint32  `json:"max_report"`
}

type ComparisonGraphRef struct {
	Path      string `json:"path"`
	NodeCount int    `json:"node_count"`
}

type Match struct {
	PriorStart uint32 `json:"prior_start"`
	NewStart   uint32 `json:"new_start"`
	Size       uint32 `json:"size"`
}

type ComparisonBody struct {
	BestMatchSize           uint32  `json:"best_match_size"`
	FitRatioAgainstMinNodes float64 `json:"fit_ratio_against_min_nodes"`
	MatchCountReported      uint32  `json:"match_count_reported"`
	Matches                 []Match `json:"matches"`
}

type ComparisonFile struct {
	PriorGraph ComparisonGraphRef `json:"prior_graph"`
	NewGraph   ComparisonGraphRef `json:"new_graph"`
	Params     ComparisonParams   `json:"params"`
	Comparison ComparisonBody     `json:"comparison"`
}

// ComparisonReport bundles the inputs and parameters alongside the
// Comparison result, enough to fully populate §6.3's schema.
type ComparisonReport struct {
	PriorPath      string
	PriorNodeCount int
	NewPath        string
	NewNodeCount   int
	Params         MatchParams
	Result         Comparison
}

// WriteComparisonFile serializes report and writes it atomically to path.
func WriteComparisonFile(path string, report ComparisonReport) error {
	mode := "best_size"
	if report.Params.Mode == AllSizes {
		mode = "all_sizes"
	}
	minSize := report.Params.MinSize
	if minSize == 0 {
		minSize = DefaultMinSize
	}
	maxReport := report.Params.MaxReport
	if maxReport == 0 {
		if report.Params.Mode == AllSizes {
			maxReport = DefaultMaxReportAllSizes
		} else {
			maxReport = DefaultMaxReportBest
		}
	}

	matches := make([]Match, 0, len(report.Result.Matches))
	for _, m := range report.Result.Matches {
		matches = append(matches, Match{PriorStart: m.PriorStart, NewStart: m.NewStart, Size: m.Size})
	}

	cf := ComparisonFile{
		PriorGraph: ComparisonGraphRef{Path: report.PriorPath, NodeCount: report.PriorNodeCount},
		NewGraph:   ComparisonGraphRef{Path: report.NewPath, NodeCount: report.NewNodeCount},
		Params: ComparisonParams{
			Mode:       mode,
			MinSize:    minSize,
			SizeFilter: report.Params.SizeFilter,
			MaxReport:  maxReport,
		},
		Comparison: ComparisonBody{
			BestMatchSize:           report.Result.BestMatchSize,
			FitRatioAgainstMinNodes: roundTo4Decimals(report.Result.FitRatioAgainstMinNodes),
			MatchCountReported:      report.Result.MatchCountReported,
			Matches:                 matches,
		},
	}

	return writeJSONAtomic(path, cf)
}

func roundTo4Decimals(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func hexAddr(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

func parseHexAddr(s string) (uint64, error) {
	rest := strings.TrimPrefix(s, "0x")
	if rest == s || rest == "" {
		return 0, fmt.Errorf("not a 0x-prefixed hex address: %q", s)
	}
	v, err := strconv.ParseUint(rest, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("not a valid hex address: %q", s)
	}
	return v, nil
}

func writeJSONAtomic(path string, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".elfdiff-*.tmp")
	if err != nil {
		return &InputError{Msg: "creating temp file for atomic write", Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return &InputError{Msg: "writing report", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &InputError{Msg: "closing report", Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &InputError{Msg: "renaming report into place", Err: err}
	}
	return nil
}
