package asmgraph

import "testing"

// buildLinearGraph constructs a graph of n nodes at addresses 0..n-1 with
// the given jmp edges (src -> dst, both local indices).
func buildLinearGraph(n int, jmp map[uint32]uint32) *Graph {
	nodes := make([]Node, n)
	for i := 0; i < n; i++ {
		nodes[i] = Node{Index: uint32(i), Address: uint64(i)}
	}
	return NewGraph("t", nodes, jmp)
}

func TestFingerprintInternalEdge(t *testing.T) {
	g := buildLinearGraph(6, map[uint32]uint32{2: 4})
	fp := Fingerprint(g, 1, 4) // window [1,5): local 1 has edge to local 3
	want := Fingerprint(g, 1, 4)
	if fp != want {
		t.Fatalf("fingerprint not stable across calls")
	}
	if fp == "" {
		t.Fatalf("expected non-empty fingerprint for a window containing a jmp edge")
	}
}

func TestFingerprintEquatesRelocatedGraphs(t *testing.T) {
	a := buildLinearGraph(6, map[uint32]uint32{1: 3, 4: 0})
	nodes := make([]Node, 6)
	for i := 0; i < 6; i++ {
		nodes[i] = Node{Index: uint32(i), Address: uint64(i) + 0x10000}
	}
	b := NewGraph("t2", nodes, map[uint32]uint32{1: 3, 4: 0})

	for start := uint32(0); start+3 <= 6; start++ {
		if Fingerprint(a, start, 3) != Fingerprint(b, start, 3) {
			t.Errorf("fingerprint at (%d,3) differs after relocation", start)
		}
	}
}

func TestFingerprintDistinguishesInternalVsExternal(t *testing.T) {
	// Graph A: node 0 jumps to node 2 (internal to window [0,3)).
	a := buildLinearGraph(5, map[uint32]uint32{0: 2})
	// Graph B: node 0 jumps to node 4 (external, out_after, for window [0,3)).
	b := buildLinearGraph(5, map[uint32]uint32{0: 4})

	if Fingerprint(a, 0, 3) == Fingerprint(b, 0, 3) {
		t.Fatalf("expected different fingerprints for internal vs external jump")
	}
}

func TestFingerprintOutBeforeVsOutAfter(t *testing.T) {
	// Window [2,5): a jump to index 0 is out_before, a jump to index 6 is out_after.
	a := buildLinearGraph(7, map[uint32]uint32{2: 0})
	b := buildLinearGraph(7, map[uint32]uint32{2: 6})

	if Fingerprint(a, 2, 3) == Fingerprint(b, 2, 3) {
		t.Fatalf("expected out_before and out_after to produce different fingerprints")
	}
}

func TestFingerprintNoEdgeContributesNothing(t *testing.T) {
	a := buildLinearGraph(4, nil)
	fp := Fingerprint(a, 0, 4)
	if fp != "" {
		t.Fatalf("expected empty fingerprint for a window with no jmp edges, got %q", fp)
	}
}

func TestFingerprintCachePerGraph(t *testing.T) {
	g := buildLinearGraph(4, map[uint32]uint32{0: 1})
	fp1 := Fingerprint(g, 0, 2)
	if _, ok := g.fpCache[windowKey{0, 2}]; !ok {
		t.Fatalf("expected fingerprint to be cached")
	}
	fp2 := Fingerprint(g, 0, 2)
	if fp1 != fp2 {
		t.Fatalf("cached fingerprint differs from freshly computed one")
	}
}
