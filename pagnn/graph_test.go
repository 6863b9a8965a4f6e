package pagnn

import (
	"math/rand"
	"strings"
	"testing"
)

// TestGeneratorsAreSymmetric verifies undirected structures give symmetric masks without self loops
func TestGeneratorsAreSymmetric(t *testing.T) {
	const n = 12
	gens := []Generator{Complete{}, ErdosRenyi{P: 0.4}, Ring{K: 4}, Ring{K: 4, Beta: 0.3}}
	for _, gen := range gens {
		mask, err := Adjacency(gen, n, rand.New(rand.NewSource(3)))
		if err != nil {
			t.Fatalf("%s: %v", gen.Name(), err)
		}
		for i := 0; i < n; i++ {
			if mask[i*n+i] {
				t.Errorf("%s: self loop at %d", gen.Name(), i)
			}
			for j := 0; j < n; j++ {
				if mask[i*n+j] != mask[j*n+i] {
					t.Errorf("%s: asymmetric edge %d-%d", gen.Name(), i, j)
				}
			}
		}
	}
}

// TestRingDegree verifies an unrewired lattice links every neuron to K neighbours
func TestRingDegree(t *testing.T) {
	const n = 10
	mask, err := Adjacency(Ring{K: 4}, n, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		degree := 0
		for j := 0; j < n; j++ {
			if mask[i*n+j] {
				degree++
			}
		}
		if degree != 4 {
			t.Errorf("Neuron %d has degree %d, expected 4", i, degree)
		}
	}
}

// TestDenseGeneratorHasNoMask verifies the default keeps self loops
func TestDenseGeneratorHasNoMask(t *testing.T) {
	mask, err := Adjacency(Dense{}, 5, rand.New(rand.NewSource(1)))
	if err != nil || mask != nil {
		t.Errorf("Expected nil mask, got %v (err %v)", mask, err)
	}
}

// TestParseGenerator verifies config names
func TestParseGenerator(t *testing.T) {
	for name, want := range map[string]string{"": "dense", "complete": "complete", "erdos_renyi": "erdos_renyi(p=0.5)", "ring": "ring(k=2, beta=0.5)"} {
		gen, err := ParseGenerator(name, 0.5, 2)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if gen.Name() != want {
			t.Errorf("%q: expected %s, got %s", name, want, gen.Name())
		}
	}
	if _, err := ParseGenerator("hypercube", 0, 0); err == nil {
		t.Error("Expected error for unknown generator")
	}
}

// TestGraphExport verifies live edges and DOT output
func TestGraphExport(t *testing.T) {
	l := newTestLayer(t, Config{Inputs: 1, Outputs: 1, Steps: 1})
	copy(l.Weight.Data, []float32{0.5, -2, 0, 0})

	g := l.Graph()
	if g.Nodes().Len() != 2 {
		t.Errorf("Expected 2 nodes, got %d", g.Nodes().Len())
	}
	if !g.HasEdgeFromTo(0, 1) || g.HasEdgeFromTo(1, 0) {
		t.Error("Expected a single edge 0 -> 1")
	}
	if w, ok := g.Weight(0, 1); !ok || w != -2 {
		t.Errorf("Expected weight -2, got %f", w)
	}
	if loops := l.SelfLoops(); len(loops) != 1 || loops[0] != 0.5 {
		t.Errorf("Unexpected self loops %v", loops)
	}

	b, err := l.DOT("pagnn")
	if err != nil {
		t.Fatal(err)
	}
	out := string(b)
	if !strings.Contains(out, "digraph pagnn") || !strings.Contains(out, "0 -> 1") {
		t.Errorf("Unexpected DOT output:\n%s", out)
	}
}

// TestConnectionReversed verifies a reversed edge swaps endpoints and keeps its weight
func TestConnectionReversed(t *testing.T) {
	c := connection{from: neuron{id: 0, role: "input"}, to: neuron{id: 2, role: "output"}, weight: -2}
	r := c.ReversedEdge().(connection)
	if r.From().ID() != 2 || r.To().ID() != 0 || r.Weight() != -2 {
		t.Errorf("Expected 2 -> 0 with weight -2, got %d -> %d with %f", r.From().ID(), r.To().ID(), r.Weight())
	}
}
