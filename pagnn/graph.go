package pagnn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// Generator draws the connection structure of a layer over n neurons.
// A nil graph from Build means all pairs are connected, self loops included.
type Generator interface {
	Name() string
	Build(n int, rng *rand.Rand) (graph.Graph, error)
}

// Dense connects every neuron to every neuron, itself included
type Dense struct{}

func (Dense) Name() string { return "dense" }

func (Dense) Build(int, *rand.Rand) (graph.Graph, error) { return nil, nil }

// Complete connects every pair of distinct neurons
type Complete struct{}

func (Complete) Name() string { return "complete" }

func (Complete) Build(n int, _ *rand.Rand) (graph.Graph, error) {
	g := newUndirected(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			g.SetEdge(g.NewEdge(simple.Node(i), simple.Node(j)))
		}
	}
	return g, nil
}

// ErdosRenyi connects each pair of distinct neurons with probability P
type ErdosRenyi struct {
	P float64
}

func (e ErdosRenyi) Name() string { return fmt.Sprintf("erdos_renyi(p=%g)", e.P) }

func (e ErdosRenyi) Build(n int, rng *rand.Rand) (graph.Graph, error) {
	if e.P < 0 || e.P > 1 {
		return nil, errors.Errorf("edge probability %g outside [0, 1]", e.P)
	}
	g := newUndirected(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rng.Float64() < e.P {
				g.SetEdge(g.NewEdge(simple.Node(i), simple.Node(j)))
			}
		}
	}
	return g, nil
}

// Ring is a Watts-Strogatz lattice: each neuron links to its K nearest ring neighbours,
// then each lattice edge is rewired to a random endpoint with probability Beta.
type Ring struct {
	K    int
	Beta float64
}

func (r Ring) Name() string { return fmt.Sprintf("ring(k=%d, beta=%g)", r.K, r.Beta) }

func (r Ring) Build(n int, rng *rand.Rand) (graph.Graph, error) {
	if r.K <= 0 || r.K >= n {
		return nil, errors.Errorf("ring degree %d must be in (0, %d)", r.K, n)
	}
	g := newUndirected(n)
	half := r.K / 2
	if half == 0 {
		half = 1
	}
	for i := 0; i < n; i++ {
		for d := 1; d <= half; d++ {
			j := (i + d) % n
			if r.Beta > 0 && rng.Float64() < r.Beta {
				// rewire to a neuron that is neither i nor already linked
				for tries := 0; tries < n; tries++ {
					c := rng.Intn(n)
					if c != i && !g.HasEdgeBetween(int64(i), int64(c)) {
						j = c
						break
					}
				}
			}
			if j != i {
				g.SetEdge(g.NewEdge(simple.Node(i), simple.Node(j)))
			}
		}
	}
	return g, nil
}

func newUndirected(n int) *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	return g
}

// Adjacency builds the generator's graph and flattens it to an [n*n] mask.
// A nil mask means fully connected.
func Adjacency(gen Generator, n int, rng *rand.Rand) ([]bool, error) {
	g, err := gen.Build(n, rng)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, nil
	}

	mask := make([]bool, n*n)
	for i := 0; i < n; i++ {
		to := g.From(int64(i))
		for to.Next() {
			j := to.Node().ID()
			if j < 0 || int(j) >= n {
				return nil, errors.Errorf("neuron id %d outside [0, %d)", j, n)
			}
			mask[i*n+int(j)] = true
		}
	}
	return mask, nil
}

// ParseGenerator maps a config string to a generator: dense, complete, erdos_renyi, ring
func ParseGenerator(name string, p float64, k int) (Generator, error) {
	switch name {
	case "", "dense":
		return Dense{}, nil
	case "complete":
		return Complete{}, nil
	case "erdos_renyi", "random":
		return ErdosRenyi{P: p}, nil
	case "ring", "watts_strogatz":
		return Ring{K: k, Beta: p}, nil
	}
	return nil, errors.Errorf("unknown graph generator %q", name)
}

type neuron struct {
	id   int64
	role string
}

func (n neuron) ID() int64 { return n.id }

func (n neuron) Attributes() []encoding.Attribute {
	color := map[string]string{"input": "lightgreen", "output": "lightblue", "extra": "gray"}[n.role]
	return []encoding.Attribute{
		{Key: "label", Value: fmt.Sprintf("%q", fmt.Sprintf("%s %d", n.role, n.id))},
		{Key: "color", Value: color},
	}
}

type connection struct {
	from, to neuron
	weight   float64
}

func (c connection) From() graph.Node { return c.from }
func (c connection) To() graph.Node   { return c.to }
func (c connection) Weight() float64  { return c.weight }

func (c connection) ReversedEdge() graph.Edge {
	return connection{from: c.to, to: c.from, weight: c.weight}
}

func (c connection) Attributes() []encoding.Attribute {
	return []encoding.Attribute{
		{Key: "weight", Value: fmt.Sprintf("%.4f", c.weight)},
		{Key: "penwidth", Value: fmt.Sprintf("%.2f", 0.5+2*math.Min(math.Abs(c.weight), 1))},
	}
}

// Graph returns the live connections between distinct neurons as a weighted directed graph.
// Self loops are reported by SelfLoops since simple graphs cannot hold them.
func (l *Layer) Graph() *simple.WeightedDirectedGraph {
	g := simple.NewWeightedDirectedGraph(0, 0)
	nodes := make([]neuron, l.N)
	for i := range nodes {
		nodes[i] = neuron{id: int64(i), role: l.Role(i)}
		g.AddNode(nodes[i])
	}

	n := l.N
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			idx := i*n + j
			w := l.Weight.Data[idx]
			if i == j || !l.Weight.Active(idx) || w == 0 {
				continue
			}
			g.SetWeightedEdge(connection{from: nodes[i], to: nodes[j], weight: float64(w)})
		}
	}
	return g
}

// SelfLoops returns the live diagonal weights keyed by neuron index
func (l *Layer) SelfLoops() map[int]float32 {
	loops := make(map[int]float32)
	for i := 0; i < l.N; i++ {
		idx := i*l.N + i
		if l.Weight.Active(idx) && l.Weight.Data[idx] != 0 {
			loops[i] = l.Weight.Data[idx]
		}
	}
	return loops
}

// DOT renders the live connections in Graphviz format
func (l *Layer) DOT(name string) ([]byte, error) {
	b, err := dot.Marshal(l.Graph(), name, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "pagnn: marshal dot")
	}
	return b, nil
}
