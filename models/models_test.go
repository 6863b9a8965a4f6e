package models

import (
	"math"
	"math/rand"
	"testing"

	"github.com/openfluke/pagnn/nn"
)

// checkGradients compares accumulated gradients with central differences of <output, upstream>
func checkGradients(t *testing.T, m nn.Model, in nn.Input, upstream []float32) {
	t.Helper()
	loss := func() float64 {
		out := m.Forward(in)
		var s float64
		for i, v := range out {
			s += float64(v * upstream[i])
		}
		return s
	}

	nn.ZeroGrads(m.Params())
	m.Forward(in)
	m.Backward(upstream)

	const eps = 1e-3
	for _, p := range m.Params() {
		if p.Frozen {
			continue
		}
		for i := range p.Data {
			orig := p.Data[i]
			p.Data[i] = orig + eps
			plus := loss()
			p.Data[i] = orig - eps
			minus := loss()
			p.Data[i] = orig

			numeric := (plus - minus) / (2 * eps)
			if diff := math.Abs(numeric - float64(p.Grad[i])); diff > 2e-2*math.Max(1, math.Abs(numeric)) {
				t.Errorf("%s[%d]: analytic %f, numeric %f", p.Name, i, p.Grad[i], numeric)
			}
		}
	}
}

// TestFFNNGradients verifies backprop through both dense layers
func TestFFNNGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(666))
	m := NewFFNN(4, 4, 3, rng)
	checkGradients(t, m, nn.Vector([]float32{0.5, -0.3, 0.8, 0.1}), []float32{1, -0.5, 0.25})

	if got := m.String(); got != "FFNN(4, 4, 3, #p=35)" {
		t.Errorf("Unexpected name %q", got)
	}
}

// TestLSTMGradients verifies BPTT through the read-out of the last hidden state
func TestLSTMGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(666))
	m := NewLSTM(1, 3, 1, rng)
	checkGradients(t, m, nn.Scalars([]float32{0.1, -0.4, 0.7, 0.2}), []float32{1})

	out := m.Forward(nn.Scalars([]float32{0.1, 0.2}))
	if len(out) != 1 {
		t.Errorf("Expected a single prediction, got %d", len(out))
	}
}

// TestLSTMParamCount verifies the forecaster size used in legends
func TestLSTMParamCount(t *testing.T) {
	m := NewLSTM(1, 100, 1, rand.New(rand.NewSource(1)))
	// 4 gates * (in*h + h*h + h) + h + 1
	want := 4*(100+100*100+100) + 101
	if got := CountParams(m); got != want {
		t.Errorf("Expected %d params, got %d", want, got)
	}
}

func testVectors(vocab, dim int, rng *rand.Rand) [][]float32 {
	vectors := make([][]float32, vocab)
	for i := range vectors {
		vectors[i] = make([]float32, dim)
		for j := range vectors[i] {
			vectors[i][j] = float32(rng.NormFloat64() * 0.5)
		}
	}
	return vectors
}

// TestCNNGradients verifies conv, pooling and the classifier head
func TestCNNGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(666))
	m, err := NewCNNTextClassifier(testVectors(6, 4, rng), 5, 3, 2, []int{1, 2, 3}, rng)
	if err != nil {
		t.Fatal(err)
	}
	checkGradients(t, m, nn.TokenIDs([]int{0, 3, 2, 5, 5}), []float32{0.3, -1, 0.6})
}

// TestCNNProbabilities verifies the softmax head sums to one and backpropagates through the softmax
func TestCNNProbabilities(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m, err := NewCNNTextClassifier(testVectors(6, 4, rng), 5, 3, 2, []int{1, 2}, rng)
	if err != nil {
		t.Fatal(err)
	}
	in := nn.TokenIDs([]int{1, 4, 2})
	logits := m.Forward(in)

	m.Probabilities = true
	probs := m.Forward(in)
	var sum float32
	for _, p := range probs {
		sum += p
	}
	if math.Abs(float64(sum-1)) > 1e-5 {
		t.Errorf("Expected probabilities summing to 1, got %f", sum)
	}
	if nn.Argmax(probs) != nn.Argmax(logits) {
		t.Errorf("Expected the same prediction, got %v for logits %v", probs, logits)
	}
	checkGradients(t, m, in, []float32{0.3, -1, 0.6})
}

// TestCNNShapesAndFrozenEmbedding verifies logits size and that the table never moves
func TestCNNShapesAndFrozenEmbedding(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	vectors := testVectors(8, 5, rng)
	m, err := NewCNNTextClassifier(vectors, 7, 3, 10, nil, rng)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Convs) != 4 {
		t.Errorf("Expected 4 default windows, got %d", len(m.Convs))
	}

	before := append([]float32(nil), m.Embedding.Weight.Data...)
	out := m.Forward(nn.TokenIDs([]int{1, 2}))
	if len(out) != 3 {
		t.Fatalf("Expected 3 logits, got %d", len(out))
	}
	m.Backward([]float32{1, 1, 1})
	nn.NewAdamOptimizerDefault().Step(m.Params(), 0.1)
	for i, v := range m.Embedding.Weight.Data {
		if v != before[i] {
			t.Fatalf("Frozen embedding moved at %d", i)
		}
	}
	for j := 0; j < 5; j++ {
		if m.Embedding.Weight.Data[7*5+j] != 0 {
			t.Errorf("Padding row should be zero")
		}
	}

	// parameters: embedding 8*5 + convs 10*5*(1+2+3+5) + 4*10 biases + fc 40*3+3
	want := 40 + 10*5*11 + 40 + 123
	if got := CountParams(m); got != want {
		t.Errorf("Expected %d params, got %d", want, got)
	}

	if out := m.Forward(nn.TokenIDs(nil)); len(out) != 3 {
		t.Errorf("Expected logits for an empty sentence")
	}
}

// TestPadded verifies the wrapped model sees fixed-length inputs
func TestPadded(t *testing.T) {
	if got := PadTokens([]int{3, 4}, 4, 0); got[0] != 3 || got[1] != 4 || got[2] != 0 || got[3] != 0 {
		t.Errorf("Unexpected padding %v", got)
	}
	if got := PadTokens([]int{1, 2, 3}, 2, 9); len(got) != 2 || got[1] != 2 {
		t.Errorf("Unexpected truncation %v", got)
	}

	vectors := [][]float32{{0, 0}, {1, 0}, {0, 1}}
	cnn, err := NewCNNTextClassifier(vectors, 0, 3, 2, []int{1, 2}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	padded := &Padded{Model: cnn, Length: 5, PadIdx: 0}
	short := padded.Forward(nn.TokenIDs([]int{1, 2}))
	full := cnn.Forward(nn.TokenIDs([]int{1, 2, 0, 0, 0}))
	if nn.MaxAbsDiff(short, full) != 0 {
		t.Errorf("Padded forward %v differs from explicit padding %v", short, full)
	}
	checkGradients(t, padded, nn.TokenIDs([]int{2, 1, 1}), []float32{0.3, -0.2, 0.5})
}
