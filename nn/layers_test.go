package nn

import (
	"math"
	"math/rand"
	"testing"
)

// checkLayer compares accumulated gradients with central differences of <forward(), upstream>
func checkLayer(t *testing.T, name string, forward func() []float32, backward func([]float32), params []*Param, upstream []float32) {
	t.Helper()
	objective := func() float64 {
		var s float64
		for i, v := range forward() {
			s += float64(v) * float64(upstream[i])
		}
		return s
	}

	ZeroGrads(params)
	forward()
	backward(upstream)

	const eps = 1e-2
	for _, p := range params {
		analytic := append([]float32(nil), p.Grad...)
		for i := range p.Data {
			orig := p.Data[i]
			p.Data[i] = orig + eps
			plus := objective()
			p.Data[i] = orig - eps
			minus := objective()
			p.Data[i] = orig

			numeric := (plus - minus) / (2 * eps)
			if math.Abs(numeric-float64(analytic[i])) > 1e-2*math.Max(1, math.Abs(numeric)) {
				t.Errorf("%s %s[%d]: analytic %v, numeric %v", name, p.Name, i, analytic[i], numeric)
			}
		}
	}
}

func randomSlice(rng *rand.Rand, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(rng.Float64()*2 - 1)
	}
	return out
}

// TestDenseForward verifies y = xW + b with W stored [in*out]
func TestDenseForward(t *testing.T) {
	d := NewDense("fc", 2, 3, ActivationNone, rand.New(rand.NewSource(1)))
	copy(d.Weight.Data, []float32{1, 2, 3, 4, 5, 6})
	copy(d.Bias.Data, []float32{0.5, 0, -1})
	out := d.Forward([]float32{1, -1})
	want := []float32{-2.5, -3, -4}
	if MaxAbsDiff(out, want) > 1e-6 {
		t.Errorf("Expected %v, got %v", want, out)
	}
}

// TestLayerGradients checks every layer kernel against finite differences
func TestLayerGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, act := range []Activation{ActivationNone, ActivationTanh, ActivationSigmoid} {
		d := NewDense("fc", 3, 2, act, rng)
		x := randomSlice(rng, 3)
		checkLayer(t, "dense/"+act.String(), func() []float32 { return d.Forward(x) },
			func(g []float32) { d.Backward(g) }, d.Params(), []float32{0.7, -0.4})
	}

	lstm := NewLSTM("lstm", 2, 3, rng)
	seq := randomSlice(rng, 4*2)
	checkLayer(t, "lstm", func() []float32 { return lstm.Forward(seq) },
		func(g []float32) { lstm.Backward(g) }, lstm.Params(), randomSlice(rng, 4*3))

	conv := NewConv1D("conv", 2, 2, 1, 1, 3, ActivationTanh, rng)
	pool := &MaxPoolTime{Filters: 3}
	sentence := randomSlice(rng, 5*2)
	checkLayer(t, "conv1d", func() []float32 { return pool.Forward(conv.Forward(sentence)) },
		func(g []float32) { conv.Backward(pool.Backward(g)) }, conv.Params(), []float32{0.3, -0.8, 0.5})
}

// TestConvOutLen verifies padding on both ends
func TestConvOutLen(t *testing.T) {
	conv := NewConv1D("conv", 4, 3, 1, 2, 5, ActivationTanh, rand.New(rand.NewSource(1)))
	if got := conv.OutLen(6); got != 8 {
		t.Errorf("Expected 8 positions, got %d", got)
	}
	if got := len(conv.Forward(make([]float32, 6*4))); got != 5*8 {
		t.Errorf("Expected %d outputs, got %d", 5*8, got)
	}
}

// TestLSTMForgetBias verifies the forget gate starts open
func TestLSTMForgetBias(t *testing.T) {
	l := NewLSTM("lstm", 1, 4, rand.New(rand.NewSource(1)))
	for _, b := range l.BiasH_f.Data {
		if b != 1 {
			t.Fatalf("Expected forget bias 1, got %v", b)
		}
	}
	if len(l.Params()) != 12 || CountParams(l.Params()) != 4*(4+16+4) {
		t.Errorf("Unexpected params: %d tensors, %d entries", len(l.Params()), CountParams(l.Params()))
	}
}

// TestEmbedding verifies lookup, padding and freezing
func TestEmbedding(t *testing.T) {
	e := EmbeddingFromPretrained("emb", [][]float32{{1, 1}, {2, 3}, {4, 5}}, 0, false)
	out := e.Forward([]int{1, 0, 7, 2})
	want := []float32{2, 3, 0, 0, 0, 0, 4, 5}
	if MaxAbsDiff(out, want) != 0 {
		t.Errorf("Expected %v, got %v", want, out)
	}

	e.Backward([]float32{1, 1, 1, 1, 1, 1, 1, 1})
	if e.Weight.Grad[0] != 0 || e.Weight.Grad[2] != 1 || e.Weight.Grad[4] != 1 {
		t.Errorf("Unexpected gradient %v", e.Weight.Grad)
	}

	frozen := EmbeddingFromPretrained("emb", [][]float32{{1}, {2}}, -1, true)
	frozen.Forward([]int{1})
	frozen.Backward([]float32{1})
	if frozen.Weight.Grad[1] != 0 {
		t.Error("Frozen table must not accumulate gradients")
	}
}

// TestActivationDerivatives checks derivatives against finite differences
func TestActivationDerivatives(t *testing.T) {
	for _, act := range []Activation{ActivationNone, ActivationReLU, ActivationTanh, ActivationSigmoid} {
		for _, x := range []float32{-1.3, -0.2, 0.4, 2.1} {
			const eps = 1e-3
			numeric := (Activate(x+eps, act) - Activate(x-eps, act)) / (2 * eps)
			if d := ActivateDerivative(x, act); math.Abs(float64(d-numeric)) > 1e-2 {
				t.Errorf("%s'(%v): expected %v, got %v", act, x, numeric, d)
			}
		}
	}
	if _, err := ParseActivation("swish"); err == nil {
		t.Error("Expected error for unknown activation")
	}
	if a, err := ParseActivation("relu"); err != nil || a != ActivationReLU {
		t.Errorf("Expected relu, got %v (%v)", a, err)
	}
}

// TestLosses verifies softmax, cross-entropy and MSE
func TestLosses(t *testing.T) {
	probs := Softmax([]float32{1, 2, 3})
	var sum float32
	for _, p := range probs {
		sum += p
	}
	if math.Abs(float64(sum-1)) > 1e-6 || Argmax(probs) != 2 {
		t.Errorf("Unexpected softmax %v", probs)
	}

	loss, grad := CrossEntropy([]float32{0, 0}, 1)
	if math.Abs(float64(loss)-math.Ln2) > 1e-6 || grad[0] != 0.5 || grad[1] != -0.5 {
		t.Errorf("Unexpected cross-entropy %v %v", loss, grad)
	}

	loss, grad = MSE([]float32{1, 3}, []float32{0, 1})
	if loss != 2.5 || grad[0] != 1 || grad[1] != 2 {
		t.Errorf("Unexpected MSE %v %v", loss, grad)
	}
}
