package nn

import (
	"math"
	"math/rand"
)

// LSTM is a single-layer LSTM with 4 gates: input (i), forget (f), cell/candidate (g), output (o).
// Hidden and cell state start at zero on every Forward.
type LSTM struct {
	InputSize  int
	HiddenSize int

	WeightIH_i, WeightHH_i, BiasH_i *Param
	WeightIH_f, WeightHH_f, BiasH_f *Param
	WeightIH_g, WeightHH_g, BiasH_g *Param
	WeightIH_o, WeightHH_o, BiasH_o *Param

	input     []float32
	seqLength int
	states    map[string][]float32
}

// NewLSTM initializes an LSTM layer with Xavier/Glorot initialization
// inputSize: size of input features
// hiddenSize: size of hidden state and cell state
func NewLSTM(name string, inputSize, hiddenSize int, rng *rand.Rand) *LSTM {
	l := &LSTM{InputSize: inputSize, HiddenSize: hiddenSize}

	stdIH := math.Sqrt(2.0 / float64(inputSize+hiddenSize))
	stdHH := math.Sqrt(2.0 / float64(hiddenSize+hiddenSize))

	gate := func(g string) (*Param, *Param, *Param) {
		ih := NewParam(name+".weight_ih_"+g, hiddenSize, inputSize)
		hh := NewParam(name+".weight_hh_"+g, hiddenSize, hiddenSize)
		b := NewParam(name+".bias_"+g, hiddenSize)
		for i := range ih.Data {
			ih.Data[i] = float32(rng.NormFloat64() * stdIH)
		}
		for i := range hh.Data {
			hh.Data[i] = float32(rng.NormFloat64() * stdHH)
		}
		return ih, hh, b
	}

	l.WeightIH_i, l.WeightHH_i, l.BiasH_i = gate("i")
	l.WeightIH_f, l.WeightHH_f, l.BiasH_f = gate("f")
	l.WeightIH_g, l.WeightHH_g, l.BiasH_g = gate("g")
	l.WeightIH_o, l.WeightHH_o, l.BiasH_o = gate("o")

	// Forget gate bias = 1.0 to remember by default
	for i := range l.BiasH_f.Data {
		l.BiasH_f.Data[i] = 1.0
	}

	return l
}

// Params returns all gate weights and biases
func (l *LSTM) Params() []*Param {
	return []*Param{
		l.WeightIH_i, l.WeightHH_i, l.BiasH_i,
		l.WeightIH_f, l.WeightHH_f, l.BiasH_f,
		l.WeightIH_g, l.WeightHH_g, l.BiasH_g,
		l.WeightIH_o, l.WeightHH_o, l.BiasH_o,
	}
}

// Forward runs the sequence [seqLength * inputSize] and returns hidden states [seqLength * hiddenSize]
func (l *LSTM) Forward(input []float32) []float32 {
	l.seqLength = len(input) / l.InputSize
	l.input = input
	out, states := lstmForwardCPU(l, input, 1, l.seqLength, l.InputSize, l.HiddenSize)
	l.states = states
	return out
}

// Backward runs BPTT, accumulates parameter gradients and returns the input gradient
func (l *LSTM) Backward(gradOutput []float32) []float32 {
	gradInput, grads := lstmBackwardCPU(l, gradOutput, l.input, l.states, 1, l.seqLength, l.InputSize, l.HiddenSize)
	for _, p := range []struct {
		param *Param
		key   string
	}{
		{l.WeightIH_i, "WeightIH_i"}, {l.WeightHH_i, "WeightHH_i"}, {l.BiasH_i, "BiasH_i"},
		{l.WeightIH_f, "WeightIH_f"}, {l.WeightHH_f, "WeightHH_f"}, {l.BiasH_f, "BiasH_f"},
		{l.WeightIH_g, "WeightIH_g"}, {l.WeightHH_g, "WeightHH_g"}, {l.BiasH_g, "BiasH_g"},
		{l.WeightIH_o, "WeightIH_o"}, {l.WeightHH_o, "WeightHH_o"}, {l.BiasH_o, "BiasH_o"},
	} {
		for i, g := range grads[p.key] {
			p.param.Grad[i] += g
		}
	}
	return gradInput
}

// lstmForwardCPU performs forward pass for LSTM layer
// Input shape: [batchSize, seqLength, inputSize]
// Output shape: [batchSize, seqLength, hiddenSize]
// Returns: (output, all_states) where all_states contains hidden, cell, and gate values for backward
func lstmForwardCPU(l *LSTM, input []float32, batchSize, seqLength, inputSize, hiddenSize int) ([]float32, map[string][]float32) {
	output := make([]float32, batchSize*seqLength*hiddenSize)

	states := make(map[string][]float32)
	// Hidden and cell states: [batchSize, seqLength+1, hiddenSize] (including h_0 = c_0 = 0)
	states["hidden"] = make([]float32, batchSize*(seqLength+1)*hiddenSize)
	states["cell"] = make([]float32, batchSize*(seqLength+1)*hiddenSize)
	// Gate activations: [batchSize, seqLength, hiddenSize]
	states["i_gate"] = make([]float32, batchSize*seqLength*hiddenSize)
	states["f_gate"] = make([]float32, batchSize*seqLength*hiddenSize)
	states["g_gate"] = make([]float32, batchSize*seqLength*hiddenSize)
	states["o_gate"] = make([]float32, batchSize*seqLength*hiddenSize)
	states["c_tanh"] = make([]float32, batchSize*seqLength*hiddenSize)

	hidden := states["hidden"]
	cell := states["cell"]

	gateSum := func(ih, hh, bias *Param, h, inputIdx, prevHiddenIdx int) float32 {
		sum := bias.Data[h]
		for i := 0; i < inputSize; i++ {
			sum += ih.Data[h*inputSize+i] * input[inputIdx+i]
		}
		for hPrev := 0; hPrev < hiddenSize; hPrev++ {
			sum += hh.Data[h*hiddenSize+hPrev] * hidden[prevHiddenIdx+hPrev]
		}
		return sum
	}

	for t := 0; t < seqLength; t++ {
		for b := 0; b < batchSize; b++ {
			prevIdx := b*(seqLength+1)*hiddenSize + t*hiddenSize
			currIdx := b*(seqLength+1)*hiddenSize + (t+1)*hiddenSize
			inputIdx := b*seqLength*inputSize + t*inputSize
			gateIdx := b*seqLength*hiddenSize + t*hiddenSize

			for h := 0; h < hiddenSize; h++ {
				iGate := sigmoid(gateSum(l.WeightIH_i, l.WeightHH_i, l.BiasH_i, h, inputIdx, prevIdx))
				fGate := sigmoid(gateSum(l.WeightIH_f, l.WeightHH_f, l.BiasH_f, h, inputIdx, prevIdx))
				gGate := float32(math.Tanh(float64(gateSum(l.WeightIH_g, l.WeightHH_g, l.BiasH_g, h, inputIdx, prevIdx))))
				oGate := sigmoid(gateSum(l.WeightIH_o, l.WeightHH_o, l.BiasH_o, h, inputIdx, prevIdx))

				states["i_gate"][gateIdx+h] = iGate
				states["f_gate"][gateIdx+h] = fGate
				states["g_gate"][gateIdx+h] = gGate
				states["o_gate"][gateIdx+h] = oGate

				// c_t = f_t ⊙ c_{t-1} + i_t ⊙ g_t
				cell[currIdx+h] = fGate*cell[prevIdx+h] + iGate*gGate

				// h_t = o_t ⊙ tanh(c_t)
				cTanh := float32(math.Tanh(float64(cell[currIdx+h])))
				states["c_tanh"][gateIdx+h] = cTanh
				hidden[currIdx+h] = oGate * cTanh
			}

			copy(output[b*seqLength*hiddenSize+t*hiddenSize:], hidden[currIdx:currIdx+hiddenSize])
		}
	}

	return output, states
}

// lstmBackwardCPU performs backward pass for LSTM layer using BPTT
func lstmBackwardCPU(l *LSTM, gradOutput, input []float32, states map[string][]float32,
	batchSize, seqLength, inputSize, hiddenSize int) ([]float32, map[string][]float32) {

	gradInput := make([]float32, batchSize*seqLength*inputSize)

	grads := make(map[string][]float32)
	for _, g := range []string{"i", "f", "g", "o"} {
		grads["WeightIH_"+g] = make([]float32, hiddenSize*inputSize)
		grads["WeightHH_"+g] = make([]float32, hiddenSize*hiddenSize)
		grads["BiasH_"+g] = make([]float32, hiddenSize)
	}

	// Gradient accumulators for hidden and cell states
	gradHidden := make([]float32, batchSize*hiddenSize)
	gradCell := make([]float32, batchSize*hiddenSize)

	for t := seqLength - 1; t >= 0; t-- {
		for b := 0; b < batchSize; b++ {
			outputIdx := b*seqLength*hiddenSize + t*hiddenSize
			gradHiddenIdx := b * hiddenSize
			gateIdx := b*seqLength*hiddenSize + t*hiddenSize
			prevIdx := b*(seqLength+1)*hiddenSize + t*hiddenSize
			inputIdx := b*seqLength*inputSize + t*inputSize

			for h := 0; h < hiddenSize; h++ {
				gradHidden[gradHiddenIdx+h] += gradOutput[outputIdx+h]
			}

			// Gradients flowing into h_{t-1}, applied after the whole timestep
			gradPrevHidden := make([]float32, hiddenSize)

			for h := 0; h < hiddenSize; h++ {
				dh := gradHidden[gradHiddenIdx+h]

				oGate := states["o_gate"][gateIdx+h]
				cTanh := states["c_tanh"][gateIdx+h]

				do := dh * cTanh
				dc := gradCell[gradHiddenIdx+h] + dh*oGate*(1.0-cTanh*cTanh)

				iGate := states["i_gate"][gateIdx+h]
				fGate := states["f_gate"][gateIdx+h]
				gGate := states["g_gate"][gateIdx+h]
				prevCell := states["cell"][prevIdx+h]

				df := dc * prevCell
				di := dc * gGate
				dg := dc * iGate

				// Propagate gradient to previous cell state
				gradCell[gradHiddenIdx+h] = dc * fGate

				diPre := di * iGate * (1.0 - iGate)
				dfPre := df * fGate * (1.0 - fGate)
				dgPre := dg * (1.0 - gGate*gGate)
				doPre := do * oGate * (1.0 - oGate)

				grads["BiasH_i"][h] += diPre
				grads["BiasH_f"][h] += dfPre
				grads["BiasH_g"][h] += dgPre
				grads["BiasH_o"][h] += doPre

				for i := 0; i < inputSize; i++ {
					x := input[inputIdx+i]
					w := h*inputSize + i
					gradInput[inputIdx+i] += l.WeightIH_i.Data[w]*diPre +
						l.WeightIH_f.Data[w]*dfPre +
						l.WeightIH_g.Data[w]*dgPre +
						l.WeightIH_o.Data[w]*doPre

					grads["WeightIH_i"][w] += diPre * x
					grads["WeightIH_f"][w] += dfPre * x
					grads["WeightIH_g"][w] += dgPre * x
					grads["WeightIH_o"][w] += doPre * x
				}

				for hPrev := 0; hPrev < hiddenSize; hPrev++ {
					hPrevVal := states["hidden"][prevIdx+hPrev]
					w := h*hiddenSize + hPrev
					gradPrevHidden[hPrev] += l.WeightHH_i.Data[w]*diPre +
						l.WeightHH_f.Data[w]*dfPre +
						l.WeightHH_g.Data[w]*dgPre +
						l.WeightHH_o.Data[w]*doPre

					grads["WeightHH_i"][w] += diPre * hPrevVal
					grads["WeightHH_f"][w] += dfPre * hPrevVal
					grads["WeightHH_g"][w] += dgPre * hPrevVal
					grads["WeightHH_o"][w] += doPre * hPrevVal
				}
			}

			copy(gradHidden[gradHiddenIdx:gradHiddenIdx+hiddenSize], gradPrevHidden)
		}
	}

	return gradInput, grads
}
