package nn

import (
	"fmt"
	"math"
	"math/rand"
)

// Dense is a fully-connected layer: y = act(x·W + b)
type Dense struct {
	InputSize  int
	OutputSize int
	Activation Activation

	Weight *Param // [inputSize * outputSize]
	Bias   *Param // [outputSize]

	input  []float32
	preAct []float32
}

// NewDense initializes a dense layer.
// ReLU layers use He initialization, everything else the uniform fan-in bound 1/sqrt(in).
func NewDense(name string, inputSize, outputSize int, activation Activation, rng *rand.Rand) *Dense {
	weight := NewParam(name+".weight", inputSize, outputSize)
	bias := NewParam(name+".bias", outputSize)

	if activation == ActivationReLU {
		stddev := math.Sqrt(2.0 / float64(inputSize))
		for i := range weight.Data {
			weight.Data[i] = float32(rng.NormFloat64() * stddev)
		}
	} else {
		bound := 1.0 / math.Sqrt(float64(inputSize))
		for i := range weight.Data {
			weight.Data[i] = float32((rng.Float64()*2 - 1) * bound)
		}
		for i := range bias.Data {
			bias.Data[i] = float32((rng.Float64()*2 - 1) * bound)
		}
	}

	return &Dense{
		InputSize:  inputSize,
		OutputSize: outputSize,
		Activation: activation,
		Weight:     weight,
		Bias:       bias,
	}
}

// Params returns the weight and bias
func (d *Dense) Params() []*Param {
	return []*Param{d.Weight, d.Bias}
}

// Forward runs one sample (or a flattened batch) through the layer and caches what Backward needs
func (d *Dense) Forward(input []float32) []float32 {
	batchSize := len(input) / d.InputSize
	d.input = input
	preAct, postAct := denseForwardCPU(input, d.Weight.Data, d.Bias.Data, batchSize, d.InputSize, d.OutputSize, d.Activation)
	d.preAct = preAct
	return postAct
}

// Backward accumulates weight and bias gradients and returns the gradient w.r.t. the input
func (d *Dense) Backward(gradOutput []float32) []float32 {
	batchSize := len(d.input) / d.InputSize
	gradInput, gradWeights, gradBias := denseBackwardCPU(gradOutput, d.input, d.preAct, d.Weight.Data,
		batchSize, d.InputSize, d.OutputSize, d.Activation)
	for i, g := range gradWeights {
		d.Weight.Grad[i] += g
	}
	for i, g := range gradBias {
		d.Bias.Grad[i] += g
	}
	return gradInput
}

// denseForwardCPU performs forward pass for dense layer
// input: [batchSize * inputSize]
// weights: [inputSize * outputSize]
// output: [batchSize * outputSize]
func denseForwardCPU(input, weights, bias []float32, batchSize, inputSize, outputSize int, activation Activation) ([]float32, []float32) {
	preAct := make([]float32, batchSize*outputSize)
	postAct := make([]float32, batchSize*outputSize)

	for b := 0; b < batchSize; b++ {
		for o := 0; o < outputSize; o++ {
			sum := bias[o]
			for i := 0; i < inputSize; i++ {
				sum += input[b*inputSize+i] * weights[i*outputSize+o]
			}
			outIdx := b*outputSize + o
			preAct[outIdx] = sum
			postAct[outIdx] = Activate(sum, activation)
		}
	}

	return preAct, postAct
}

// denseBackwardCPU performs backward pass for dense layer
func denseBackwardCPU(gradOutput, input, preAct, weights []float32, batchSize, inputSize, outputSize int, activation Activation) ([]float32, []float32, []float32) {
	if len(gradOutput) != batchSize*outputSize {
		panic(fmt.Sprintf("dense backward: gradOutput size mismatch: got %d, expected %d (batch=%d, outputSize=%d)",
			len(gradOutput), batchSize*outputSize, batchSize, outputSize))
	}

	gradInput := make([]float32, batchSize*inputSize)
	gradWeights := make([]float32, inputSize*outputSize)
	gradBias := make([]float32, outputSize)

	for b := 0; b < batchSize; b++ {
		for o := 0; o < outputSize; o++ {
			outIdx := b*outputSize + o
			grad := gradOutput[outIdx] * ActivateDerivative(preAct[outIdx], activation)

			gradBias[o] += grad
			for i := 0; i < inputSize; i++ {
				inputIdx := b*inputSize + i
				weightIdx := i*outputSize + o
				gradWeights[weightIdx] += input[inputIdx] * grad
				gradInput[inputIdx] += weights[weightIdx] * grad
			}
		}
	}

	return gradInput, gradWeights, gradBias
}
