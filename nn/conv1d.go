package nn

import (
	"math"
	"math/rand"
)

// Conv1D convolves a time-major sequence [seqLen * inChannels] with a window of KernelSize
// frames, producing [Filters * outLen]. With Padding = KernelSize-1 every partial window at
// either end is included, the sentence convolution used by the text classifier.
type Conv1D struct {
	InChannels int
	KernelSize int
	Stride     int
	Padding    int
	Filters    int
	Activation Activation

	Kernel *Param // [filters][kernelSize][inChannels]
	Bias   *Param // [filters]

	input  []float32
	seqLen int
	preAct []float32
}

// NewConv1D initializes a Conv1D layer with fan-in uniform weights
func NewConv1D(name string, inChannels, kernelSize, stride, padding, filters int, activation Activation, rng *rand.Rand) *Conv1D {
	kernel := NewParam(name+".kernel", filters, kernelSize, inChannels)
	bias := NewParam(name+".bias", filters)

	bound := 1.0 / math.Sqrt(float64(inChannels*kernelSize))
	for i := range kernel.Data {
		kernel.Data[i] = float32((rng.Float64()*2 - 1) * bound)
	}
	for i := range bias.Data {
		bias.Data[i] = float32((rng.Float64()*2 - 1) * bound)
	}

	return &Conv1D{
		InChannels: inChannels,
		KernelSize: kernelSize,
		Stride:     stride,
		Padding:    padding,
		Filters:    filters,
		Activation: activation,
		Kernel:     kernel,
		Bias:       bias,
	}
}

// Params returns the kernel and bias
func (c *Conv1D) Params() []*Param {
	return []*Param{c.Kernel, c.Bias}
}

// OutLen returns the number of output positions for a sequence of seqLen frames
func (c *Conv1D) OutLen(seqLen int) int {
	return (seqLen+2*c.Padding-c.KernelSize)/c.Stride + 1
}

// Forward returns the activated output [filters * outLen]
func (c *Conv1D) Forward(input []float32) []float32 {
	c.input = input
	c.seqLen = len(input) / c.InChannels
	preAct, postAct := conv1DForwardCPU(input, c.Kernel.Data, c.Bias.Data,
		c.seqLen, c.InChannels, c.KernelSize, c.Stride, c.Padding, c.Filters, c.Activation)
	c.preAct = preAct
	return postAct
}

// Backward accumulates kernel and bias gradients and returns the input gradient
func (c *Conv1D) Backward(gradOutput []float32) []float32 {
	gradInput, gradKernel, gradBias := conv1DBackwardCPU(gradOutput, c.input, c.preAct, c.Kernel.Data,
		c.seqLen, c.InChannels, c.KernelSize, c.Stride, c.Padding, c.Filters, c.Activation)
	for i, g := range gradKernel {
		c.Kernel.Grad[i] += g
	}
	for i, g := range gradBias {
		c.Bias.Grad[i] += g
	}
	return gradInput
}

// conv1DForwardCPU performs 1D convolution over a time-major input
// Input shape: [seqLen][inChannels] (flattened)
// Output shape: [filters][outLen] (flattened)
func conv1DForwardCPU(
	input, kernel, bias []float32,
	seqLen, inChannels, kernelSize, stride, padding, filters int,
	activation Activation,
) (preAct, postAct []float32) {
	outLen := (seqLen+2*padding-kernelSize)/stride + 1
	if outLen <= 0 {
		return nil, nil
	}
	preAct = make([]float32, filters*outLen)
	postAct = make([]float32, filters*outLen)

	for f := 0; f < filters; f++ {
		for o := 0; o < outLen; o++ {
			sum := bias[f]
			for k := 0; k < kernelSize; k++ {
				inPos := o*stride + k - padding
				if inPos < 0 || inPos >= seqLen {
					continue
				}
				for ic := 0; ic < inChannels; ic++ {
					sum += input[inPos*inChannels+ic] * kernel[f*kernelSize*inChannels+k*inChannels+ic]
				}
			}
			outputIdx := f*outLen + o
			preAct[outputIdx] = sum
			postAct[outputIdx] = Activate(sum, activation)
		}
	}

	return preAct, postAct
}

// conv1DBackwardCPU computes gradients for 1D convolution over a time-major input
func conv1DBackwardCPU(
	gradOutput, input, preActivation, kernel []float32,
	seqLen, inChannels, kernelSize, stride, padding, filters int,
	activation Activation,
) (gradInput, gradKernel, gradBias []float32) {
	outLen := (seqLen+2*padding-kernelSize)/stride + 1

	gradInput = make([]float32, seqLen*inChannels)
	gradKernel = make([]float32, filters*kernelSize*inChannels)
	gradBias = make([]float32, filters)

	for f := 0; f < filters; f++ {
		for o := 0; o < outLen; o++ {
			outputIdx := f*outLen + o
			gradOut := gradOutput[outputIdx] * ActivateDerivative(preActivation[outputIdx], activation)
			if gradOut == 0 {
				continue
			}

			gradBias[f] += gradOut

			for k := 0; k < kernelSize; k++ {
				inPos := o*stride + k - padding
				if inPos < 0 || inPos >= seqLen {
					continue
				}
				for ic := 0; ic < inChannels; ic++ {
					inputIdx := inPos*inChannels + ic
					kernelIdx := f*kernelSize*inChannels + k*inChannels + ic
					gradInput[inputIdx] += gradOut * kernel[kernelIdx]
					gradKernel[kernelIdx] += gradOut * input[inputIdx]
				}
			}
		}
	}

	return gradInput, gradKernel, gradBias
}

// MaxPoolTime takes the maximum of every filter row [filters][outLen] -> [filters]
type MaxPoolTime struct {
	Filters int

	argmax []int
	outLen int
}

// Forward pools each filter over time and remembers the winning position
func (m *MaxPoolTime) Forward(input []float32) []float32 {
	m.outLen = len(input) / m.Filters
	m.argmax = make([]int, m.Filters)
	out := make([]float32, m.Filters)
	for f := 0; f < m.Filters; f++ {
		best := 0
		for o := 1; o < m.outLen; o++ {
			if input[f*m.outLen+o] > input[f*m.outLen+best] {
				best = o
			}
		}
		m.argmax[f] = best
		out[f] = input[f*m.outLen+best]
	}
	return out
}

// Backward routes each filter gradient to its argmax position
func (m *MaxPoolTime) Backward(gradOutput []float32) []float32 {
	gradInput := make([]float32, m.Filters*m.outLen)
	for f := 0; f < m.Filters; f++ {
		gradInput[f*m.outLen+m.argmax[f]] = gradOutput[f]
	}
	return gradInput
}
