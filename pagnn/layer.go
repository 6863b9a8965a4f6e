// Package pagnn implements the partially-adjacent graph neural network layer.
//
// Every neuron of the network (input, output and extra/hidden) lives in one state vector of
// size n = Inputs + Outputs + Extra, laid out as [inputs | extra | outputs]. A single n×n weight
// matrix, masked by the adjacency of a graph, propagates the whole state at once:
//
//	state = act(state·W + b)
//
// Each input frame overwrites the input neurons and is followed by Steps propagations. The
// prediction is read from the last Outputs neurons after the final frame.
package pagnn

import (
	"fmt"
	"log"
	"math"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/openfluke/pagnn/nn"
)

// Config describes a PAGNN layer
type Config struct {
	Inputs      int
	Outputs     int
	Extra       int
	Steps       int
	RetainState bool
	Activation  nn.Activation
	Graph       Generator // nil means every pair of neurons is connected, self loops included
}

// Propagator runs one propagation step off the host; used in evaluation mode only
type Propagator interface {
	Propagate(state, weight, bias []float32, n int, activation nn.Activation) ([]float32, error)
}

// Layer is a PAGNN layer
type Layer struct {
	Config
	N int

	Weight *nn.Param // [n*n], Weight.Data[i*n+j] is the edge i -> j
	Bias   *nn.Param // [n]

	Accel Propagator

	training bool
	state    []float32 // carried between calls when RetainState is set
	trace    []stepRecord
}

type stepRecord struct {
	afterLoad bool      // first step after a frame overwrote the input neurons
	input     []float32 // state fed into the step
	preAct    []float32
}

// New builds a layer, draws its graph structure and initializes the live weights
func New(config Config, rng *rand.Rand) (*Layer, error) {
	if config.Inputs <= 0 || config.Outputs <= 0 || config.Extra < 0 {
		return nil, errors.Errorf("pagnn: invalid neuron counts (inputs=%d, outputs=%d, extra=%d)",
			config.Inputs, config.Outputs, config.Extra)
	}
	if config.Steps <= 0 {
		return nil, errors.Errorf("pagnn: steps must be positive, got %d", config.Steps)
	}

	n := config.Inputs + config.Outputs + config.Extra
	l := &Layer{
		Config:   config,
		N:        n,
		Weight:   nn.NewParam("pagnn.weight", n, n),
		Bias:     nn.NewParam("pagnn.bias", n),
		training: true,
	}
	l.Weight.Sparse = true

	if config.Graph != nil {
		support, err := Adjacency(config.Graph, n, rng)
		if err != nil {
			return nil, errors.Wrapf(err, "pagnn: build %s structure", config.Graph.Name())
		}
		if support != nil {
			l.Weight.Support = support
			l.Weight.Mask = append([]bool(nil), support...)
		}
	}

	bound := 1.0 / math.Sqrt(float64(n))
	for i := range l.Weight.Data {
		l.Weight.Data[i] = float32((rng.Float64()*2 - 1) * bound)
	}
	l.Weight.ApplyMask()

	return l, nil
}

// Params returns the weight matrix and bias
func (l *Layer) Params() []*nn.Param {
	return []*nn.Param{l.Weight, l.Bias}
}

// SetTraining toggles trace recording; evaluation mode may use the accelerator
func (l *Layer) SetTraining(training bool) {
	l.training = training
}

// ResetState clears the retained state
func (l *Layer) ResetState() {
	l.state = nil
}

// OutputOffset is the index of the first output neuron
func (l *Layer) OutputOffset() int {
	return l.N - l.Outputs
}

// Role names the part of the state a neuron belongs to
func (l *Layer) Role(i int) string {
	switch {
	case i < l.Inputs:
		return "input"
	case i >= l.OutputOffset():
		return "output"
	default:
		return "extra"
	}
}

// Forward feeds each frame of the input and returns the output neurons
func (l *Layer) Forward(in nn.Input) []float32 {
	if len(in.Frames) == 0 {
		panic("pagnn: forward called without input frames")
	}

	state := make([]float32, l.N)
	if l.RetainState && l.state != nil {
		copy(state, l.state)
	}

	l.trace = l.trace[:0]
	for _, frame := range in.Frames {
		if len(frame) != l.Inputs {
			panic(fmt.Sprintf("pagnn: frame has %d values, layer has %d input neurons", len(frame), l.Inputs))
		}
		copy(state[:l.Inputs], frame)

		for s := 0; s < l.Steps; s++ {
			preAct, postAct := l.step(state)
			if l.training {
				l.trace = append(l.trace, stepRecord{afterLoad: s == 0, input: state, preAct: preAct})
			}
			state = postAct
		}
	}

	if l.RetainState {
		l.state = state
	}

	out := make([]float32, l.Outputs)
	copy(out, state[l.OutputOffset():])
	return out
}

func (l *Layer) step(state []float32) ([]float32, []float32) {
	if !l.training && l.Accel != nil {
		post, err := l.Accel.Propagate(state, l.Weight.Data, l.Bias.Data, l.N, l.Activation)
		if err == nil {
			return nil, post
		}
		log.Printf("pagnn: accelerator failed, falling back to host: %v", err)
		l.Accel = nil
	}
	return propagateCPU(state, l.Weight.Data, l.Bias.Data, l.N, l.Activation)
}

// propagateCPU computes pre = state·W + b and post = act(pre)
func propagateCPU(state, weight, bias []float32, n int, activation nn.Activation) ([]float32, []float32) {
	preAct := make([]float32, n)
	copy(preAct, bias)
	for i := 0; i < n; i++ {
		s := state[i]
		if s == 0 {
			continue
		}
		row := weight[i*n : (i+1)*n]
		for j, w := range row {
			preAct[j] += s * w
		}
	}

	postAct := make([]float32, n)
	for j, v := range preAct {
		postAct[j] = nn.Activate(v, activation)
	}
	return preAct, postAct
}

// Backward propagates through every recorded step, accumulating dense weight gradients.
// Gradient reaching input neurons at a frame load is dropped: those values were overwritten.
func (l *Layer) Backward(gradOutput []float32) {
	if len(gradOutput) != l.Outputs {
		panic(fmt.Sprintf("pagnn: gradient has %d values, layer has %d outputs", len(gradOutput), l.Outputs))
	}

	n := l.N
	gradState := make([]float32, n)
	copy(gradState[l.OutputOffset():], gradOutput)

	for t := len(l.trace) - 1; t >= 0; t-- {
		rec := l.trace[t]

		gradPre := make([]float32, n)
		for j := range gradPre {
			gradPre[j] = gradState[j] * nn.ActivateDerivative(rec.preAct[j], l.Activation)
		}

		next := make([]float32, n)
		for i := 0; i < n; i++ {
			x := rec.input[i]
			row := l.Weight.Data[i*n : (i+1)*n]
			gradRow := l.Weight.Grad[i*n : (i+1)*n]
			var sum float32
			for j, g := range gradPre {
				if g == 0 {
					continue
				}
				gradRow[j] += x * g
				sum += row[j] * g
			}
			next[i] = sum
		}
		for j, g := range gradPre {
			l.Bias.Grad[j] += g
		}

		if rec.afterLoad {
			for i := 0; i < l.Inputs; i++ {
				next[i] = 0
			}
		}
		gradState = next
	}
}

// Describe renders the model name used in legends, e.g. "70%_SparsePAGNN(#p=56, steps=2) + relu".
// denseAllocation <= 0 names a dense layer.
func Describe(l *Layer, denseAllocation float64) string {
	prefix := "DensePAGNN"
	if denseAllocation > 0 {
		prefix = fmt.Sprintf("%d%%_SparsePAGNN", int((1-denseAllocation)*100+1e-9))
	}
	name := fmt.Sprintf("%s(#p=%d, steps=%d)", prefix, nn.CountParams(l.Params()), l.Steps)
	if l.Activation != nn.ActivationNone {
		name += " + " + l.Activation.String()
	}
	return name
}
