package models

import (
	"fmt"
	"math/rand"

	"github.com/openfluke/pagnn/nn"
)

// FFNN is a one-hidden-layer feed-forward classifier producing logits
type FFNN struct {
	Hidden *nn.Dense
	Out    *nn.Dense
}

// NewFFNN builds Dense(in, hidden) -> ReLU -> Dense(hidden, out)
func NewFFNN(in, hidden, out int, rng *rand.Rand) *FFNN {
	return &FFNN{
		Hidden: nn.NewDense("ffnn.fc1", in, hidden, nn.ActivationReLU, rng),
		Out:    nn.NewDense("ffnn.fc2", hidden, out, nn.ActivationNone, rng),
	}
}

func (m *FFNN) Forward(in nn.Input) []float32 {
	return m.Out.Forward(m.Hidden.Forward(in.Flat()))
}

func (m *FFNN) Backward(gradOutput []float32) {
	m.Hidden.Backward(m.Out.Backward(gradOutput))
}

func (m *FFNN) Params() []*nn.Param {
	return append(m.Hidden.Params(), m.Out.Params()...)
}

func (m *FFNN) SetTraining(bool) {}

func (m *FFNN) String() string {
	return fmt.Sprintf("FFNN(%d, %d, %d, #p=%d)", m.Hidden.InputSize, m.Hidden.OutputSize, m.Out.OutputSize, CountParams(m))
}
