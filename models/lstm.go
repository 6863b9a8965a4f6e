package models

import (
	"math/rand"

	"github.com/openfluke/pagnn/nn"
)

// LSTM regresses the next value of a series from a window: an LSTM over the window
// followed by a linear read-out of the last hidden state.
type LSTM struct {
	Cell   *nn.LSTM
	Linear *nn.Dense

	steps int
}

// NewLSTM builds the forecaster; the usual setup is NewLSTM(1, 100, 1, rng)
func NewLSTM(in, hidden, out int, rng *rand.Rand) *LSTM {
	return &LSTM{
		Cell:   nn.NewLSTM("lstm", in, hidden, rng),
		Linear: nn.NewDense("lstm.linear", hidden, out, nn.ActivationNone, rng),
	}
}

// Forward starts from a zero hidden and cell state on every call
func (m *LSTM) Forward(in nn.Input) []float32 {
	hidden := m.Cell.Forward(in.Flat())
	h := m.Cell.HiddenSize
	m.steps = len(hidden) / h
	return m.Linear.Forward(hidden[(m.steps-1)*h:])
}

func (m *LSTM) Backward(gradOutput []float32) {
	h := m.Cell.HiddenSize
	gradLast := m.Linear.Backward(gradOutput)
	gradHidden := make([]float32, m.steps*h)
	copy(gradHidden[(m.steps-1)*h:], gradLast)
	m.Cell.Backward(gradHidden)
}

func (m *LSTM) Params() []*nn.Param {
	return append(m.Cell.Params(), m.Linear.Params()...)
}

func (m *LSTM) SetTraining(bool) {}
