package pagnn

import (
	"github.com/pkg/errors"

	"github.com/openfluke/pagnn/nn"
)

// Text feeds a sentence to a layer one token at a time through frozen word vectors
type Text struct {
	Layer   *Layer
	Vectors *nn.Embedding
}

// NewText wraps layer with a frozen lookup table; the vector size must match the input neurons
func NewText(layer *Layer, vectors *nn.Embedding) (*Text, error) {
	if vectors.EmbeddingDim != layer.Inputs {
		return nil, errors.Wrapf(nn.ErrShape, "pagnn: word vectors have %d dimensions, layer has %d inputs",
			vectors.EmbeddingDim, layer.Inputs)
	}
	vectors.Weight.Frozen = true
	return &Text{Layer: layer, Vectors: vectors}, nil
}

func (t *Text) Forward(in nn.Input) []float32 {
	dim := t.Vectors.EmbeddingDim
	flat := t.Vectors.Forward(in.Tokens)
	frames := make([][]float32, len(in.Tokens))
	for i := range frames {
		frames[i] = flat[i*dim : (i+1)*dim]
	}
	if len(frames) == 0 {
		// an empty review still reads the output neurons after the bias-only steps
		frames = [][]float32{make([]float32, dim)}
	}
	return t.Layer.Forward(nn.Sequence(frames))
}

func (t *Text) Backward(gradOutput []float32) {
	t.Layer.Backward(gradOutput)
}

// Params excludes the frozen word vectors
func (t *Text) Params() []*nn.Param {
	return t.Layer.Params()
}

func (t *Text) SetTraining(training bool) {
	t.Layer.SetTraining(training)
}
