package models

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/openfluke/pagnn/nn"
)

// CNNTextClassifier embeds a padded sentence with frozen word vectors, runs one tanh
// convolution per window size over it, max-pools each over time and classifies the
// concatenated features. Forward returns logits, or a softmax over them when
// Probabilities is set.
type CNNTextClassifier struct {
	Embedding *nn.Embedding
	Convs     []*nn.Conv1D
	Pools     []*nn.MaxPoolTime
	FC        *nn.Dense

	Windows       []int
	Filters       int
	Probabilities bool

	probs []float32
}

// DefaultWindows are the convolution window sizes of the classifier
var DefaultWindows = []int{1, 2, 3, 5}

// NewCNNTextClassifier builds the classifier over pretrained vectors [vocab][dim]
func NewCNNTextClassifier(vectors [][]float32, paddingIdx, classes, filters int, windows []int, rng *rand.Rand) (*CNNTextClassifier, error) {
	if len(vectors) == 0 {
		return nil, errors.New("cnn: empty vocabulary")
	}
	if len(windows) == 0 {
		windows = DefaultWindows
	}

	emb := nn.EmbeddingFromPretrained("cnn.embedding", vectors, paddingIdx, true)
	m := &CNNTextClassifier{
		Embedding: emb,
		Windows:   append([]int(nil), windows...),
		Filters:   filters,
	}
	for _, w := range windows {
		if w <= 0 {
			return nil, errors.Errorf("cnn: invalid window size %d", w)
		}
		m.Convs = append(m.Convs, nn.NewConv1D(fmt.Sprintf("cnn.conv%d", w), emb.EmbeddingDim, w, 1, w-1, filters, nn.ActivationTanh, rng))
		m.Pools = append(m.Pools, &nn.MaxPoolTime{Filters: filters})
	}
	m.FC = nn.NewDense("cnn.fc", filters*len(windows), classes, nn.ActivationNone, rng)
	return m, nil
}

func (m *CNNTextClassifier) Forward(in nn.Input) []float32 {
	tokens := in.Tokens
	if len(tokens) == 0 {
		tokens = []int{m.Embedding.PaddingIdx}
	}
	x := m.Embedding.Forward(tokens)
	features := make([]float32, 0, m.Filters*len(m.Convs))
	for i, conv := range m.Convs {
		features = append(features, m.Pools[i].Forward(conv.Forward(x))...)
	}
	logits := m.FC.Forward(features)
	if !m.Probabilities {
		return logits
	}
	m.probs = nn.Softmax(logits)
	return append([]float32(nil), m.probs...)
}

func (m *CNNTextClassifier) Backward(gradOutput []float32) {
	if m.Probabilities {
		// softmax Jacobian: dL/dz_i = p_i (g_i - sum_j g_j p_j)
		var dot float32
		for j, p := range m.probs {
			dot += gradOutput[j] * p
		}
		gradLogits := make([]float32, len(gradOutput))
		for i, p := range m.probs {
			gradLogits[i] = p * (gradOutput[i] - dot)
		}
		gradOutput = gradLogits
	}
	gradFeatures := m.FC.Backward(gradOutput)
	var gradEmb []float32
	for i, conv := range m.Convs {
		g := conv.Backward(m.Pools[i].Backward(gradFeatures[i*m.Filters : (i+1)*m.Filters]))
		if gradEmb == nil {
			gradEmb = g
			continue
		}
		for j := range g {
			gradEmb[j] += g[j]
		}
	}
	m.Embedding.Backward(gradEmb)
}

// Params includes the frozen embedding table
func (m *CNNTextClassifier) Params() []*nn.Param {
	params := m.Embedding.Params()
	for _, conv := range m.Convs {
		params = append(params, conv.Params()...)
	}
	return append(params, m.FC.Params()...)
}

func (m *CNNTextClassifier) SetTraining(bool) {}
