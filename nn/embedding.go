package nn

import (
	"math"
	"math/rand"
)

// Embedding maps token indices to rows of a [vocabSize][embeddingDim] table
type Embedding struct {
	VocabSize    int
	EmbeddingDim int
	PaddingIdx   int // -1 when there is no padding row

	Weight *Param

	tokens []int
}

// NewEmbedding initializes an embedding table with uniform weights
func NewEmbedding(name string, vocabSize, embeddingDim int, rng *rand.Rand) *Embedding {
	weight := NewParam(name+".weight", vocabSize, embeddingDim)
	scale := float32(1.0 / math.Sqrt(float64(embeddingDim)))
	for i := range weight.Data {
		weight.Data[i] = (float32(rng.Float64())*2 - 1) * scale
	}
	return &Embedding{
		VocabSize:    vocabSize,
		EmbeddingDim: embeddingDim,
		PaddingIdx:   -1,
		Weight:       weight,
	}
}

// EmbeddingFromPretrained copies pretrained vectors into a table.
// The padding row is zeroed; freeze excludes the table from optimizer updates.
func EmbeddingFromPretrained(name string, vectors [][]float32, paddingIdx int, freeze bool) *Embedding {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	weight := NewParam(name+".weight", len(vectors), dim)
	for i, v := range vectors {
		copy(weight.Data[i*dim:(i+1)*dim], v)
	}
	if paddingIdx >= 0 && paddingIdx < len(vectors) {
		for j := 0; j < dim; j++ {
			weight.Data[paddingIdx*dim+j] = 0
		}
	}
	weight.Frozen = freeze
	return &Embedding{
		VocabSize:    len(vectors),
		EmbeddingDim: dim,
		PaddingIdx:   paddingIdx,
		Weight:       weight,
	}
}

// Params returns the embedding table
func (e *Embedding) Params() []*Param {
	return []*Param{e.Weight}
}

// Forward looks up every token, output [seqLen * embeddingDim]; invalid ids stay zero
func (e *Embedding) Forward(tokens []int) []float32 {
	e.tokens = tokens
	output := make([]float32, len(tokens)*e.EmbeddingDim)
	for i, id := range tokens {
		if id < 0 || id >= e.VocabSize {
			continue
		}
		copy(output[i*e.EmbeddingDim:(i+1)*e.EmbeddingDim], e.Weight.Data[id*e.EmbeddingDim:(id+1)*e.EmbeddingDim])
	}
	return output
}

// Backward accumulates gradients into the rows that were looked up.
// Frozen tables and the padding row receive nothing.
func (e *Embedding) Backward(gradOutput []float32) {
	if e.Weight.Frozen {
		return
	}
	for i, id := range e.tokens {
		if id < 0 || id >= e.VocabSize || id == e.PaddingIdx {
			continue
		}
		for j := 0; j < e.EmbeddingDim; j++ {
			e.Weight.Grad[id*e.EmbeddingDim+j] += gradOutput[i*e.EmbeddingDim+j]
		}
	}
}
