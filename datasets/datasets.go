// Package datasets loads and prepares the Iris, flights and Yelp data used by the experiments
package datasets

import (
	"math"
	"math/rand"

	"github.com/openfluke/pagnn/nn"
)

// Sample is one model input and its target
type Sample struct {
	Input  nn.Input
	Target nn.Target
}

// Loader yields samples in fixed order, BatchSize at a time; the last batch may be short
type Loader struct {
	Samples   []Sample
	BatchSize int
}

// NewLoader wraps samples; batchSize <= 0 means one batch per sample
func NewLoader(samples []Sample, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Loader{Samples: samples, BatchSize: batchSize}
}

// Len returns the number of batches per epoch
func (l *Loader) Len() int {
	return (len(l.Samples) + l.BatchSize - 1) / l.BatchSize
}

// Batches slices the samples into consecutive batches
func (l *Loader) Batches() [][]Sample {
	batches := make([][]Sample, 0, l.Len())
	for start := 0; start < len(l.Samples); start += l.BatchSize {
		end := start + l.BatchSize
		if end > len(l.Samples) {
			end = len(l.Samples)
		}
		batches = append(batches, l.Samples[start:end])
	}
	return batches
}

// SplitAt puts the first frac of samples in train and the rest in test, without shuffling
func SplitAt(samples []Sample, frac float64) (train, test []Sample) {
	split := int(frac * float64(len(samples)))
	return samples[:split], samples[split:]
}

// TrainTestIndices permutes [0, n) with seed when shuffle is set and splits off
// ceil(testFrac*n) test indices at the end
func TrainTestIndices(n int, testFrac float64, shuffle bool, seed int64) (train, test []int) {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if shuffle {
		order = rand.New(rand.NewSource(seed)).Perm(n)
	}
	nTest := int(math.Ceil(testFrac*float64(n) - 1e-9))
	if nTest > n {
		nTest = n
	}
	return order[:n-nTest], order[n-nTest:]
}
