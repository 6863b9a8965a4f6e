package experiment

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Accuracy is the fraction of matching predictions
func Accuracy(preds, truth []int) float64 {
	if len(preds) == 0 {
		return 0
	}
	correct := 0
	for i := range preds {
		if preds[i] == truth[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(preds))
}

// ConfusionMatrix counts (predicted, true) pairs; rows are predicted classes.
// Labels outside [0, classes) are ignored.
func ConfusionMatrix(preds, truth []int, classes int) *mat.Dense {
	m := mat.NewDense(classes, classes, nil)
	for i := range preds {
		p, t := preds[i], truth[i]
		if p < 0 || p >= classes || t < 0 || t >= classes {
			continue
		}
		m.Set(p, t, m.At(p, t)+1)
	}
	return m
}

// FormatConfusion renders the matrix as rows of integer counts
func FormatConfusion(m *mat.Dense) string {
	return fmt.Sprintf("%v", mat.Formatted(m, mat.Squeeze()))
}
