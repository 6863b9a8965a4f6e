package nn

import (
	"math"
)

// Softmax returns the standard softmax distribution of logits
func Softmax(logits []float32) []float32 {
	out := make([]float32, len(logits))
	if len(logits) == 0 {
		return out
	}
	maxVal := Max(logits)
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxVal))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

// LogSoftmax returns log(softmax(logits)) computed stably
func LogSoftmax(logits []float32) []float32 {
	out := make([]float32, len(logits))
	if len(logits) == 0 {
		return out
	}
	maxVal := Max(logits)
	var sum float64
	for _, v := range logits {
		sum += math.Exp(float64(v - maxVal))
	}
	logSum := float32(math.Log(sum)) + maxVal
	for i, v := range logits {
		out[i] = v - logSum
	}
	return out
}

// CrossEntropy computes -log softmax(logits)[target] and its gradient w.r.t. the logits
func CrossEntropy(logits []float32, target int) (float32, []float32) {
	probs := Softmax(logits)
	grad := make([]float32, len(logits))
	copy(grad, probs)
	grad[target] -= 1

	p := float64(probs[target])
	if p < 1e-12 {
		p = 1e-12
	}
	return float32(-math.Log(p)), grad
}

// MSE computes the mean squared error and its gradient w.r.t. the prediction
func MSE(output, target []float32) (float32, []float32) {
	grad := make([]float32, len(output))
	if len(output) == 0 {
		return 0, grad
	}
	var loss float32
	scale := float32(2.0) / float32(len(output))
	for i := range output {
		diff := output[i] - target[i]
		loss += diff * diff
		grad[i] = diff * scale
	}
	return loss / float32(len(output)), grad
}

// Criterion computes a loss and its gradient for one model output against one target.
// Classification targets carry the class index in Label; regression targets carry Values.
type Criterion func(output []float32, target Target) (float32, []float32)

// Target is the expected value for one sample
type Target struct {
	Label  int
	Values []float32
}

// CrossEntropyCriterion is the classification criterion (F.cross_entropy on logits)
func CrossEntropyCriterion(output []float32, target Target) (float32, []float32) {
	return CrossEntropy(output, target.Label)
}

// MSECriterion is the regression criterion (nn.MSELoss)
func MSECriterion(output []float32, target Target) (float32, []float32) {
	return MSE(output, target.Values)
}
