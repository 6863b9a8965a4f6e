// Package nn provides the float32 building blocks shared by every model in the bench.
//
// Layers keep their weights in flat row-major slices wrapped in a Param, run their forward
// pass on the host and accumulate gradients into Param.Grad on the backward pass:
//   - Dense: y = act(x·W + b), W stored [in*out]
//   - LSTM: input/forget/cell/output gates, BPTT backward
//   - Conv1D + MaxPoolTime: sentence convolution over an embedded token sequence
//   - Embedding: token lookup, optionally frozen (pretrained word vectors)
//
// The supported activations are:
//   - None: identity
//   - ReLU: max(0, v)
//   - Tanh: tanh(v)
//   - Sigmoid: 1 / (1 + exp(-v))
//
// A training step is always the same sequence:
//
//	nn.ZeroGrads(params)
//	out := model.Forward(in)
//	loss, grad := nn.CrossEntropy(out, label)
//	model.Backward(grad)
//	opt.Step(params, lr)
package nn

import "github.com/pkg/errors"

// ErrShape is wrapped by every error about disagreeing dimensions
var ErrShape = errors.New("shape mismatch")
