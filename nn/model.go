package nn

// Input is a single sample fed to a Model.
// Feature models read Frames (one frame for tabular data, T frames for sequences);
// embedding models read Tokens.
type Input struct {
	Frames [][]float32
	Tokens []int
}

// Vector wraps one feature vector as an Input
func Vector(x []float32) Input {
	return Input{Frames: [][]float32{x}}
}

// Sequence wraps a sequence of frames as an Input
func Sequence(frames [][]float32) Input {
	return Input{Frames: frames}
}

// Scalars wraps a univariate series as a sequence of one-value frames
func Scalars(values []float32) Input {
	frames := make([][]float32, len(values))
	for i, v := range values {
		frames[i] = []float32{v}
	}
	return Input{Frames: frames}
}

// TokenIDs wraps a token index sequence as an Input
func TokenIDs(ids []int) Input {
	return Input{Tokens: ids}
}

// Flat concatenates all frames of the input
func (in Input) Flat() []float32 {
	var out []float32
	for _, f := range in.Frames {
		out = append(out, f...)
	}
	return out
}

// Model is the contract shared by PAGNN and the baselines.
// Backward must follow the Forward whose activations it differentiates.
type Model interface {
	Forward(in Input) []float32
	Backward(gradOutput []float32)
	Params() []*Param
	SetTraining(training bool)
}
