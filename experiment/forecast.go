package experiment

import (
	"github.com/openfluke/pagnn/nn"
)

// Forecast predicts steps values autoregressively: each prediction is appended to the
// series and the last window values feed the next one. The model is left in evaluation mode.
func Forecast(model nn.Model, seed []float32, window, steps int) []float32 {
	model.SetTraining(false)
	series := append([]float32(nil), seed...)
	for i := 0; i < steps; i++ {
		start := len(series) - window
		if start < 0 {
			start = 0
		}
		out := model.Forward(nn.Scalars(series[start:]))
		series = append(series, out[0])
	}
	return series[len(seed):]
}
