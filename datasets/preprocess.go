package datasets

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/openfluke/pagnn/nn"
)

// OneHot encodes categories against their sorted set of distinct values
func OneHot(values []string) ([][]float32, []string) {
	seen := map[string]bool{}
	var categories []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			categories = append(categories, v)
		}
	}
	sort.Strings(categories)

	index := make(map[string]int, len(categories))
	for i, c := range categories {
		index[c] = i
	}
	out := make([][]float32, len(values))
	for i, v := range values {
		out[i] = make([]float32, len(categories))
		out[i][index[v]] = 1
	}
	return out, categories
}

// NormalizeInPlace rescales a column to [0, 1]; a constant column becomes all zeros
func NormalizeInPlace(column []float64) {
	if len(column) == 0 {
		return
	}
	lo, hi := floats.Min(column), floats.Max(column)
	floats.AddConst(-lo, column)
	if hi > lo {
		floats.Scale(1/(hi-lo), column)
	}
}

// MinMaxScaler maps the fitted data range onto [Low, High]
type MinMaxScaler struct {
	Low, High float64

	Min, Max float64
	fitted   bool
}

// NewMinMaxScaler returns a scaler targeting [low, high]
func NewMinMaxScaler(low, high float64) *MinMaxScaler {
	return &MinMaxScaler{Low: low, High: high}
}

// Fit records the range of data
func (s *MinMaxScaler) Fit(data []float64) error {
	if len(data) == 0 {
		return errors.New("min-max scaler: empty data")
	}
	if s.High <= s.Low {
		return errors.Errorf("min-max scaler: invalid feature range (%g, %g)", s.Low, s.High)
	}
	s.Min, s.Max = floats.Min(data), floats.Max(data)
	s.fitted = true
	return nil
}

func (s *MinMaxScaler) scale() float64 {
	if s.Max == s.Min {
		return 1
	}
	return (s.High - s.Low) / (s.Max - s.Min)
}

// Transform returns scaled copies of data
func (s *MinMaxScaler) Transform(data []float64) []float64 {
	if !s.fitted {
		panic("min-max scaler: Transform before Fit")
	}
	out := make([]float64, len(data))
	copy(out, data)
	floats.AddConst(-s.Min, out)
	floats.Scale(s.scale(), out)
	floats.AddConst(s.Low, out)
	return out
}

// FitTransform fits data and scales it
func (s *MinMaxScaler) FitTransform(data []float64) ([]float64, error) {
	if err := s.Fit(data); err != nil {
		return nil, err
	}
	return s.Transform(data), nil
}

// InverseTransform maps scaled values back to the data range
func (s *MinMaxScaler) InverseTransform(scaled []float64) []float64 {
	out := make([]float64, len(scaled))
	copy(out, scaled)
	floats.AddConst(-s.Low, out)
	floats.Scale(1/s.scale(), out)
	floats.AddConst(s.Min, out)
	return out
}

// InOutSequences slides a window over data, pairing each window with the value after it
func InOutSequences(data []float32, window int) []Sample {
	var out []Sample
	for i := 0; i+window < len(data); i++ {
		seq := append([]float32(nil), data[i:i+window]...)
		out = append(out, Sample{
			Input:  nn.Scalars(seq),
			Target: nn.Target{Values: []float32{data[i+window]}},
		})
	}
	return out
}

// ToFloat32 converts a float64 series
func ToFloat32(data []float64) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v)
	}
	return out
}

// ToFloat64 converts a float32 series
func ToFloat64(data []float32) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v)
	}
	return out
}
