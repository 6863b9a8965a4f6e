package experiment

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// DeviationBuckets are the upper bounds, in percent, of the forecast error histogram.
// Anything above the last bound counts as a failure.
var DeviationBuckets = []float64{10, 20, 30, 40, 50, 100}

// Prediction is one forecast point and its percentage error
type Prediction struct {
	Index     int     `json:"index"`
	Expected  float64 `json:"expected"`
	Actual    float64 `json:"actual"`
	Deviation float64 `json:"deviation"`
	Bucket    int     `json:"bucket"` // index into DeviationBuckets; len(DeviationBuckets) for failures
}

// Deviation summarizes how far a forecast strays from the ground truth
type Deviation struct {
	Counts      []int        `json:"counts"`
	Score       float64      `json:"score"` // mean of max(0, 100 - deviation)
	Mean        float64      `json:"mean_deviation"`
	Failures    int          `json:"failures"`
	Predictions []Prediction `json:"predictions"`
}

// PercentDeviation is |actual-expected|/|expected| in percent; near-zero expectations use
// the absolute error scaled by 100
func PercentDeviation(expected, actual float64) float64 {
	var d float64
	if math.Abs(expected) < 1e-10 {
		d = math.Abs(actual-expected) * 100
	} else {
		d = math.Abs((actual - expected) / expected * 100)
	}
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 100
	}
	return d
}

func bucketOf(deviation float64) int {
	for i, hi := range DeviationBuckets {
		if deviation <= hi {
			return i
		}
	}
	return len(DeviationBuckets)
}

// EvaluateForecast buckets every predicted point against the expected one
func EvaluateForecast(expected, actual []float64) (*Deviation, error) {
	if len(expected) != len(actual) {
		return nil, errors.Errorf("forecast has %d points, ground truth %d", len(actual), len(expected))
	}
	d := &Deviation{Counts: make([]int, len(DeviationBuckets)+1)}
	for i := range expected {
		p := Prediction{Index: i, Expected: expected[i], Actual: actual[i]}
		p.Deviation = PercentDeviation(p.Expected, p.Actual)
		p.Bucket = bucketOf(p.Deviation)

		d.Counts[p.Bucket]++
		if p.Bucket == len(DeviationBuckets) {
			d.Failures++
		}
		d.Score += math.Max(0, 100-p.Deviation)
		d.Mean += p.Deviation
		d.Predictions = append(d.Predictions, p)
	}
	if n := float64(len(expected)); n > 0 {
		d.Score /= n
		d.Mean /= n
	}
	return d, nil
}

// BucketLabel names bucket i, e.g. "10-20%" or "100%+"
func BucketLabel(i int) string {
	if i >= len(DeviationBuckets) {
		return fmt.Sprintf("%g%%+", DeviationBuckets[len(DeviationBuckets)-1])
	}
	lo := 0.0
	if i > 0 {
		lo = DeviationBuckets[i-1]
	}
	return fmt.Sprintf("%g-%g%%", lo, DeviationBuckets[i])
}

// Worst returns the n predictions with the largest deviation
func (d *Deviation) Worst(n int) []Prediction {
	sorted := append([]Prediction(nil), d.Predictions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Deviation > sorted[j].Deviation })
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// Print writes the score and a bar per bucket
func (d *Deviation) Print(w io.Writer, name string) {
	total := len(d.Predictions)
	fmt.Fprintf(w, "[%s] forecast score: %.2f/100, mean deviation: %.2f%%, failures: %d/%d\n",
		name, d.Score, d.Mean, d.Failures, total)
	if total == 0 {
		return
	}
	for i, c := range d.Counts {
		pct := float64(c) / float64(total) * 100
		fmt.Fprintf(w, "  %8s: %4d (%5.1f%%) %s\n", BucketLabel(i), c, pct, strings.Repeat("█", int(pct/2)))
	}
}

// Save writes the summary as JSON, creating parent directories
func (d *Deviation) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create dir for %s", path)
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal deviation")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}
