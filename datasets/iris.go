package datasets

import (
	"bufio"
	"encoding/csv"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/openfluke/pagnn/nn"
)

// IrisFeatures are the measurement columns kept as model inputs
var IrisFeatures = []string{"SepalLengthCm", "SepalWidthCm", "PetalLengthCm", "PetalWidthCm"}

// Iris is the parsed Iris table: features and the argmax of the one-hot species
type Iris struct {
	Features [][]float32
	Labels   []int
	Classes  []string
}

// LoadIris reads the Kaggle Iris CSV at path
func LoadIris(path string) (*Iris, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open iris csv %s", path)
	}
	defer f.Close()
	iris, err := ParseIris(bufio.NewReader(f))
	return iris, errors.Wrapf(err, "parse iris csv %s", path)
}

// ParseIris reads Id, the four measurements and Species by header name.
// Rows with a missing or unparsable value are dropped; Id is discarded.
func ParseIris(r io.Reader) (*Iris, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, name := range append(IrisFeatures, "Species") {
		if _, ok := col[name]; !ok {
			return nil, errors.Errorf("missing column %q", name)
		}
	}

	var features [][]float32
	var species []string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read row")
		}

		row, ok := make([]float32, len(IrisFeatures)), true
		for j, name := range IrisFeatures {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[col[name]]), 32)
			if err != nil {
				ok = false
				break
			}
			row[j] = float32(v)
		}
		label := strings.TrimSpace(rec[col["Species"]])
		if !ok || label == "" || strings.EqualFold(label, "nan") {
			continue
		}
		features = append(features, row)
		species = append(species, label)
	}
	if len(features) == 0 {
		return nil, errors.New("no complete rows")
	}

	oneHot, classes := OneHot(species)
	labels := make([]int, len(oneHot))
	for i, v := range oneHot {
		labels[i] = nn.Argmax(v)
	}
	return &Iris{Features: features, Labels: labels, Classes: classes}, nil
}

// Shuffle permutes the rows in place
func (d *Iris) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d.Labels), func(i, j int) {
		d.Features[i], d.Features[j] = d.Features[j], d.Features[i]
		d.Labels[i], d.Labels[j] = d.Labels[j], d.Labels[i]
	})
}

// Normalize rescales every feature column to [0, 1]
func (d *Iris) Normalize() {
	column := make([]float64, len(d.Features))
	for j := range IrisFeatures {
		for i, row := range d.Features {
			column[i] = float64(row[j])
		}
		NormalizeInPlace(column)
		for i, row := range d.Features {
			row[j] = float32(column[i])
		}
	}
}

// Samples pairs each feature vector with its class index
func (d *Iris) Samples() []Sample {
	out := make([]Sample, len(d.Labels))
	for i := range out {
		out[i] = Sample{Input: nn.Vector(d.Features[i]), Target: nn.Target{Label: d.Labels[i]}}
	}
	return out
}
