package datasets

import (
	"math"
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

const irisCSV = `Id,SepalLengthCm,SepalWidthCm,PetalLengthCm,PetalWidthCm,Species
1,5.1,3.5,1.4,0.2,Iris-setosa
2,7.0,3.2,4.7,1.4,Iris-versicolor
3,6.3,3.3,6.0,2.5,Iris-virginica
4,4.9,,1.4,0.2,Iris-setosa
5,5.8,2.7,5.1,1.9,Iris-virginica
`

// TestParseIris verifies NA rows are dropped and species map to sorted class indices
func TestParseIris(t *testing.T) {
	iris, err := ParseIris(strings.NewReader(irisCSV))
	if err != nil {
		t.Fatalf("ParseIris failed: %v", err)
	}
	if len(iris.Features) != 4 {
		t.Fatalf("Expected 4 complete rows, got %d", len(iris.Features))
	}
	if !reflect.DeepEqual(iris.Classes, []string{"Iris-setosa", "Iris-versicolor", "Iris-virginica"}) {
		t.Errorf("Unexpected classes %v", iris.Classes)
	}
	if !reflect.DeepEqual(iris.Labels, []int{0, 1, 2, 2}) {
		t.Errorf("Unexpected labels %v", iris.Labels)
	}
	if len(iris.Features[0]) != 4 || iris.Features[0][0] != 5.1 {
		t.Errorf("Id column must be dropped, got %v", iris.Features[0])
	}

	samples := iris.Samples()
	if samples[1].Target.Label != 1 || len(samples[1].Input.Frames) != 1 {
		t.Errorf("Unexpected sample %+v", samples[1])
	}

	iris.Shuffle(rand.New(rand.NewSource(666)))
	for i, row := range iris.Features {
		want := map[float32]int{5.1: 0, 7.0: 1, 6.3: 2, 5.8: 2}[row[0]]
		if iris.Labels[i] != want {
			t.Errorf("Shuffle separated row %v from its label", row)
		}
	}

	iris.Normalize()
	for _, row := range iris.Features {
		for _, v := range row {
			if v < 0 || v > 1 {
				t.Errorf("Normalized value %f outside [0, 1]", v)
			}
		}
	}
}

// TestParseIrisMissingColumn verifies header validation
func TestParseIrisMissingColumn(t *testing.T) {
	if _, err := ParseIris(strings.NewReader("Id,Species\n1,a\n")); err == nil {
		t.Error("Expected error for missing measurement columns")
	}
}

// TestEmbeddedFlights verifies the embedded passenger table
func TestEmbeddedFlights(t *testing.T) {
	flights, err := Flights()
	if err != nil {
		t.Fatal(err)
	}
	if len(flights) != 144 {
		t.Fatalf("Expected 144 months, got %d", len(flights))
	}
	if flights[0].Year != 1949 || flights[0].Month != "Jan" || flights[0].Passengers != 112 {
		t.Errorf("Unexpected first month %+v", flights[0])
	}
	last := flights[143]
	if last.Year != 1960 || last.Month != "Dec" || last.Passengers != 432 {
		t.Errorf("Unexpected last month %+v", last)
	}
	if got := Passengers(flights)[6]; got != 148 {
		t.Errorf("Expected 148 passengers in July 1949, got %f", got)
	}
}

// TestMinMaxScaler verifies the (-1, 1) range and the inverse
func TestMinMaxScaler(t *testing.T) {
	s := NewMinMaxScaler(-1, 1)
	data := []float64{100, 150, 200, 300}
	scaled, err := s.FitTransform(data)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{-1, -0.5, 0, 1}
	for i := range want {
		if math.Abs(scaled[i]-want[i]) > 1e-12 {
			t.Errorf("Index %d: expected %f, got %f", i, want[i], scaled[i])
		}
	}
	back := s.InverseTransform(scaled)
	for i := range data {
		if math.Abs(back[i]-data[i]) > 1e-9 {
			t.Errorf("Inverse index %d: expected %f, got %f", i, data[i], back[i])
		}
	}
	if err := NewMinMaxScaler(1, -1).Fit(data); err == nil {
		t.Error("Expected error for inverted range")
	}
}

// TestInOutSequences verifies windows and labels
func TestInOutSequences(t *testing.T) {
	seqs := InOutSequences([]float32{1, 2, 3, 4, 5}, 3)
	if len(seqs) != 2 {
		t.Fatalf("Expected 2 windows, got %d", len(seqs))
	}
	if got := seqs[1].Input.Flat(); !reflect.DeepEqual(got, []float32{2, 3, 4}) {
		t.Errorf("Unexpected window %v", got)
	}
	if seqs[1].Target.Values[0] != 5 {
		t.Errorf("Expected label 5, got %v", seqs[1].Target.Values)
	}
}

// TestOneHotAndNormalize verifies the helper encoders
func TestOneHotAndNormalize(t *testing.T) {
	enc, cats := OneHot([]string{"b", "a", "b"})
	if !reflect.DeepEqual(cats, []string{"a", "b"}) || enc[0][1] != 1 || enc[1][0] != 1 {
		t.Errorf("Unexpected encoding %v %v", enc, cats)
	}
	col := []float64{2, 4, 6}
	NormalizeInPlace(col)
	if !reflect.DeepEqual(col, []float64{0, 0.5, 1}) {
		t.Errorf("Unexpected normalized column %v", col)
	}
}

// TestLoader verifies batch boundaries
func TestLoader(t *testing.T) {
	samples := make([]Sample, 23)
	l := NewLoader(samples, 10)
	if l.Len() != 3 {
		t.Errorf("Expected 3 batches, got %d", l.Len())
	}
	batches := l.Batches()
	if len(batches[2]) != 3 {
		t.Errorf("Expected a short final batch of 3, got %d", len(batches[2]))
	}
	train, test := SplitAt(samples, 0.67)
	if len(train) != 15 || len(test) != 8 {
		t.Errorf("Expected 15/8 split, got %d/%d", len(train), len(test))
	}
}

// TestTrainTestIndices verifies the held-out size and determinism
func TestTrainTestIndices(t *testing.T) {
	train, test := TrainTestIndices(10, 0.3, true, 15)
	if len(train) != 7 || len(test) != 3 {
		t.Errorf("Expected 7/3 split, got %d/%d", len(train), len(test))
	}
	train2, _ := TrainTestIndices(10, 0.3, true, 15)
	if !reflect.DeepEqual(train, train2) {
		t.Error("Split must be deterministic for a seed")
	}
	_, ordered := TrainTestIndices(5, 0.4, false, 0)
	if !reflect.DeepEqual(ordered, []int{3, 4}) {
		t.Errorf("Unshuffled split should hold out the tail, got %v", ordered)
	}
}

// TestSentiment verifies star bucketing and per-class selection order
func TestSentiment(t *testing.T) {
	for stars, want := range map[float64]int{1: Negative, 2: Negative, 3: Neutral, 4: Positive, 5: Positive} {
		if got := MapSentiment(stars); got != want {
			t.Errorf("Stars %v: expected %d, got %d", stars, want, got)
		}
	}

	reviews := []Review{{Sentiment: Neutral}, {Sentiment: Positive, Text: "p1"}, {Sentiment: Negative}, {Sentiment: Positive, Text: "p2"}, {Sentiment: Positive, Text: "p3"}}
	top := TopPerClass(reviews, 2)
	var order []int
	for _, r := range top {
		order = append(order, r.Sentiment)
	}
	if !reflect.DeepEqual(order, []int{Positive, Positive, Negative, Neutral}) {
		t.Errorf("Unexpected order %v", order)
	}
	if top[1].Text != "p2" {
		t.Errorf("Expected the first reviews of a class, got %q", top[1].Text)
	}
}

// TestParseYelp verifies header mapping and tokenization
func TestParseYelp(t *testing.T) {
	csv := "business_id,cool,date,funny,review_id,stars,text,useful,user_id\n" +
		"b1,0,2018-01-01,1,r1,5,\"Great café, running back!\",2,u1\n" +
		"b2,0,2018-01-02,0,r2,2,\"a x_y 123 Terrible\",0,u2\n"
	reviews, err := ParseYelp(strings.NewReader(csv))
	if err != nil {
		t.Fatal(err)
	}
	if len(reviews) != 2 || reviews[0].Sentiment != Positive || reviews[1].Sentiment != Negative {
		t.Fatalf("Unexpected reviews %+v", reviews)
	}
	if reviews[0].Funny != 1 || reviews[0].Useful != 2 || reviews[0].UserID != "u1" {
		t.Errorf("Unexpected fields %+v", reviews[0])
	}

	Tokenize(reviews)
	if got := strings.Join(reviews[0].Tokens, " "); got != "great cafe run back" {
		t.Errorf("Unexpected tokens %q", got)
	}
	if MaxTokens(reviews) != 4 {
		t.Errorf("Expected 4 tokens max, got %d", MaxTokens(reviews))
	}
}

// TestSimplePreprocess verifies token filters
func TestSimplePreprocess(t *testing.T) {
	got := SimplePreprocess("I ate at Café Naïve _hidden 42x supercalifragilistic", true)
	expected := []string{"ate", "at", "cafe", "naive"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
	if Deaccent("résumé") != "resume" {
		t.Errorf("Unexpected deaccent %q", Deaccent("résumé"))
	}
}
