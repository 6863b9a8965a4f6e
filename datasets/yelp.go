package datasets

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Sentiment classes
const (
	Negative = 0
	Neutral  = 1
	Positive = 2

	NumSentiments = 3
)

// Review is one row of the Yelp reviews CSV
type Review struct {
	BusinessID string
	Cool       int
	Date       string
	Funny      int
	ReviewID   string
	Stars      float64
	Text       string
	Useful     int
	UserID     string

	Sentiment int
	Tokens    []string // stemmed tokens of Text
}

// MapSentiment buckets a star rating: <= 2 negative, 3 neutral, otherwise positive
func MapSentiment(stars float64) int {
	switch {
	case stars <= 2:
		return Negative
	case stars == 3:
		return Neutral
	}
	return Positive
}

// LoadYelp reads the reviews CSV at path
func LoadYelp(path string) ([]Review, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open yelp csv %s", path)
	}
	defer f.Close()
	reviews, err := ParseYelp(bufio.NewReader(f))
	return reviews, errors.Wrapf(err, "parse yelp csv %s", path)
}

// ParseYelp reads reviews by header name and assigns each its sentiment.
// Only stars and text are required columns.
func ParseYelp(r io.Reader) ([]Review, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, name := range []string{"stars", "text"} {
		if _, ok := col[name]; !ok {
			return nil, errors.Errorf("missing column %q", name)
		}
	}

	field := func(rec []string, name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}
	atoi := func(s string) int {
		v, _ := strconv.Atoi(strings.TrimSpace(s))
		return v
	}

	var reviews []Review
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		stars, err := strconv.ParseFloat(strings.TrimSpace(field(rec, "stars")), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: stars", line)
		}
		reviews = append(reviews, Review{
			BusinessID: field(rec, "business_id"),
			Cool:       atoi(field(rec, "cool")),
			Date:       field(rec, "date"),
			Funny:      atoi(field(rec, "funny")),
			ReviewID:   field(rec, "review_id"),
			Stars:      stars,
			Text:       field(rec, "text"),
			Useful:     atoi(field(rec, "useful")),
			UserID:     field(rec, "user_id"),
			Sentiment:  MapSentiment(stars),
		})
	}
	return reviews, nil
}

// TopPerClass keeps the first n reviews of each sentiment, concatenated positive, negative, neutral
func TopPerClass(reviews []Review, n int) []Review {
	var out []Review
	for _, sentiment := range []int{Positive, Negative, Neutral} {
		taken := 0
		for _, r := range reviews {
			if taken == n {
				break
			}
			if r.Sentiment == sentiment {
				out = append(out, r)
				taken++
			}
		}
	}
	return out
}

// Tokenize fills Tokens with the deaccented, stemmed tokens of each review's text
func Tokenize(reviews []Review) {
	for i := range reviews {
		reviews[i].Tokens = Stem(SimplePreprocess(reviews[i].Text, true))
	}
}

// SplitReviews shuffles with seed and holds out testFrac of the reviews
func SplitReviews(reviews []Review, testFrac float64, seed int64) (train, test []Review) {
	trainIdx, testIdx := TrainTestIndices(len(reviews), testFrac, true, seed)
	for _, i := range trainIdx {
		train = append(train, reviews[i])
	}
	for _, i := range testIdx {
		test = append(test, reviews[i])
	}
	return train, test
}

// MaxTokens returns the longest token count across reviews
func MaxTokens(reviews []Review) int {
	longest := 0
	for _, r := range reviews {
		if len(r.Tokens) > longest {
			longest = len(r.Tokens)
		}
	}
	return longest
}
