package datasets

import (
	"regexp"
	"strings"
	"unicode"

	porterstemmer "github.com/reiver/go-porterstemmer"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	minTokenLen = 2
	maxTokenLen = 15
)

var alphabetic = regexp.MustCompile(`[\p{L}\p{M}_]+`)

// Deaccent strips combining marks: "café" -> "cafe"
func Deaccent(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// SimplePreprocess lowercases text, optionally strips accents and keeps alphabetic tokens
// of 2 to 15 characters that do not start with an underscore
func SimplePreprocess(text string, deacc bool) []string {
	text = strings.ToLower(text)
	if deacc {
		text = Deaccent(text)
	}
	var tokens []string
	for _, tok := range alphabetic.FindAllString(text, -1) {
		n := len([]rune(tok))
		if n < minTokenLen || n > maxTokenLen || strings.HasPrefix(tok, "_") {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Stem applies the Porter stemmer to every token
func Stem(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = porterstemmer.StemString(tok)
	}
	return out
}
