// Package word2vec holds keyed word vectors: loading the word2vec C text and binary formats,
// building a vocabulary from a corpus, and mapping tokens to table indices.
package word2vec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/openfluke/pagnn/nn"
)

// PadToken is the vocabulary entry used to pad sentences to a common length
const PadToken = "pad"

// KeyedVectors maps words to dense vectors; a word's index is its row in Vectors
type KeyedVectors struct {
	Words   []string
	Index   map[string]int
	Vectors [][]float32
	Dim     int

	Quiet bool // suppress out-of-vocabulary warnings
}

// New returns an empty table of the given dimension
func New(dim int) *KeyedVectors {
	return &KeyedVectors{Index: make(map[string]int), Dim: dim}
}

// Len returns the vocabulary size
func (kv *KeyedVectors) Len() int {
	return len(kv.Words)
}

// Add appends a word; an existing word has its vector replaced
func (kv *KeyedVectors) Add(word string, vector []float32) (int, error) {
	if len(vector) != kv.Dim {
		return -1, errors.Wrapf(nn.ErrShape, "word2vec: vector for %q has %d dimensions, want %d", word, len(vector), kv.Dim)
	}
	if i, ok := kv.Index[word]; ok {
		kv.Vectors[i] = vector
		return i, nil
	}
	kv.Index[word] = len(kv.Words)
	kv.Words = append(kv.Words, word)
	kv.Vectors = append(kv.Vectors, vector)
	return len(kv.Words) - 1, nil
}

// Vector returns the vector of word
func (kv *KeyedVectors) Vector(word string) ([]float32, bool) {
	i, ok := kv.Index[word]
	if !ok {
		return nil, false
	}
	return kv.Vectors[i], true
}

// EnsurePad adds a zero vector for token when missing and returns its index
func (kv *KeyedVectors) EnsurePad(token string) int {
	if i, ok := kv.Index[token]; ok {
		return i
	}
	i, _ := kv.Add(token, make([]float32, kv.Dim))
	return i
}

// Indices maps tokens to rows; unknown words map to row 0 with a warning
func (kv *KeyedVectors) Indices(tokens []string) []int {
	out := make([]int, len(tokens))
	for i, tok := range tokens {
		idx, ok := kv.Index[tok]
		if !ok {
			if !kv.Quiet {
				log.Printf("%s not in vocab", tok)
			}
			idx = 0
		}
		out[i] = idx
	}
	return out
}

// PaddedIndices maps tokens into a maxLen slot sentence filled with padIdx
func (kv *KeyedVectors) PaddedIndices(tokens []string, maxLen, padIdx int) []int {
	out := make([]int, maxLen)
	for i := range out {
		out[i] = padIdx
	}
	if len(tokens) > maxLen {
		tokens = tokens[:maxLen]
	}
	copy(out, kv.Indices(tokens))
	return out
}

// FromCorpus builds a vocabulary of words seen at least minCount times, most frequent first,
// with small random vectors
func FromCorpus(sentences [][]string, dim, minCount int, seed int64) *KeyedVectors {
	counts := map[string]int{}
	first := map[string]int{}
	n := 0
	for _, s := range sentences {
		for _, w := range s {
			if _, ok := first[w]; !ok {
				first[w] = n
			}
			counts[w]++
			n++
		}
	}

	var words []string
	for w, c := range counts {
		if c >= minCount {
			words = append(words, w)
		}
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return first[words[i]] < first[words[j]]
	})

	rng := rand.New(rand.NewSource(seed))
	kv := New(dim)
	for _, w := range words {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32((rng.Float64() - 0.5) / float64(dim))
		}
		kv.Add(w, v)
	}
	return kv
}

// Load reads a word2vec file, picking the text or binary format from its content
func Load(path string) (*KeyedVectors, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open word vectors %s", path)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	binaryFormat, err := sniffBinary(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read word vectors %s", path)
	}
	var kv *KeyedVectors
	if binaryFormat {
		kv, err = ReadBinary(r)
	} else {
		kv, err = ReadText(r)
	}
	return kv, errors.Wrapf(err, "parse word vectors %s", path)
}

// sniffBinary looks past the header for control bytes or invalid UTF-8, neither of which
// appears in the text format
func sniffBinary(r *bufio.Reader) (bool, error) {
	peek, err := r.Peek(4096)
	full := err == nil
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return false, err
	}
	nl := bytes.IndexByte(peek, '\n')
	if nl < 0 {
		return false, nil
	}
	data := peek[nl+1:]
	if full && len(data) > utf8.UTFMax {
		data = data[:len(data)-utf8.UTFMax]
	}
	for _, b := range data {
		if b < 0x20 && b != '\n' && b != '\r' && b != '\t' {
			return true, nil
		}
	}
	return !utf8.Valid(data), nil
}

func readHeader(r *bufio.Reader) (int, int, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return 0, 0, errors.Wrap(err, "read header")
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, 0, errors.Errorf("malformed header %q", strings.TrimSpace(line))
	}
	count, err1 := strconv.Atoi(fields[0])
	dim, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil || count < 0 || dim <= 0 {
		return 0, 0, errors.Errorf("malformed header %q", strings.TrimSpace(line))
	}
	return count, dim, nil
}

// ReadText parses "count dim" followed by one "word v1 ... vdim" line per word
func ReadText(r *bufio.Reader) (*KeyedVectors, error) {
	count, dim, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	kv := New(dim)
	for i := 0; i < count; i++ {
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
			return nil, errors.Wrapf(err, "word %d of %d", i+1, count)
		}
		fields := strings.Fields(line)
		if len(fields) != dim+1 {
			return nil, errors.Errorf("word %d: expected %d values, got %d", i+1, dim, len(fields)-1)
		}
		v := make([]float32, dim)
		for j, s := range fields[1:] {
			x, err := strconv.ParseFloat(s, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "word %q", fields[0])
			}
			v[j] = float32(x)
		}
		kv.Add(fields[0], v)
	}
	return kv, nil
}

// ReadBinary parses the header then, per word, the word, a space and dim little-endian float32s
func ReadBinary(r *bufio.Reader) (*KeyedVectors, error) {
	count, dim, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	kv := New(dim)
	buf := make([]byte, 4*dim)
	for i := 0; i < count; i++ {
		word, err := r.ReadString(' ')
		if err != nil {
			return nil, errors.Wrapf(err, "word %d of %d", i+1, count)
		}
		word = strings.TrimLeft(strings.TrimSuffix(word, " "), "\n")
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.Wrapf(err, "vector of %q", word)
		}
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:]))
		}
		kv.Add(word, v)
	}
	return kv, nil
}

// Save writes the table in the text format, creating parent directories
func (kv *KeyedVectors) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%d %d\n", kv.Len(), kv.Dim)
	for i, word := range kv.Words {
		w.WriteString(word)
		for _, x := range kv.Vectors[i] {
			w.WriteByte(' ')
			w.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

// SaveBinary writes the table in the binary format
func (kv *KeyedVectors) SaveBinary(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%d %d\n", kv.Len(), kv.Dim)
	buf := make([]byte, 4*kv.Dim)
	for i, word := range kv.Words {
		w.WriteString(word + " ")
		for j, x := range kv.Vectors[i] {
			binary.LittleEndian.PutUint32(buf[4*j:], math.Float32bits(x))
		}
		w.Write(buf)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

func (kv *KeyedVectors) String() string {
	return fmt.Sprintf("KeyedVectors(vocab=%d, size=%d)", kv.Len(), kv.Dim)
}
