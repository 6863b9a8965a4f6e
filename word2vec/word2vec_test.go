package word2vec

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pkg/errors"

	"github.com/openfluke/pagnn/nn"
)

func sampleVectors() *KeyedVectors {
	kv := New(3)
	kv.Add("good", []float32{0.5, -1, 2})
	kv.Add("bad", []float32{-0.25, 0, 1.5})
	return kv
}

// TestTextRoundTrip verifies Save and Load with the text format
func TestTextRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors", "w2v.txt")
	kv := sampleVectors()
	if err := kv.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(loaded.Words, kv.Words) || !reflect.DeepEqual(loaded.Vectors, kv.Vectors) {
		t.Errorf("Round trip mismatch: %v %v", loaded.Words, loaded.Vectors)
	}
}

// TestBinaryRoundTrip verifies the binary format is detected and decoded
func TestBinaryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w2v.bin")
	kv := sampleVectors()
	if err := kv.SaveBinary(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Dim != 3 || !reflect.DeepEqual(loaded.Vectors, kv.Vectors) || loaded.Index["bad"] != 1 {
		t.Errorf("Binary round trip mismatch: %v", loaded)
	}
}

// TestIndices verifies OOV mapping and padding
func TestIndices(t *testing.T) {
	kv := sampleVectors()
	kv.Quiet = true
	pad := kv.EnsurePad(PadToken)
	if pad != 2 || kv.EnsurePad(PadToken) != 2 {
		t.Errorf("Expected pad index 2, got %d", pad)
	}
	if v, _ := kv.Vector(PadToken); !reflect.DeepEqual(v, []float32{0, 0, 0}) {
		t.Errorf("Pad vector should be zero, got %v", v)
	}

	if got := kv.Indices([]string{"bad", "unknown", "good"}); !reflect.DeepEqual(got, []int{1, 0, 0}) {
		t.Errorf("Unexpected indices %v", got)
	}
	if got := kv.PaddedIndices([]string{"bad"}, 4, pad); !reflect.DeepEqual(got, []int{1, 2, 2, 2}) {
		t.Errorf("Unexpected padded indices %v", got)
	}
	if got := kv.PaddedIndices([]string{"bad", "good", "bad"}, 2, pad); !reflect.DeepEqual(got, []int{1, 0}) {
		t.Errorf("Expected truncation, got %v", got)
	}
}

// TestFromCorpus verifies frequency ordering and the min count
func TestFromCorpus(t *testing.T) {
	corpus := [][]string{{"food", "great", "food"}, {"service", "great", "food"}, {"rare"}}
	kv := FromCorpus(corpus, 8, 2, 666)
	if !reflect.DeepEqual(kv.Words, []string{"food", "great"}) {
		t.Errorf("Unexpected vocabulary %v", kv.Words)
	}
	for _, v := range kv.Vectors {
		if len(v) != 8 {
			t.Fatalf("Expected 8 dimensions, got %d", len(v))
		}
		for _, x := range v {
			if x < -0.5/8 || x > 0.5/8 {
				t.Errorf("Vector value %f outside init range", x)
			}
		}
	}
	again := FromCorpus(corpus, 8, 2, 666)
	if !reflect.DeepEqual(kv.Vectors, again.Vectors) {
		t.Error("Vectors must be deterministic for a seed")
	}
}

// TestAddDimensionMismatch verifies validation
func TestAddDimensionMismatch(t *testing.T) {
	_, err := New(2).Add("x", []float32{1})
	if errors.Cause(err) != nn.ErrShape {
		t.Errorf("Expected ErrShape, got %v", err)
	}
}
