//go:build !gpu

package device

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"

	"github.com/openfluke/pagnn/pagnn"
)

// TestNoGPUBuild verifies the CPU-only build refuses an explicit GPU request
func TestNoGPUBuild(t *testing.T) {
	_, err := Select("gpu")
	if errors.Cause(err) != ErrNoGPU {
		t.Fatalf("Expected ErrNoGPU, got %v", err)
	}

	d, _ := Select("auto")
	if d.Kind != KindCPU {
		t.Errorf("Expected CPU fallback, got %s", d.Kind)
	}
	layer, err := pagnn.New(pagnn.Config{Inputs: 1, Outputs: 1, Steps: 1}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	d.Attach(layer)
	if layer.Accel != nil {
		t.Error("CPU device must not attach an accelerator")
	}
}
