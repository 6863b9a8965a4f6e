package device

import (
	"strings"
	"testing"
)

// TestSelectCPU verifies the host device and CPU report
func TestSelectCPU(t *testing.T) {
	d, err := Select("cpu")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if d.Kind != KindCPU {
		t.Errorf("Expected cpu, got %s", d.Kind)
	}
	if d.CPU.LogicalCores < 0 || !strings.HasPrefix(d.String(), "cpu: ") {
		t.Errorf("Unexpected device %s", d)
	}
}

// TestSelectAutoNeverFails verifies auto always yields a device
func TestSelectAutoNeverFails(t *testing.T) {
	d, err := Select("auto")
	if err != nil || d == nil {
		t.Fatalf("auto must fall back to CPU, got %v", err)
	}
}

// TestSelectUnknown verifies preference validation
func TestSelectUnknown(t *testing.T) {
	if _, err := Select("tpu"); err == nil {
		t.Error("Expected error for unknown device")
	}
}
