// Package device picks where PAGNN propagation runs and reports the host CPU.
//
// The default build is CPU only. Building with -tags gpu adds a WebGPU backend that runs
// evaluation-mode propagation steps as a WGSL compute kernel.
package device

import (
	"fmt"
	"log"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"github.com/pkg/errors"

	"github.com/openfluke/pagnn/pagnn"
)

// ErrNoGPU is returned when no GPU backend is available
var ErrNoGPU = errors.New("no GPU backend (build with -tags gpu)")

// Kind is the selected compute device
type Kind string

const (
	KindCPU Kind = "cpu"
	KindGPU Kind = "gpu"
)

// CPUInfo summarizes the host processor
type CPUInfo struct {
	Brand         string
	Vendor        string
	PhysicalCores int
	LogicalCores  int
	AVX2          bool
	FMA           bool
}

// DetectCPU queries cpuid
func DetectCPU() CPUInfo {
	return CPUInfo{
		Brand:         cpuid.CPU.BrandName,
		Vendor:        cpuid.CPU.VendorString,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		AVX2:          cpuid.CPU.Supports(cpuid.AVX2),
		FMA:           cpuid.CPU.Supports(cpuid.FMA3),
	}
}

func (c CPUInfo) String() string {
	brand := c.Brand
	if brand == "" {
		brand = "unknown CPU"
	}
	return fmt.Sprintf("%s (%d cores / %d threads, avx2=%v, fma=%v)", brand, c.PhysicalCores, c.LogicalCores, c.AVX2, c.FMA)
}

// Device is the outcome of Select
type Device struct {
	Kind Kind
	Name string
	CPU  CPUInfo

	propagator pagnn.Propagator
}

// Select resolves a preference: "cpu", "gpu", or "auto" (GPU when available, else CPU)
func Select(preference string) (*Device, error) {
	cpu := DetectCPU()
	host := &Device{Kind: KindCPU, Name: cpu.String(), CPU: cpu}

	switch strings.ToLower(strings.TrimSpace(preference)) {
	case "cpu":
		return host, nil
	case "gpu", "cuda":
		prop, name, err := probeGPU()
		if err != nil {
			return nil, errors.Wrap(err, "select gpu")
		}
		return &Device{Kind: KindGPU, Name: name, CPU: cpu, propagator: prop}, nil
	case "", "auto":
		prop, name, err := probeGPU()
		if err != nil {
			log.Printf("GPU unavailable, using CPU: %v", err)
			return host, nil
		}
		return &Device{Kind: KindGPU, Name: name, CPU: cpu, propagator: prop}, nil
	}
	return nil, errors.Errorf("unknown device %q (want auto, cpu or gpu)", preference)
}

// Attach hands the GPU propagator to layer; a no-op on CPU
func (d *Device) Attach(layer *pagnn.Layer) {
	if d.propagator != nil {
		layer.Accel = d.propagator
	}
}

func (d *Device) String() string {
	return fmt.Sprintf("%s: %s", d.Kind, d.Name)
}
