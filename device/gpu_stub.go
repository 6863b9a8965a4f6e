//go:build !gpu

package device

import "github.com/openfluke/pagnn/pagnn"

func probeGPU() (pagnn.Propagator, string, error) {
	return nil, "", ErrNoGPU
}
