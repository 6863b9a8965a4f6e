// Package sparse implements RigL dynamic sparse training.
//
// RigL keeps a fixed fraction of each sparse parameter alive. Every Delta optimizer steps, until
// TEnd, it drops the weakest live connections and regrows the same number of dead connections
// whose dense gradient is largest.
package sparse

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/openfluke/pagnn/nn"
)

// Config tunes the scheduler
type Config struct {
	DenseAllocation float64 `mapstructure:"dense_allocation"` // fraction of supported connections kept alive
	TEnd            int     `mapstructure:"t_end"`            // no topology updates at or after this step
	Delta           int     `mapstructure:"delta"`            // steps between topology updates
	Alpha           float64 `mapstructure:"alpha"`            // initial drop fraction
	StaticTopo      bool    `mapstructure:"static_topo"`      // keep the initial random masks
}

// DefaultConfig returns the usual RigL constants for a training run ending at tEnd
func DefaultConfig(denseAllocation float64, tEnd int) Config {
	return Config{DenseAllocation: denseAllocation, TEnd: tEnd, Delta: 100, Alpha: 0.3}
}

// MomentResetter is implemented by optimizers that keep per-entry state
type MomentResetter interface {
	ResetMoments(i int, p *nn.Param, entries []int)
}

// RigL is the dynamic sparsity scheduler. It owns the Mask of every Sparse param it was given.
type RigL struct {
	Config

	params    []*nn.Param
	indices   []int // position of each sparse param in the optimizer's param list
	optimizer nn.Optimizer
	rng       *rand.Rand

	step      int
	riglSteps int
}

// NewRigL draws random masks of the configured density for every Sparse param in params.
// params must be the list handed to the optimizer so regrown entries can have their moments reset.
func NewRigL(params []*nn.Param, optimizer nn.Optimizer, config Config, rng *rand.Rand) (*RigL, error) {
	if config.DenseAllocation <= 0 || config.DenseAllocation > 1 {
		return nil, errors.Errorf("rigl: dense allocation %g outside (0, 1]", config.DenseAllocation)
	}
	if config.Delta <= 0 {
		return nil, errors.Errorf("rigl: delta must be positive, got %d", config.Delta)
	}
	if config.TEnd < 0 {
		return nil, errors.Errorf("rigl: negative T_end %d", config.TEnd)
	}

	r := &RigL{Config: config, optimizer: optimizer, rng: rng}
	for i, p := range params {
		if !p.Sparse || p.Frozen {
			continue
		}
		r.params = append(r.params, p)
		r.indices = append(r.indices, i)
		r.randomMask(p)
	}
	if len(r.params) == 0 {
		return nil, errors.New("rigl: no sparse parameters")
	}
	return r, nil
}

func (r *RigL) randomMask(p *nn.Param) {
	var candidates []int
	for i := range p.Data {
		if p.Supported(i) {
			candidates = append(candidates, i)
		}
	}
	keep := int(r.DenseAllocation * float64(len(candidates)))

	p.Mask = make([]bool, len(p.Data))
	r.rng.Shuffle(len(candidates), func(a, b int) { candidates[a], candidates[b] = candidates[b], candidates[a] })
	for _, i := range candidates[:keep] {
		p.Mask[i] = true
	}
	p.ApplyMask()
}

// Step is called after backward and before the optimizer.
// It returns false when it rewired the topology, in which case the optimizer step must be skipped.
func (r *RigL) Step() bool {
	r.step++
	if r.StaticTopo {
		r.maskGrads()
		return true
	}
	if r.step%r.Delta == 0 && r.step < r.TEnd {
		r.update()
		r.riglSteps++
		return false
	}
	r.maskGrads()
	return true
}

func (r *RigL) maskGrads() {
	for _, p := range r.params {
		p.MaskGrad()
	}
}

// ApplyMasks zeroes every pruned weight; call after each optimizer step
func (r *RigL) ApplyMasks() {
	for _, p := range r.params {
		p.ApplyMask()
	}
}

// DropFraction is the cosine-decayed fraction of live connections replaced at step
func (r *RigL) DropFraction(step int) float64 {
	return r.Alpha / 2 * (1 + math.Cos(float64(step)*math.Pi/float64(r.TEnd)))
}

func (r *RigL) update() {
	drop := r.DropFraction(r.step)
	resetter, _ := r.optimizer.(MomentResetter)

	for k, p := range r.params {
		active := p.ActiveCount()
		nPrune := int(float64(active) * drop)
		if nPrune == 0 {
			continue
		}

		var live []int
		for i, m := range p.Mask {
			if m {
				live = append(live, i)
			}
		}
		// strongest first; the tail is dropped
		sort.SliceStable(live, func(a, b int) bool {
			return math.Abs(float64(p.Data[live[a]])) > math.Abs(float64(p.Data[live[b]]))
		})
		kept := make([]bool, len(p.Data))
		for _, i := range live[:active-nPrune] {
			kept[i] = true
		}

		var candidates []int
		for i := range p.Data {
			if !kept[i] && p.Supported(i) {
				candidates = append(candidates, i)
			}
		}
		sort.SliceStable(candidates, func(a, b int) bool {
			return math.Abs(float64(p.Grad[candidates[a]])) > math.Abs(float64(p.Grad[candidates[b]]))
		})
		if nPrune > len(candidates) {
			nPrune = len(candidates)
		}
		grown := candidates[:nPrune]

		// grown connections start from zero, including ones dropped in this same update
		for _, i := range grown {
			kept[i] = true
			p.Data[i] = 0
		}
		p.Mask = kept
		p.ApplyMask()
		p.MaskGrad()

		if resetter != nil {
			resetter.ResetMoments(r.indices[k], p, grown)
		}
	}
}

// Sparsity returns the fraction of supported entries that are pruned across all sparse params
func (r *RigL) Sparsity() float64 {
	supported, active := 0, 0
	for _, p := range r.params {
		for i := range p.Data {
			if p.Supported(i) {
				supported++
			}
		}
		active += p.ActiveCount()
	}
	if supported == 0 {
		return 0
	}
	return 1 - float64(active)/float64(supported)
}

// Steps returns the number of optimizer steps seen and the number of topology updates done
func (r *RigL) Steps() (int, int) {
	return r.step, r.riglSteps
}

func (r *RigL) String() string {
	var sb strings.Builder
	sb.WriteString("RigLScheduler(\n")
	total := 0
	for _, p := range r.params {
		fmt.Fprintf(&sb, "  %s: %d/%d nonzero\n", p.Name, p.ActiveCount(), p.Numel())
		total += p.ActiveCount()
	}
	fmt.Fprintf(&sb, "  total_nonzero_params=%d\n", total)
	fmt.Fprintf(&sb, "  dense_allocation=%.2f, delta=%d, alpha=%.2f, T_end=%d, static_topo=%v\n",
		r.DenseAllocation, r.Delta, r.Alpha, r.TEnd, r.StaticTopo)
	fmt.Fprintf(&sb, "  step=%d, num_rigl_steps=%d\n)", r.step, r.riglSteps)
	return sb.String()
}
