package sparse

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/openfluke/pagnn/nn"
)

func sparseParam(n int, rng *rand.Rand) *nn.Param {
	p := nn.NewParam("w", n)
	p.Sparse = true
	for i := range p.Data {
		p.Data[i] = float32(rng.NormFloat64())
	}
	return p
}

// TestInitialMaskDensity verifies the random mask keeps the configured fraction
func TestInitialMaskDensity(t *testing.T) {
	rng := rand.New(rand.NewSource(666))
	p := sparseParam(100, rng)
	bias := nn.NewParam("b", 10)

	r, err := NewRigL([]*nn.Param{p, bias}, nn.NewAdamOptimizerDefault(), DefaultConfig(0.3, 1000), rng)
	if err != nil {
		t.Fatalf("NewRigL failed: %v", err)
	}
	if got := p.ActiveCount(); got != 30 {
		t.Errorf("Expected 30 live entries, got %d", got)
	}
	if bias.Mask != nil {
		t.Error("Non-sparse params must be left alone")
	}
	for i, m := range p.Mask {
		if !m && p.Data[i] != 0 {
			t.Errorf("Pruned entry %d holds %f", i, p.Data[i])
		}
	}
	if math.Abs(r.Sparsity()-0.7) > 1e-9 {
		t.Errorf("Expected sparsity 0.7, got %f", r.Sparsity())
	}
}

// TestMaskRespectsSupport verifies only supported entries are ever live
func TestMaskRespectsSupport(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := sparseParam(20, rng)
	p.Support = make([]bool, 20)
	for i := 0; i < 10; i++ {
		p.Support[i] = true
	}

	r, err := NewRigL([]*nn.Param{p}, nn.NewSGDOptimizer(), Config{DenseAllocation: 0.5, TEnd: 100, Delta: 1, Alpha: 0.5}, rng)
	if err != nil {
		t.Fatal(err)
	}
	for step := 0; step < 20; step++ {
		for i := range p.Grad {
			p.Grad[i] = float32(rng.NormFloat64())
		}
		r.Step()
		for i := 10; i < 20; i++ {
			if p.Mask[i] {
				t.Fatalf("Unsupported entry %d became live at step %d", i, step)
			}
		}
	}
}

// TestStepGate verifies the optimizer is skipped exactly on update steps
func TestStepGate(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	p := sparseParam(50, rng)
	r, err := NewRigL([]*nn.Param{p}, nn.NewAdamOptimizerDefault(), Config{DenseAllocation: 0.4, TEnd: 25, Delta: 10, Alpha: 0.3}, rng)
	if err != nil {
		t.Fatal(err)
	}

	var skipped []int
	for step := 1; step <= 40; step++ {
		if !r.Step() {
			skipped = append(skipped, step)
		}
	}
	if len(skipped) != 2 || skipped[0] != 10 || skipped[1] != 20 {
		t.Errorf("Expected updates at steps 10 and 20, got %v", skipped)
	}
	if _, updates := r.Steps(); updates != 2 {
		t.Errorf("Expected 2 topology updates, got %d", updates)
	}
}

// TestUpdateKeepsActiveCount verifies drop and grow balance and grown weights start at zero
func TestUpdateKeepsActiveCount(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	p := sparseParam(40, rng)
	r, err := NewRigL([]*nn.Param{p}, nn.NewAdamOptimizerDefault(), Config{DenseAllocation: 0.5, TEnd: 100, Delta: 1, Alpha: 0.6}, rng)
	if err != nil {
		t.Fatal(err)
	}
	before := append([]bool(nil), p.Mask...)
	// large gradients on dead entries so they are regrown
	for i := range p.Grad {
		if !p.Mask[i] {
			p.Grad[i] = 10
		}
	}

	if r.Step() {
		t.Fatal("Expected a topology update at step 1")
	}
	if got := p.ActiveCount(); got != 20 {
		t.Errorf("Expected 20 live entries after update, got %d", got)
	}
	grown := 0
	for i := range p.Mask {
		if p.Mask[i] && !before[i] {
			grown++
			if p.Data[i] != 0 {
				t.Errorf("Regrown entry %d should start at 0, got %f", i, p.Data[i])
			}
		}
		if !p.Mask[i] && p.Grad[i] != 0 {
			t.Errorf("Pruned entry %d kept gradient %f", i, p.Grad[i])
		}
	}
	want := int(20 * r.DropFraction(1))
	if grown != want {
		t.Errorf("Expected %d regrown entries, got %d", want, grown)
	}
}

// TestDropFractionDecays verifies the cosine schedule
func TestDropFractionDecays(t *testing.T) {
	r := &RigL{Config: Config{TEnd: 100, Alpha: 0.3}}
	if got := r.DropFraction(0); math.Abs(got-0.3) > 1e-12 {
		t.Errorf("Expected 0.3 at step 0, got %f", got)
	}
	if got := r.DropFraction(50); math.Abs(got-0.15) > 1e-12 {
		t.Errorf("Expected 0.15 halfway, got %f", got)
	}
	if got := r.DropFraction(100); got > 1e-12 {
		t.Errorf("Expected 0 at T_end, got %f", got)
	}
}

// TestStaticTopo verifies masks never change
func TestStaticTopo(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	p := sparseParam(30, rng)
	r, err := NewRigL([]*nn.Param{p}, nn.NewSGDOptimizer(), Config{DenseAllocation: 0.3, TEnd: 100, Delta: 1, Alpha: 0.3, StaticTopo: true}, rng)
	if err != nil {
		t.Fatal(err)
	}
	before := append([]bool(nil), p.Mask...)
	for i := 0; i < 10; i++ {
		if !r.Step() {
			t.Fatal("Static topology must never skip the optimizer")
		}
	}
	for i := range before {
		if before[i] != p.Mask[i] {
			t.Fatalf("Mask changed at %d", i)
		}
	}
	if !strings.Contains(r.String(), "static_topo=true") {
		t.Errorf("Unexpected summary %s", r.String())
	}
}

// TestInvalidConfig verifies constructor validation
func TestInvalidConfig(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	p := sparseParam(10, rng)
	for _, c := range []Config{{DenseAllocation: 0, Delta: 1}, {DenseAllocation: 0.5, Delta: 0}} {
		if _, err := NewRigL([]*nn.Param{p}, nn.NewSGDOptimizer(), c, rng); err == nil {
			t.Errorf("Expected error for %+v", c)
		}
	}
	if _, err := NewRigL([]*nn.Param{nn.NewParam("b", 3)}, nn.NewSGDOptimizer(), DefaultConfig(0.5, 10), rng); err == nil {
		t.Error("Expected error without sparse params")
	}
}
