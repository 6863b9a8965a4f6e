package nn

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Optimizer interface defines the contract for all optimizers.
// Frozen params are skipped and entries outside a param's Mask are never moved.
type Optimizer interface {
	// Step applies accumulated gradients to params
	Step(params []*Param, learningRate float32)

	// Reset clears optimizer state (momentum, etc.)
	Reset()

	// GetState returns optimizer state for serialization
	GetState() map[string]interface{}

	// LoadState restores optimizer state from serialization
	LoadState(state map[string]interface{}) error

	// Name returns the optimizer name
	Name() string
}

// OptimizerConfig selects and tunes an optimizer; zero fields take the usual defaults
type OptimizerConfig struct {
	Name        string  `mapstructure:"name"` // "sgd", "sgd_momentum", "adam", "adamw", "rmsprop"
	Beta1       float32 `mapstructure:"beta1"`
	Beta2       float32 `mapstructure:"beta2"`
	Epsilon     float32 `mapstructure:"epsilon"`
	WeightDecay float32 `mapstructure:"weight_decay"`
	Momentum    float32 `mapstructure:"momentum"`
	Dampening   float32 `mapstructure:"dampening"`
	Nesterov    bool    `mapstructure:"nesterov"`
	Alpha       float32 `mapstructure:"alpha"`

	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// NewOptimizer builds the optimizer named in config
func NewOptimizer(config OptimizerConfig) (Optimizer, error) {
	orDefault := func(v, def float32) float32 {
		if v == 0 {
			return def
		}
		return v
	}

	switch strings.ToLower(config.Name) {
	case "sgd":
		return NewSGDOptimizer(), nil
	case "sgd_momentum":
		return NewSGDOptimizerWithMomentum(orDefault(config.Momentum, 0.9), config.Dampening, config.Nesterov), nil
	case "adam", "":
		return NewAdamOptimizer(orDefault(config.Beta1, 0.9), orDefault(config.Beta2, 0.999), orDefault(config.Epsilon, 1e-8)), nil
	case "adamw":
		return NewAdamWOptimizer(orDefault(config.Beta1, 0.9), orDefault(config.Beta2, 0.999),
			orDefault(config.Epsilon, 1e-8), orDefault(config.WeightDecay, 0.01)), nil
	case "rmsprop":
		return NewRMSpropOptimizer(orDefault(config.Alpha, 0.99), orDefault(config.Epsilon, 1e-8), config.Momentum), nil
	}
	return nil, errors.Errorf("unknown optimizer: %s", config.Name)
}

func paramKey(i int, p *Param) string {
	return fmt.Sprintf("%d_%s", i, p.Name)
}

// ============================================================================
// SGD Optimizer (Stochastic Gradient Descent with optional momentum)
// ============================================================================

type SGDOptimizer struct {
	momentum   float32
	velocities map[string][]float32
	dampening  float32
	nesterov   bool
}

func NewSGDOptimizer() *SGDOptimizer {
	return &SGDOptimizer{velocities: make(map[string][]float32)}
}

func NewSGDOptimizerWithMomentum(momentum, dampening float32, nesterov bool) *SGDOptimizer {
	return &SGDOptimizer{
		momentum:   momentum,
		velocities: make(map[string][]float32),
		dampening:  dampening,
		nesterov:   nesterov,
	}
}

func (opt *SGDOptimizer) Step(params []*Param, learningRate float32) {
	for i, p := range params {
		if p.Frozen {
			continue
		}

		if opt.momentum == 0 {
			// w = w - lr * grad
			for j := range p.Data {
				if p.Active(j) {
					p.Data[j] -= learningRate * p.Grad[j]
				}
			}
			continue
		}

		key := paramKey(i, p)
		if opt.velocities[key] == nil {
			opt.velocities[key] = make([]float32, len(p.Data))
		}
		v := opt.velocities[key]

		// v = momentum * v + (1 - dampening) * grad
		// w = w - lr * v (or w - lr * (grad + momentum * v) for Nesterov)
		for j := range p.Data {
			if !p.Active(j) {
				continue
			}
			grad := p.Grad[j]
			v[j] = opt.momentum*v[j] + (1-opt.dampening)*grad
			if opt.nesterov {
				p.Data[j] -= learningRate * (grad + opt.momentum*v[j])
			} else {
				p.Data[j] -= learningRate * v[j]
			}
		}
	}
}

func (opt *SGDOptimizer) Reset() {
	opt.velocities = make(map[string][]float32)
}

func (opt *SGDOptimizer) GetState() map[string]interface{} {
	return map[string]interface{}{
		"type":      "sgd",
		"momentum":  opt.momentum,
		"dampening": opt.dampening,
		"nesterov":  opt.nesterov,
	}
}

func (opt *SGDOptimizer) LoadState(state map[string]interface{}) error {
	if t, ok := state["type"].(string); !ok || t != "sgd" {
		return errors.Errorf("invalid optimizer type: expected sgd, got %v", state["type"])
	}
	if m, ok := state["momentum"].(float64); ok {
		opt.momentum = float32(m)
	}
	if d, ok := state["dampening"].(float64); ok {
		opt.dampening = float32(d)
	}
	if n, ok := state["nesterov"].(bool); ok {
		opt.nesterov = n
	}
	return nil
}

func (opt *SGDOptimizer) Name() string {
	if opt.momentum > 0 {
		if opt.nesterov {
			return "SGD (Nesterov momentum)"
		}
		return "SGD (momentum)"
	}
	return "SGD"
}

// ============================================================================
// Adam / AdamW Optimizer (AdamW = Adam with decoupled weight decay)
// ============================================================================

type AdamWOptimizer struct {
	beta1       float32
	beta2       float32
	epsilon     float32
	weightDecay float32
	step        int
	name        string

	// First moment estimates (momentum)
	m map[string][]float32

	// Second moment estimates (variance)
	v map[string][]float32
}

func NewAdamWOptimizer(beta1, beta2, epsilon, weightDecay float32) *AdamWOptimizer {
	return &AdamWOptimizer{
		beta1:       beta1,
		beta2:       beta2,
		epsilon:     epsilon,
		weightDecay: weightDecay,
		name:        "AdamW",
		m:           make(map[string][]float32),
		v:           make(map[string][]float32),
	}
}

// NewAdamOptimizer is AdamW without weight decay, the torch.optim.Adam default
func NewAdamOptimizer(beta1, beta2, epsilon float32) *AdamWOptimizer {
	opt := NewAdamWOptimizer(beta1, beta2, epsilon, 0)
	opt.name = "Adam"
	return opt
}

func NewAdamOptimizerDefault() *AdamWOptimizer {
	return NewAdamOptimizer(0.9, 0.999, 1e-8)
}

func (opt *AdamWOptimizer) Step(params []*Param, learningRate float32) {
	opt.step++

	biasCorrection1 := 1.0 - float32(math.Pow(float64(opt.beta1), float64(opt.step)))
	biasCorrection2 := 1.0 - float32(math.Pow(float64(opt.beta2), float64(opt.step)))

	for i, p := range params {
		if p.Frozen {
			continue
		}

		key := paramKey(i, p)
		if opt.m[key] == nil {
			opt.m[key] = make([]float32, len(p.Data))
			opt.v[key] = make([]float32, len(p.Data))
		}
		m, v := opt.m[key], opt.v[key]

		for j := range p.Data {
			if !p.Active(j) {
				continue
			}
			grad := p.Grad[j]

			m[j] = opt.beta1*m[j] + (1-opt.beta1)*grad
			v[j] = opt.beta2*v[j] + (1-opt.beta2)*grad*grad

			mHat := m[j] / biasCorrection1
			vHat := v[j] / biasCorrection2

			p.Data[j] -= learningRate * (mHat/(float32(math.Sqrt(float64(vHat)))+opt.epsilon) + opt.weightDecay*p.Data[j])
		}
	}
}

// ResetMoments clears the moment estimates of the given entries of param i, used for regrown connections
func (opt *AdamWOptimizer) ResetMoments(i int, p *Param, entries []int) {
	key := paramKey(i, p)
	if opt.m[key] == nil {
		return
	}
	for _, j := range entries {
		opt.m[key][j] = 0
		opt.v[key][j] = 0
	}
}

func (opt *AdamWOptimizer) Reset() {
	opt.step = 0
	opt.m = make(map[string][]float32)
	opt.v = make(map[string][]float32)
}

func (opt *AdamWOptimizer) GetState() map[string]interface{} {
	return map[string]interface{}{
		"type":         strings.ToLower(opt.name),
		"beta1":        opt.beta1,
		"beta2":        opt.beta2,
		"epsilon":      opt.epsilon,
		"weight_decay": opt.weightDecay,
		"step":         opt.step,
	}
}

func (opt *AdamWOptimizer) LoadState(state map[string]interface{}) error {
	if t, ok := state["type"].(string); !ok || t != strings.ToLower(opt.name) {
		return errors.Errorf("invalid optimizer type: expected %s, got %v", strings.ToLower(opt.name), state["type"])
	}
	if b1, ok := state["beta1"].(float64); ok {
		opt.beta1 = float32(b1)
	}
	if b2, ok := state["beta2"].(float64); ok {
		opt.beta2 = float32(b2)
	}
	if eps, ok := state["epsilon"].(float64); ok {
		opt.epsilon = float32(eps)
	}
	if wd, ok := state["weight_decay"].(float64); ok {
		opt.weightDecay = float32(wd)
	}
	if s, ok := state["step"].(float64); ok {
		opt.step = int(s)
	}
	return nil
}

func (opt *AdamWOptimizer) Name() string {
	return opt.name
}

// ============================================================================
// RMSprop Optimizer
// ============================================================================

type RMSpropOptimizer struct {
	alpha    float32 // Decay rate
	epsilon  float32
	momentum float32

	// Running average of squared gradients
	v map[string][]float32

	// Momentum buffer (if momentum > 0)
	buf map[string][]float32
}

func NewRMSpropOptimizer(alpha, epsilon, momentum float32) *RMSpropOptimizer {
	return &RMSpropOptimizer{
		alpha:    alpha,
		epsilon:  epsilon,
		momentum: momentum,
		v:        make(map[string][]float32),
		buf:      make(map[string][]float32),
	}
}

func (opt *RMSpropOptimizer) Step(params []*Param, learningRate float32) {
	for i, p := range params {
		if p.Frozen {
			continue
		}

		key := paramKey(i, p)
		if opt.v[key] == nil {
			opt.v[key] = make([]float32, len(p.Data))
			if opt.momentum > 0 {
				opt.buf[key] = make([]float32, len(p.Data))
			}
		}
		v := opt.v[key]

		for j := range p.Data {
			if !p.Active(j) {
				continue
			}
			grad := p.Grad[j]

			// v = alpha * v + (1 - alpha) * grad^2
			v[j] = opt.alpha*v[j] + (1-opt.alpha)*grad*grad
			scaled := grad / float32(math.Sqrt(float64(v[j]+opt.epsilon)))

			if opt.momentum > 0 {
				opt.buf[key][j] = opt.momentum*opt.buf[key][j] + scaled
				p.Data[j] -= learningRate * opt.buf[key][j]
			} else {
				p.Data[j] -= learningRate * scaled
			}
		}
	}
}

func (opt *RMSpropOptimizer) Reset() {
	opt.v = make(map[string][]float32)
	opt.buf = make(map[string][]float32)
}

func (opt *RMSpropOptimizer) GetState() map[string]interface{} {
	return map[string]interface{}{
		"type":     "rmsprop",
		"alpha":    opt.alpha,
		"epsilon":  opt.epsilon,
		"momentum": opt.momentum,
	}
}

func (opt *RMSpropOptimizer) LoadState(state map[string]interface{}) error {
	if t, ok := state["type"].(string); !ok || t != "rmsprop" {
		return errors.Errorf("invalid optimizer type: expected rmsprop, got %v", state["type"])
	}
	if a, ok := state["alpha"].(float64); ok {
		opt.alpha = float32(a)
	}
	if eps, ok := state["epsilon"].(float64); ok {
		opt.epsilon = float32(eps)
	}
	if m, ok := state["momentum"].(float64); ok {
		opt.momentum = float32(m)
	}
	return nil
}

func (opt *RMSpropOptimizer) Name() string {
	if opt.momentum > 0 {
		return "RMSprop (momentum)"
	}
	return "RMSprop"
}
