package nn

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// LRScheduler maps an optimizer step to a learning rate
type LRScheduler interface {
	// GetLR returns the learning rate for the given step
	GetLR(step int) float32

	// Name returns the scheduler name
	Name() string
}

// SchedulerConfig selects a schedule; zero fields take defaults relative to the base rate
type SchedulerConfig struct {
	Name        string  `mapstructure:"name"` // "constant", "linear", "cosine", "exponential", "step", "warmup"
	TotalSteps  int     `mapstructure:"total_steps"`
	WarmupSteps int     `mapstructure:"warmup_steps"`
	MinLR       float32 `mapstructure:"min_lr"`
	DecayRate   float32 `mapstructure:"decay_rate"`
	DecaySteps  int     `mapstructure:"decay_steps"`
}

// NewScheduler builds the schedule named in config around baseLR
func NewScheduler(baseLR float32, config SchedulerConfig) (LRScheduler, error) {
	switch strings.ToLower(config.Name) {
	case "constant", "":
		return ConstantScheduler{BaseLR: baseLR}, nil

	case "linear":
		minLR := config.MinLR
		if minLR == 0 {
			minLR = baseLR * 0.01
		}
		return LinearDecayScheduler{InitialLR: baseLR, FinalLR: minLR, TotalSteps: config.TotalSteps}, nil

	case "cosine":
		return CosineAnnealingScheduler{InitialLR: baseLR, MinLR: config.MinLR, TotalSteps: config.TotalSteps}, nil

	case "exponential":
		decayRate, decaySteps := config.DecayRate, config.DecaySteps
		if decayRate == 0 {
			decayRate = 0.96
		}
		if decaySteps == 0 {
			decaySteps = 1000
		}
		return ExponentialDecayScheduler{InitialLR: baseLR, DecayRate: decayRate, DecaySteps: decaySteps}, nil

	case "step":
		decayRate, decaySteps := config.DecayRate, config.DecaySteps
		if decayRate == 0 {
			decayRate = 0.1
		}
		if decaySteps == 0 {
			decaySteps = 1000
		}
		return StepDecayScheduler{InitialLR: baseLR, DecayFactor: decayRate, StepSize: decaySteps}, nil

	case "warmup":
		return WarmupScheduler{
			WarmupSteps: config.WarmupSteps,
			WarmupLR:    config.MinLR,
			BaseLR:      baseLR,
			After:       ConstantScheduler{BaseLR: baseLR},
		}, nil
	}
	return nil, errors.Errorf("unknown scheduler: %s", config.Name)
}

// ConstantScheduler keeps the learning rate fixed
type ConstantScheduler struct {
	BaseLR float32
}

func (s ConstantScheduler) GetLR(int) float32 { return s.BaseLR }
func (s ConstantScheduler) Name() string      { return "Constant" }

// LinearDecayScheduler interpolates from InitialLR to FinalLR over TotalSteps
type LinearDecayScheduler struct {
	InitialLR  float32
	FinalLR    float32
	TotalSteps int
}

func (s LinearDecayScheduler) GetLR(step int) float32 {
	if step >= s.TotalSteps {
		return s.FinalLR
	}
	progress := float32(step) / float32(s.TotalSteps)
	return s.InitialLR + (s.FinalLR-s.InitialLR)*progress
}

func (s LinearDecayScheduler) Name() string { return "LinearDecay" }

// CosineAnnealingScheduler follows half a cosine from InitialLR down to MinLR
type CosineAnnealingScheduler struct {
	InitialLR  float32
	MinLR      float32
	TotalSteps int
}

func (s CosineAnnealingScheduler) GetLR(step int) float32 {
	if step >= s.TotalSteps {
		return s.MinLR
	}
	progress := float64(step) / float64(s.TotalSteps)
	cosineDecay := float32((1.0 + math.Cos(math.Pi*progress)) / 2.0)
	return s.MinLR + (s.InitialLR-s.MinLR)*cosineDecay
}

func (s CosineAnnealingScheduler) Name() string { return "CosineAnnealing" }

// ExponentialDecayScheduler: lr = initialLR * decayRate^(step / decaySteps)
type ExponentialDecayScheduler struct {
	InitialLR  float32
	DecayRate  float32
	DecaySteps int
}

func (s ExponentialDecayScheduler) GetLR(step int) float32 {
	exponent := float64(step) / float64(s.DecaySteps)
	return s.InitialLR * float32(math.Pow(float64(s.DecayRate), exponent))
}

func (s ExponentialDecayScheduler) Name() string { return "ExponentialDecay" }

// StepDecayScheduler: lr = initialLR * decayFactor^floor(step / stepSize)
type StepDecayScheduler struct {
	InitialLR   float32
	DecayFactor float32
	StepSize    int
}

func (s StepDecayScheduler) GetLR(step int) float32 {
	numDecays := step / s.StepSize
	return s.InitialLR * float32(math.Pow(float64(s.DecayFactor), float64(numDecays)))
}

func (s StepDecayScheduler) Name() string { return "StepDecay" }

// WarmupScheduler ramps linearly from WarmupLR to BaseLR, then defers to After
type WarmupScheduler struct {
	WarmupSteps int
	WarmupLR    float32
	BaseLR      float32
	After       LRScheduler
}

func (s WarmupScheduler) GetLR(step int) float32 {
	if step < s.WarmupSteps {
		progress := float32(step) / float32(s.WarmupSteps)
		return s.WarmupLR + (s.BaseLR-s.WarmupLR)*progress
	}
	if s.After != nil {
		return s.After.GetLR(step - s.WarmupSteps)
	}
	return s.BaseLR
}

func (s WarmupScheduler) Name() string {
	if s.After != nil {
		return fmt.Sprintf("Warmup+%s", s.After.Name())
	}
	return "Warmup"
}
