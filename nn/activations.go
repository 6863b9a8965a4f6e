package nn

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Activation selects the element-wise non-linearity applied after a layer
type Activation int

const (
	ActivationNone    Activation = 0 // identity
	ActivationReLU    Activation = 1 // max(0, v)
	ActivationTanh    Activation = 2 // tanh(v)
	ActivationSigmoid Activation = 3 // 1 / (1 + exp(-v))
)

// ParseActivation maps a config string ("", "none", "relu", "tanh", "sigmoid") to an Activation
func ParseActivation(name string) (Activation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "linear", "identity":
		return ActivationNone, nil
	case "relu":
		return ActivationReLU, nil
	case "tanh":
		return ActivationTanh, nil
	case "sigmoid":
		return ActivationSigmoid, nil
	}
	return ActivationNone, errors.Errorf("unknown activation %q", name)
}

func (a Activation) String() string {
	switch a {
	case ActivationReLU:
		return "relu"
	case ActivationTanh:
		return "tanh"
	case ActivationSigmoid:
		return "sigmoid"
	default:
		return "none"
	}
}

// Activate applies the activation function to a single pre-activation value
func Activate(v float32, activation Activation) float32 {
	switch activation {
	case ActivationReLU:
		if v < 0 {
			return 0
		}
		return v
	case ActivationTanh:
		return float32(math.Tanh(float64(v)))
	case ActivationSigmoid:
		return sigmoid(v)
	default:
		return v
	}
}

// ActivateDerivative computes the derivative of the activation function
// Note: This computes the derivative with respect to the PRE-activation value
func ActivateDerivative(preActivation float32, activation Activation) float32 {
	switch activation {
	case ActivationReLU:
		if preActivation > 0 {
			return 1
		}
		return 0
	case ActivationTanh:
		t := float32(math.Tanh(float64(preActivation)))
		return 1 - t*t
	case ActivationSigmoid:
		s := sigmoid(preActivation)
		return s * (1 - s)
	default:
		return 1
	}
}

func sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(float64(-x))))
}
