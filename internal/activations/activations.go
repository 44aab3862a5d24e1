// Package activations provides the activation functions a network can be
// trained with.
package activations

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// ElliottSlope is the steepness used by both Elliott variants.
const ElliottSlope = 1.0

// Activation is an activation function with derivative.
type Activation interface {
	// Activate computes f(x)
	Activate(x float64) float64

	// Derivative computes f'(x) given the value before activation (pre)
	// and after activation (post). Each function reads whichever form
	// is cheaper for it.
	Derivative(pre, post float64) float64
}

// Kind identifies one of the supported activation functions.
type Kind int

const (
	KindSigmoid Kind = iota
	KindTanh
	KindElliott
	KindElliottSymmetric
)

var kindNames = map[Kind]string{
	KindSigmoid:          "sigmoid",
	KindTanh:             "tanh",
	KindElliott:          "elliott",
	KindElliottSymmetric: "elliott-symmetric",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Parse returns the Kind named by s. Matching is case-insensitive.
func Parse(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, errors.Errorf("unknown activation %q", s)
}

// New returns the activation for kind k.
func New(k Kind) (Activation, error) {
	switch k {
	case KindSigmoid:
		return Sigmoid{}, nil
	case KindTanh:
		return Tanh{}, nil
	case KindElliott:
		return Elliott{}, nil
	case KindElliottSymmetric:
		return ElliottSymmetric{}, nil
	}
	return nil, errors.Errorf("unknown activation kind %d", int(k))
}

// KindOf reports the Kind of a built-in activation.
func KindOf(a Activation) (Kind, bool) {
	switch a.(type) {
	case Sigmoid:
		return KindSigmoid, true
	case Tanh:
		return KindTanh, true
	case Elliott:
		return KindElliott, true
	case ElliottSymmetric:
		return KindElliottSymmetric, true
	}
	return 0, false
}

// Sigmoid activation function.
type Sigmoid struct{}

// Activate computes 1 / (1 + e^-x)
func (Sigmoid) Activate(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Derivative computes post * (1 - post)
func (Sigmoid) Derivative(_, post float64) float64 {
	return post * (1 - post)
}

// Tanh activation function.
type Tanh struct{}

// Activate computes tanh(x)
func (Tanh) Activate(x float64) float64 {
	return math.Tanh(x)
}

// Derivative computes 1 - post^2
func (Tanh) Derivative(_, post float64) float64 {
	return 1 - post*post
}

// Elliott is the asymmetric Elliott function, a cheap sigmoid
// approximation with range (0, 1).
type Elliott struct{}

// Activate computes 0.5*sx / (1 + |sx|) + 0.5
func (Elliott) Activate(x float64) float64 {
	s := x * ElliottSlope
	return 0.5*s/(1+math.Abs(s)) + 0.5
}

// Derivative computes slope / (2 * (1 + |s*pre|)^2)
func (Elliott) Derivative(pre, _ float64) float64 {
	d := 1 + math.Abs(pre*ElliottSlope)
	return ElliottSlope / (2 * d * d)
}

// ElliottSymmetric is the symmetric Elliott function, a cheap tanh
// approximation with range (-1, 1).
type ElliottSymmetric struct{}

// Activate computes sx / (1 + |sx|)
func (ElliottSymmetric) Activate(x float64) float64 {
	s := x * ElliottSlope
	return s / (1 + math.Abs(s))
}

// Derivative computes slope / (1 + |s*pre|)^2
func (ElliottSymmetric) Derivative(pre, _ float64) float64 {
	d := 1 + math.Abs(pre*ElliottSlope)
	return ElliottSlope / (d * d)
}
