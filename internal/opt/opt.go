// Package opt provides the resilient propagation family of optimizers.
package opt

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Optimizer updates network weights from gradients accumulated over a
// whole epoch.
type Optimizer interface {
	// Step applies one update to weights in place and zeroes gradients.
	// epochError is the raw sum of squared residuals of the epoch that
	// produced gradients.
	Step(weights, gradients []*mat.Dense, epochError float64)
}

// Variant selects how RProp reacts when a gradient changes sign.
type Variant int

const (
	// IRPropPlus backtracks a reversed weight only if the epoch error grew.
	IRPropPlus Variant = iota
	// IRPropMinus skips the step of a reversed weight.
	IRPropMinus
	// RPropPlus always backtracks a reversed weight.
	RPropPlus
	// RPropMinus keeps stepping with the reduced update value.
	RPropMinus
)

var variantNames = map[Variant]string{
	IRPropPlus:  "irprop+",
	IRPropMinus: "irprop-",
	RPropPlus:   "rprop+",
	RPropMinus:  "rprop-",
}

func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return "unknown"
}

// ParseVariant accepts "irprop+", "irprop-", "rprop+" or "rprop-".
func ParseVariant(s string) (Variant, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for v, name := range variantNames {
		if name == s {
			return v, nil
		}
	}
	return 0, errors.Errorf("unknown rprop variant %q", s)
}

// RProp is resilient propagation: every weight has its own step size that
// grows while its gradient keeps its sign and shrinks when the sign flips.
// Only the sign of a gradient is used, never its magnitude.
//
// Gradients are expected in the "ideal - actual" convention, so a weight
// moves by +sign(g) * step.
type RProp struct {
	Variant        Variant
	InitialUpdate  float64
	IncreaseFactor float64
	DecreaseFactor float64
	MaxStep        float64
	MinStep        float64
	ZeroTolerance  float64

	update       []*mat.Dense
	prevDelta    []*mat.Dense
	prevGradient []*mat.Dense
	prevError    float64
}

// NewRProp creates an RProp optimizer with the standard constants.
func NewRProp(variant Variant) *RProp {
	return &RProp{
		Variant:        variant,
		InitialUpdate:  0.1,
		IncreaseFactor: 1.2,
		DecreaseFactor: 0.5,
		MaxStep:        50,
		MinStep:        1e-6,
		ZeroTolerance:  1e-17,
		prevError:      math.MaxFloat64,
	}
}

// Reset forgets all per-weight state. The next Step starts over from
// InitialUpdate.
func (r *RProp) Reset() {
	r.update = nil
	r.prevDelta = nil
	r.prevGradient = nil
	r.prevError = math.MaxFloat64
}

// UpdateValues returns the current per-weight step sizes. It is nil
// before the first Step.
func (r *RProp) UpdateValues() []*mat.Dense {
	return r.update
}

// PreviousDeltas returns the weight changes applied by the last Step.
func (r *RProp) PreviousDeltas() []*mat.Dense {
	return r.prevDelta
}

func (r *RProp) sign(x float64) float64 {
	if math.Abs(x) < r.ZeroTolerance {
		return 0
	}
	if x > 0 {
		return 1
	}
	return -1
}

// allocate sizes the state after weights. Later calls must pass the same
// shapes.
func (r *RProp) allocate(weights []*mat.Dense) {
	if r.update != nil {
		if len(r.update) != len(weights) {
			panic(fmt.Sprintf("rprop: got %d weight layers, state has %d", len(weights), len(r.update)))
		}
		for l, w := range weights {
			wr, wc := w.Dims()
			ur, uc := r.update[l].Dims()
			if wr != ur || wc != uc {
				panic(fmt.Sprintf("rprop: layer %d is %dx%d, state is %dx%d", l, wr, wc, ur, uc))
			}
		}
		return
	}

	n := len(weights)
	r.update = make([]*mat.Dense, n)
	r.prevDelta = make([]*mat.Dense, n)
	r.prevGradient = make([]*mat.Dense, n)
	for l, w := range weights {
		rows, cols := w.Dims()
		data := make([]float64, rows*cols)
		for i := range data {
			data[i] = r.InitialUpdate
		}
		r.update[l] = mat.NewDense(rows, cols, data)
		r.prevDelta[l] = mat.NewDense(rows, cols, nil)
		r.prevGradient[l] = mat.NewDense(rows, cols, nil)
	}
}

// Step implements Optimizer.
func (r *RProp) Step(weights, gradients []*mat.Dense, epochError float64) {
	if len(weights) != len(gradients) {
		panic(fmt.Sprintf("rprop: %d weight layers but %d gradient layers", len(weights), len(gradients)))
	}
	r.allocate(weights)

	for l, w := range weights {
		rows, cols := w.Dims()
		gr, gc := gradients[l].Dims()
		if gr != rows || gc != cols {
			panic(fmt.Sprintf("rprop: layer %d weights %dx%d, gradients %dx%d", l, rows, cols, gr, gc))
		}
		for i := 0; i < rows; i++ {
			r.stepRow(
				w.RawRowView(i),
				gradients[l].RawRowView(i),
				r.update[l].RawRowView(i),
				r.prevDelta[l].RawRowView(i),
				r.prevGradient[l].RawRowView(i),
				epochError,
			)
		}
	}

	r.prevError = epochError
}

func (r *RProp) stepRow(w, g, update, prevDelta, prevGrad []float64, epochError float64) {
	for k := range w {
		var change float64
		switch r.sign(g[k] * prevGrad[k]) {
		case 1:
			update[k] = math.Min(update[k]*r.IncreaseFactor, r.MaxStep)
			change = r.sign(g[k]) * update[k]
			prevGrad[k] = g[k]
		case -1:
			update[k] = math.Max(update[k]*r.DecreaseFactor, r.MinStep)
			switch r.Variant {
			case IRPropPlus:
				if epochError > r.prevError {
					change = -prevDelta[k]
				}
				prevGrad[k] = 0
			case RPropPlus:
				change = -prevDelta[k]
				prevGrad[k] = 0
			case IRPropMinus:
				prevGrad[k] = 0
			case RPropMinus:
				change = r.sign(g[k]) * update[k]
				prevGrad[k] = g[k]
			}
		default:
			change = r.sign(g[k]) * update[k]
			prevGrad[k] = g[k]
		}

		w[k] += change
		prevDelta[k] = change
		g[k] = 0
	}
}
