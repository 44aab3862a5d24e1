// Package loss tracks the error a network makes over a pass through the
// training data.
package loss

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// ErrorKind selects how an Accumulator reduces its running total.
type ErrorKind int

const (
	// MeanSquare is sum / count.
	MeanSquare ErrorKind = iota
	// RootMeanSquare is sqrt(sum / count).
	RootMeanSquare
	// SumOfSquares is sum / 2.
	SumOfSquares
)

func (k ErrorKind) String() string {
	switch k {
	case MeanSquare:
		return "mse"
	case RootMeanSquare:
		return "rmse"
	case SumOfSquares:
		return "sse"
	}
	return "unknown"
}

// ParseErrorKind accepts "mse", "rmse" or "sse".
func ParseErrorKind(s string) (ErrorKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mse":
		return MeanSquare, nil
	case "rmse":
		return RootMeanSquare, nil
	case "sse":
		return SumOfSquares, nil
	}
	return 0, errors.Errorf("unknown error kind %q", s)
}

// Accumulator is a running sum of squared residuals.
// The zero value is ready to use.
type Accumulator struct {
	sum   float64
	count int
}

// Reset clears the running total.
func (a *Accumulator) Reset() {
	a.sum = 0
	a.count = 0
}

// Record folds one output into the total and returns the signed residual
// ideal - actual.
func (a *Accumulator) Record(ideal, actual float64) float64 {
	e := ideal - actual
	a.sum += e * e
	a.count++
	return e
}

// Sum returns the raw sum of squared residuals.
func (a *Accumulator) Sum() float64 {
	return a.sum
}

// Count returns the number of recorded residuals.
func (a *Accumulator) Count() int {
	return a.count
}

// Reduce returns the error of the given kind, or 0 if nothing was recorded.
func (a *Accumulator) Reduce(kind ErrorKind) float64 {
	if a.count == 0 {
		return 0
	}
	switch kind {
	case MeanSquare:
		return a.sum / float64(a.count)
	case RootMeanSquare:
		return math.Sqrt(a.sum / float64(a.count))
	case SumOfSquares:
		return a.sum / 2
	}
	panic("loss: unknown error kind " + kind.String())
}
