package net

import (
	"log/slog"
	"math"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoRprop/internal/activations"
	"github.com/FlavioCFOliveira/GoRprop/internal/loss"
	"github.com/FlavioCFOliveira/GoRprop/internal/opt"
)

// Examples is a source of training pairs. *dataset.TrainingSet satisfies it.
type Examples interface {
	Len() int
	Example(i int) (input, output []float64)
	// Validate reports whether the examples fit a network with the given
	// input and output widths.
	Validate(inputWidth, outputWidth int) error
}

// State is the outcome of a training run.
type State int

const (
	StateRunning State = iota
	// StateConverged means the error stopped changing.
	StateConverged
	// StateMaxEpochs means the epoch cap was hit.
	StateMaxEpochs
	// StateStopped means a callback asked to stop.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateConverged:
		return "converged"
	case StateMaxEpochs:
		return "max epochs reached"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// TrainConfig controls the training loop.
type TrainConfig struct {
	// MaxEpochs caps the run; 0 means no cap.
	MaxEpochs int
	// ReportEvery logs progress every N epochs; 0 disables it.
	ReportEvery int
	// MinImprovement is the change in error below which an epoch counts
	// as a plateau epoch.
	MinImprovement float64
	// PlateauEpochs is how many consecutive plateau epochs may pass
	// before the run is considered converged.
	PlateauEpochs int
	// ErrorKind is the reduction reported per epoch and used for
	// convergence.
	ErrorKind loss.ErrorKind
	// Shuffle visits the examples in a new random order every epoch.
	Shuffle bool
	// Rand is used for shuffling. Required when Shuffle is set.
	Rand *rand.Rand
	// Logger receives progress reports. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultTrainConfig returns the standard convergence policy: stop after
// more than 100 consecutive epochs whose error differs from the best by
// less than 1e-7.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		MinImprovement: 1e-7,
		PlateauEpochs:  100,
		ErrorKind:      loss.MeanSquare,
	}
}

// Result summarises a training run.
type Result struct {
	State     State
	Epochs    int
	BestError float64
	LastError float64
}

// Trainer runs batch training: every epoch accumulates gradients over all
// examples and then applies one optimizer step.
type Trainer struct {
	net *Network
	ctx *Context
	opt opt.Optimizer
	cfg TrainConfig
	acc loss.Accumulator

	order []int
}

// NewTrainer creates a trainer for n. The optimizer mutates n's weights in
// place.
func NewTrainer(n *Network, act activations.Activation, o opt.Optimizer, cfg TrainConfig, opts ...ContextOption) *Trainer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Trainer{
		net: n,
		ctx: NewContext(n, act, opts...),
		opt: o,
		cfg: cfg,
	}
}

// Context returns the trainer's context, e.g. for prediction after
// training.
func (t *Trainer) Context() *Context {
	return t.ctx
}

// Network returns the network being trained.
func (t *Trainer) Network() *Network {
	return t.net
}

// Train runs epochs over ts until the error plateaus, the epoch cap is hit
// or a callback stops it. Malformed input is rejected before the first
// epoch.
func (t *Trainer) Train(ts Examples, callbacks ...Callback) (Result, error) {
	if err := t.net.Validate(); err != nil {
		return Result{}, err
	}
	if ts.Len() == 0 {
		return Result{}, errors.New("net: no training examples")
	}
	if err := ts.Validate(t.net.InputSize(), t.net.OutputSize()); err != nil {
		return Result{}, errors.Wrap(err, "net: training set rejected")
	}
	if t.cfg.Shuffle && t.cfg.Rand == nil {
		return Result{}, errors.New("net: shuffling needs a random source")
	}

	if t.cfg.ReportEvery > 0 {
		own := make([]Callback, len(callbacks), len(callbacks)+1)
		copy(own, callbacks)
		callbacks = append(own, &Logger{Interval: t.cfg.ReportEvery, Log: t.cfg.Logger})
	}

	t.order = t.order[:0]
	for i := 0; i < ts.Len(); i++ {
		t.order = append(t.order, i)
	}
	t.ctx.ResetGradients()

	for _, cb := range callbacks {
		cb.OnTrainBegin(t.net)
	}

	res := Result{State: StateRunning, BestError: math.Inf(1)}
	plateau := 0
	for res.State == StateRunning {
		current := t.epoch(ts)
		res.Epochs++
		res.LastError = current

		if math.Abs(res.BestError-current) < t.cfg.MinImprovement {
			plateau++
		} else {
			plateau = 0
		}
		res.BestError = math.Min(res.BestError, current)

		for _, cb := range callbacks {
			cb.OnEpochEnd(res.Epochs, current, t.net)
		}

		switch {
		case plateau > t.cfg.PlateauEpochs:
			res.State = StateConverged
		case t.cfg.MaxEpochs > 0 && res.Epochs >= t.cfg.MaxEpochs:
			res.State = StateMaxEpochs
		case stopRequested(callbacks):
			res.State = StateStopped
		}
	}

	for _, cb := range callbacks {
		cb.OnTrainEnd(t.net, res)
	}
	return res, nil
}

// epoch runs one full pass and one optimizer step and returns the error of
// the pass.
func (t *Trainer) epoch(ts Examples) float64 {
	t.acc.Reset()
	if t.cfg.Shuffle {
		t.cfg.Rand.Shuffle(len(t.order), func(i, j int) {
			t.order[i], t.order[j] = t.order[j], t.order[i]
		})
	}

	for _, i := range t.order {
		input, output := ts.Example(i)
		t.ctx.FeedForward(input)
		t.ctx.Backpropagate(&t.acc, output)
	}

	current := t.acc.Reduce(t.cfg.ErrorKind)
	t.opt.Step(t.net.weights, t.ctx.gradient, t.acc.Sum())
	return current
}

func stopRequested(callbacks []Callback) bool {
	for _, cb := range callbacks {
		if s, ok := cb.(Stopper); ok && s.Stop() {
			return true
		}
	}
	return false
}

// Evaluate returns the error of the network's current weights over ts
// without touching the gradient accumulator.
func (t *Trainer) Evaluate(ts Examples, kind loss.ErrorKind) (float64, error) {
	if err := ts.Validate(t.net.InputSize(), t.net.OutputSize()); err != nil {
		return 0, errors.Wrap(err, "net: evaluation set rejected")
	}
	var acc loss.Accumulator
	for i := 0; i < ts.Len(); i++ {
		input, output := ts.Example(i)
		predicted := t.ctx.FeedForward(input)
		for j, ideal := range output {
			acc.Record(ideal, predicted[j])
		}
	}
	return acc.Reduce(kind), nil
}
