// Package goneuron is the public entry point: it re-exports the network,
// training set and optimizer types so callers need a single import.
package goneuron

import (
	"math/rand"

	"github.com/FlavioCFOliveira/GoRprop/internal/activations"
	"github.com/FlavioCFOliveira/GoRprop/internal/dataset"
	"github.com/FlavioCFOliveira/GoRprop/internal/loss"
	"github.com/FlavioCFOliveira/GoRprop/internal/net"
	"github.com/FlavioCFOliveira/GoRprop/internal/opt"
)

// Re-export common types and functions for easier access
type (
	Network       = net.Network
	Context       = net.Context
	Trainer       = net.Trainer
	TrainConfig   = net.TrainConfig
	Result        = net.Result
	Callback      = net.Callback
	Initializer   = net.Initializer
	TrainingSet   = dataset.TrainingSet
	Activation    = activations.Activation
	Optimizer     = opt.Optimizer
	RProp         = opt.RProp
	ErrorKind     = loss.ErrorKind
	ContextOption = net.ContextOption
)

// Activations
var (
	Sigmoid          = activations.Sigmoid{}
	Tanh             = activations.Tanh{}
	Elliott          = activations.Elliott{}
	ElliottSymmetric = activations.ElliottSymmetric{}
)

// Initializers
var (
	Uniform      Initializer = net.InitUniform
	NguyenWidrow Initializer = net.InitNguyenWidrow
)

// Error reductions
const (
	MeanSquare     = loss.MeanSquare
	RootMeanSquare = loss.RootMeanSquare
	SumOfSquares   = loss.SumOfSquares
)

// Sentinel errors
var (
	ErrTopology          = net.ErrTopology
	ErrShapeMismatch     = net.ErrShapeMismatch
	ErrRaggedRows        = dataset.ErrRaggedRows
	ErrRowCountMismatch  = dataset.ErrRowCountMismatch
	ErrDimensionMismatch = dataset.ErrDimensionMismatch
	ErrEmpty             = dataset.ErrEmpty
)

// NewNetwork creates a network with the given layer sizes.
func NewNetwork(sizes []int, minWeight, maxWeight float64, init Initializer, seed int64) (*Network, error) {
	return net.New(sizes, minWeight, maxWeight, init, rand.New(rand.NewSource(seed)))
}

// LoadWeights reads a weight file and infers the topology from it.
func LoadWeights(filename string) (*Network, error) {
	return net.LoadWeights(filename)
}

// LoadTrainingSet reads an input and an output file.
func LoadTrainingSet(inputPath, outputPath string) (*TrainingSet, error) {
	return dataset.Load(inputPath, outputPath)
}

// NewTrainingSet builds a training set from in-memory examples.
func NewTrainingSet(inputs, outputs [][]float64) (*TrainingSet, error) {
	return dataset.New(inputs, outputs)
}

// IRPropPlus returns the default optimizer.
func IRPropPlus() *RProp {
	return opt.NewRProp(opt.IRPropPlus)
}

// DefaultTrainConfig returns the standard convergence policy.
func DefaultTrainConfig() TrainConfig {
	return net.DefaultTrainConfig()
}

// NewTrainer creates a trainer for n.
func NewTrainer(n *Network, act Activation, o Optimizer, cfg TrainConfig, opts ...ContextOption) *Trainer {
	return net.NewTrainer(n, act, o, cfg, opts...)
}

// WithFlatSpot enables the flat-spot correction.
func WithFlatSpot() ContextOption {
	return net.WithFlatSpot()
}

// Logger logs progress every interval epochs.
func Logger(interval int) Callback {
	return &net.Logger{Interval: interval}
}

// CSVLogger writes per-epoch errors to filename.
func CSVLogger(filename string, append bool) Callback {
	return net.NewCSVLogger(filename, append)
}

// ModelCheckpoint saves the weights to filename on every new best error.
func ModelCheckpoint(filename string) Callback {
	return net.NewModelCheckpoint(filename)
}

// EarlyStopping stops when the error has not improved for patience epochs.
func EarlyStopping(patience int, threshold float64) Callback {
	return net.NewEarlyStopping(patience, threshold)
}
