// Package net provides the multilayer perceptron, its training context and
// the epoch-based training loop.
package net

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/GoRprop/internal/activations"
	"github.com/FlavioCFOliveira/GoRprop/internal/dataset"
)

var (
	// ErrTopology is returned for fewer than two layers or a layer with no
	// neurons.
	ErrTopology = errors.New("invalid topology")
	// ErrShapeMismatch is returned when a weight tensor does not match the
	// layer sizes it is meant for.
	ErrShapeMismatch = errors.New("weight shape mismatch")
)

// Initializer assigns starting values to every weight of n.
type Initializer func(n *Network, minWeight, maxWeight float64, rng *rand.Rand)

// Network is a fully connected feed-forward network without biases.
//
// Weight layer l is a sizes[l] x sizes[l+1] matrix: row j holds the
// outgoing weights of neuron j in layer l.
type Network struct {
	sizes   []int
	weights []*mat.Dense
}

// New allocates a network for the given layer sizes and runs init once.
// sizes[0] is the input width and the last entry the output width.
func New(sizes []int, minWeight, maxWeight float64, init Initializer, rng *rand.Rand) (*Network, error) {
	n, err := allocate(sizes)
	if err != nil {
		return nil, err
	}
	if init != nil {
		if rng == nil {
			return nil, errors.New("net: initializer needs a random source")
		}
		init(n, minWeight, maxWeight, rng)
	}
	return n, nil
}

func allocate(sizes []int) (*Network, error) {
	if len(sizes) < 2 {
		return nil, errors.Wrapf(ErrTopology, "need at least 2 layers, got %d", len(sizes))
	}
	for i, s := range sizes {
		if s < 1 {
			return nil, errors.Wrapf(ErrTopology, "layer %d has %d neurons", i, s)
		}
	}

	n := &Network{
		sizes:   append([]int(nil), sizes...),
		weights: make([]*mat.Dense, len(sizes)-1),
	}
	for l := range n.weights {
		n.weights[l] = mat.NewDense(sizes[l], sizes[l+1], nil)
	}
	return n, nil
}

// FromWeights builds a network around copies of the given weight matrices.
// Adjacent matrices must agree: the column count of layer l equals the row
// count of layer l+1.
func FromWeights(weights []*mat.Dense) (*Network, error) {
	if len(weights) == 0 {
		return nil, errors.Wrap(ErrTopology, "no weight layers")
	}
	sizes := make([]int, 0, len(weights)+1)
	for l, w := range weights {
		rows, cols := w.Dims()
		if l > 0 && rows != sizes[l] {
			return nil, errors.Wrapf(ErrShapeMismatch, "layer %d has %d rows, layer %d has %d columns", l, rows, l-1, sizes[l])
		}
		if l == 0 {
			sizes = append(sizes, rows)
		}
		sizes = append(sizes, cols)
	}

	n, err := allocate(sizes)
	if err != nil {
		return nil, err
	}
	for l, w := range weights {
		n.weights[l].Copy(w)
	}
	return n, nil
}

// InitUniform draws every weight independently from [minWeight, maxWeight).
func InitUniform(n *Network, minWeight, maxWeight float64, rng *rand.Rand) {
	span := maxWeight - minWeight
	for _, w := range n.weights {
		rows, _ := w.Dims()
		for j := 0; j < rows; j++ {
			row := w.RawRowView(j)
			for k := range row {
				row[k] = rng.Float64()*span + minWeight
			}
		}
	}
}

// InitNguyenWidrow draws uniform weights and then rescales the outgoing
// weight vector of every neuron to norm 0.7 * hidden^(1/inputs), where
// hidden is the total number of hidden neurons. Networks without hidden
// layers keep their uniform weights.
func InitNguyenWidrow(n *Network, minWeight, maxWeight float64, rng *rand.Rand) {
	InitUniform(n, minWeight, maxWeight, rng)

	hidden := 0
	for _, s := range n.sizes[1 : len(n.sizes)-1] {
		hidden += s
	}
	if hidden == 0 {
		return
	}
	beta := 0.7 * math.Pow(float64(hidden), 1/float64(n.sizes[0]))

	for _, w := range n.weights {
		rows, _ := w.Dims()
		for j := 0; j < rows; j++ {
			row := w.RawRowView(j)
			norm := floats.Norm(row, 2)
			if norm == 0 {
				continue
			}
			floats.Scale(beta/norm, row)
		}
	}
}

// Sizes returns the number of neurons per layer.
func (n *Network) Sizes() []int {
	return append([]int(nil), n.sizes...)
}

// Layers returns the number of neuron layers, input and output included.
func (n *Network) Layers() int {
	return len(n.sizes)
}

// InputSize returns the width of the input layer.
func (n *Network) InputSize() int {
	return n.sizes[0]
}

// OutputSize returns the width of the output layer.
func (n *Network) OutputSize() int {
	return n.sizes[len(n.sizes)-1]
}

// Weights returns the weight matrices. They are shared with the network
// and may be updated in place.
func (n *Network) Weights() []*mat.Dense {
	return n.weights
}

// NumWeights returns the total number of weights.
func (n *Network) NumWeights() int {
	total := 0
	for l := 0; l < len(n.sizes)-1; l++ {
		total += n.sizes[l] * n.sizes[l+1]
	}
	return total
}

// Validate checks that the weight tensor matches the layer sizes.
func (n *Network) Validate() error {
	if len(n.weights) != len(n.sizes)-1 {
		return errors.Wrapf(ErrShapeMismatch, "%d weight layers for %d neuron layers", len(n.weights), len(n.sizes))
	}
	for l, w := range n.weights {
		rows, cols := w.Dims()
		if rows != n.sizes[l] || cols != n.sizes[l+1] {
			return errors.Wrapf(ErrShapeMismatch, "layer %d is %dx%d, want %dx%d", l, rows, cols, n.sizes[l], n.sizes[l+1])
		}
	}
	return nil
}

// Predict runs a single input through n. It allocates a context per call;
// use Context.Predict in loops.
func (n *Network) Predict(act activations.Activation, input []float64) ([]float64, error) {
	if len(input) != n.InputSize() {
		return nil, errors.Wrapf(dataset.ErrDimensionMismatch, "input has %d values, network expects %d", len(input), n.InputSize())
	}
	return NewContext(n, act).Predict(input), nil
}

// Clone returns a deep copy of n.
func (n *Network) Clone() *Network {
	c := &Network{
		sizes:   append([]int(nil), n.sizes...),
		weights: make([]*mat.Dense, len(n.weights)),
	}
	for l, w := range n.weights {
		c.weights[l] = mat.DenseCopyOf(w)
	}
	return c
}
