package net

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/GoRprop/internal/activations"
	"github.com/FlavioCFOliveira/GoRprop/internal/loss"
)

// FlatSpotCorrection is added to every derivative when WithFlatSpot is set.
const FlatSpotCorrection = 0.1

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithFlatSpot adds FlatSpotCorrection to every derivative so neurons in
// the saturated tails of sigmoid-like functions keep learning.
func WithFlatSpot() ContextOption {
	return func(c *Context) {
		c.flatSpot = FlatSpotCorrection
	}
}

// Context holds the per-example scratch state of a network: activation
// caches, deltas and the gradient accumulator. All buffers are allocated
// once and reused for every example and epoch.
type Context struct {
	net      *Network
	act      activations.Activation
	flatSpot float64

	// per neuron layer
	pre  []*mat.VecDense
	post []*mat.VecDense

	// per weight layer; delta[l] has one entry per neuron of layer l+1
	delta    []*mat.VecDense
	gradient []*mat.Dense
}

// NewContext allocates a training context for n.
func NewContext(n *Network, act activations.Activation, opts ...ContextOption) *Context {
	c := &Context{
		net:      n,
		act:      act,
		pre:      make([]*mat.VecDense, len(n.sizes)),
		post:     make([]*mat.VecDense, len(n.sizes)),
		delta:    make([]*mat.VecDense, len(n.weights)),
		gradient: make([]*mat.Dense, len(n.weights)),
	}
	for l, size := range n.sizes {
		c.pre[l] = mat.NewVecDense(size, nil)
		c.post[l] = mat.NewVecDense(size, nil)
	}
	for l := range n.weights {
		c.delta[l] = mat.NewVecDense(n.sizes[l+1], nil)
		c.gradient[l] = mat.NewDense(n.sizes[l], n.sizes[l+1], nil)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Network returns the network the context was built for.
func (c *Context) Network() *Network {
	return c.net
}

// Activation returns the activation applied to every non-input neuron.
func (c *Context) Activation() activations.Activation {
	return c.act
}

func (c *Context) derivative(pre, post float64) float64 {
	return c.act.Derivative(pre, post) + c.flatSpot
}

// FeedForward runs input through the network and returns the output
// layer. The returned slice is owned by the context and is overwritten by
// the next call.
func (c *Context) FeedForward(input []float64) []float64 {
	if len(input) != c.net.sizes[0] {
		panic(fmt.Sprintf("net: input has %d values, network expects %d", len(input), c.net.sizes[0]))
	}
	copy(c.pre[0].RawVector().Data, input)
	copy(c.post[0].RawVector().Data, input)

	for l := 1; l < len(c.net.sizes); l++ {
		// pre[l][j] = sum_k post[l-1][k] * w[l-1][k][j]
		c.pre[l].MulVec(c.net.weights[l-1].T(), c.post[l-1])
		pre := c.pre[l].RawVector().Data
		post := c.post[l].RawVector().Data
		for j, sum := range pre {
			post[j] = c.act.Activate(sum)
		}
	}
	return c.post[len(c.post)-1].RawVector().Data
}

// Predict runs input through the network and returns a copy of the output.
func (c *Context) Predict(input []float64) []float64 {
	return append([]float64(nil), c.FeedForward(input)...)
}

// Backpropagate compares the output of the last FeedForward with target,
// records the residuals in acc and adds this example's contribution to the
// gradient accumulator. Gradients are not reset; they sum over an epoch.
//
// Residuals are ideal - actual and are propagated without negation, so the
// accumulated gradient points downhill.
func (c *Context) Backpropagate(acc *loss.Accumulator, target []float64) {
	last := len(c.net.sizes) - 1
	if len(target) != c.net.sizes[last] {
		panic(fmt.Sprintf("net: target has %d values, network outputs %d", len(target), c.net.sizes[last]))
	}

	pre := c.pre[last].RawVector().Data
	post := c.post[last].RawVector().Data
	delta := c.delta[last-1].RawVector().Data
	for j := range delta {
		e := acc.Record(target[j], post[j])
		delta[j] = c.derivative(pre[j], post[j]) * e
	}

	for l := last - 1; l >= 0; l-- {
		// gradient[l][j][n] += post[l][j] * delta[l][n]
		c.gradient[l].RankOne(c.gradient[l], 1, c.post[l], c.delta[l])
		if l == 0 {
			break
		}

		// delta[l-1][j] = f'(layer l, j) * sum_n w[l][j][n] * delta[l][n]
		c.delta[l-1].MulVec(c.net.weights[l], c.delta[l])
		prev := c.delta[l-1].RawVector().Data
		pre := c.pre[l].RawVector().Data
		post := c.post[l].RawVector().Data
		for j := range prev {
			prev[j] *= c.derivative(pre[j], post[j])
		}
	}
}

// Gradients returns the gradient accumulator, shaped like the weights.
func (c *Context) Gradients() []*mat.Dense {
	return c.gradient
}

// ResetGradients zeroes the gradient accumulator.
func (c *Context) ResetGradients() {
	for _, g := range c.gradient {
		g.Zero()
	}
}

// Output returns a copy of the output layer of the last FeedForward.
func (c *Context) Output() []float64 {
	return append([]float64(nil), c.post[len(c.post)-1].RawVector().Data...)
}

// Delta returns the error signal of weight layer l from the last
// Backpropagate. The slice is owned by the context.
func (c *Context) Delta(l int) []float64 {
	return c.delta[l].RawVector().Data
}
