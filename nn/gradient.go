package nn

import (
	"gonum.org/v1/gonum/mat"
)

// Gradient accumulates the derivative of the cost with respect to every
// parameter. Layer i is a sizes[i+1] × (sizes[i]+1) matrix: column 0 holds
// the bias gradient of each neuron and column k+1 the gradient of its k-th
// incoming weight.
//
// The same layout backs the momentum buffer.
type Gradient struct {
	layers []*mat.Dense
}

// NewGradient allocates a zeroed gradient shaped for net.
func NewGradient(net *Network) (*Gradient, error) {
	if !net.ready() {
		return nil, ErrUninitialized
	}
	return newGradient(net.sizes), nil
}

func newGradient(sizes []int) *Gradient {
	g := &Gradient{layers: make([]*mat.Dense, len(sizes)-1)}
	for i := range g.layers {
		g.layers[i] = mat.NewDense(sizes[i+1], sizes[i]+1, nil)
	}
	return g
}

// Zero resets every entry to zero.
func (g *Gradient) Zero() {
	for _, l := range g.layers {
		l.Zero()
	}
}

// Add sums other into g.
func (g *Gradient) Add(other *Gradient) error {
	if len(other.layers) != len(g.layers) {
		return shapeErr("gradient layers", -1, len(g.layers), len(other.layers))
	}
	for i, l := range g.layers {
		r, c := l.Dims()
		or, oc := other.layers[i].Dims()
		if r != or || c != oc {
			return shapeErr("gradient entries of layer", i, r*c, or*oc)
		}
		l.Add(l, other.layers[i])
	}
	return nil
}

// Bias returns the accumulated bias gradient of neuron j on layer transition i.
func (g *Gradient) Bias(i, j int) float64 {
	return g.layers[i].At(j, 0)
}

// Weight returns the accumulated gradient of weight k of neuron j on layer
// transition i.
func (g *Gradient) Weight(i, j, k int) float64 {
	return g.layers[i].At(j, k+1)
}

// NumLayers returns the number of layer transitions.
func (g *Gradient) NumLayers() int {
	return len(g.layers)
}

// Clone returns a deep copy.
func (g *Gradient) Clone() *Gradient {
	c := &Gradient{layers: make([]*mat.Dense, len(g.layers))}
	for i, l := range g.layers {
		c.layers[i] = mat.DenseCopyOf(l)
	}
	return c
}

// checkShape reports whether g can accumulate gradients of a network with
// the given layer sizes.
func (g *Gradient) checkShape(sizes []int) error {
	if g == nil {
		return shapeErr("gradient layers", -1, len(sizes)-1, 0)
	}
	if len(g.layers) != len(sizes)-1 {
		return shapeErr("gradient layers", -1, len(sizes)-1, len(g.layers))
	}
	for i, l := range g.layers {
		r, c := l.Dims()
		if r != sizes[i+1] {
			return shapeErr("gradient rows of layer", i, sizes[i+1], r)
		}
		if c != sizes[i]+1 {
			return shapeErr("gradient columns of layer", i, sizes[i]+1, c)
		}
	}
	return nil
}
