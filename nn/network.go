// Package nn implements a fully-connected sigmoid network trained by
// mini-batch gradient descent with momentum and hand-derived backpropagation.
package nn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// initRange bounds the uniform distribution of freshly initialized
// parameters: every weight and bias is drawn from [-initRange, initRange).
const initRange = 0.25

// Network owns the weights, biases and shape of a multilayer perceptron.
//
// weights[i] maps layer i to layer i+1 and has sizes[i+1] rows of length
// sizes[i]; row j holds the incoming weights of neuron j. biases[i] has
// sizes[i+1] entries. The zero Network is uninitialized and every operation
// on it returns ErrUninitialized.
//
// A Network is not safe for concurrent use. Use Clone to hand a snapshot to
// another goroutine.
type Network struct {
	sizes   []int
	weights []*mat.Dense
	biases  []*mat.VecDense

	momentumCoefficient float64
	momentumScope       MomentumScope
	momentum            *Gradient // only kept for MomentumPersistent

	workers int
}

// New creates a network with the given layer sizes (input and output layers
// included) and parameters drawn uniformly from [-0.25, 0.25).
func New(sizes []int) (*Network, error) {
	return NewWithSource(sizes, nil)
}

// NewWithSource is New with an explicit random source, for reproducible
// initialization. A nil src uses the global source.
func NewWithSource(sizes []int, src rand.Source) (*Network, error) {
	net, err := allocate(sizes)
	if err != nil {
		return nil, err
	}

	dist := distuv.Uniform{
		Min: -initRange,
		Max: initRange,
		Src: src,
	}
	for i, w := range net.weights {
		rows, cols := w.Dims()
		for j := 0; j < rows; j++ {
			row := w.RawRowView(j)
			for k := 0; k < cols; k++ {
				row[k] = dist.Rand()
			}
			net.biases[i].SetVec(j, dist.Rand())
		}
	}
	return net, nil
}

// FromParameters builds a network from explicit parameters. weights[i][j][k]
// is the k-th incoming weight of neuron j on layer i+1 and biases[i][j] its
// bias.
func FromParameters(sizes []int, weights [][][]float64, biases [][]float64) (*Network, error) {
	if err := validateSizes(sizes); err != nil {
		return nil, err
	}
	if err := checkParameters(sizes, weights, biases); err != nil {
		return nil, err
	}
	net, err := allocate(sizes)
	if err != nil {
		return nil, err
	}
	if err := net.SetParameters(weights, biases); err != nil {
		return nil, err
	}
	return net, nil
}

func validateSizes(sizes []int) error {
	if len(sizes) < 2 {
		return &ConfigError{Field: "layer sizes", Value: sizes, Reason: "need at least an input and an output layer"}
	}
	for i, s := range sizes {
		if s <= 0 {
			return &ConfigError{Field: "layer size", Value: s, Reason: fmt.Sprintf("layer %d must be positive", i)}
		}
	}
	return nil
}

func allocate(sizes []int) (*Network, error) {
	if err := validateSizes(sizes); err != nil {
		return nil, err
	}
	net := &Network{
		sizes:   append([]int(nil), sizes...),
		weights: make([]*mat.Dense, len(sizes)-1),
		biases:  make([]*mat.VecDense, len(sizes)-1),
	}
	for i := 0; i < len(sizes)-1; i++ {
		net.weights[i] = mat.NewDense(sizes[i+1], sizes[i], nil)
		net.biases[i] = mat.NewVecDense(sizes[i+1], nil)
	}
	return net, nil
}

func (n *Network) ready() bool {
	return n != nil && len(n.sizes) >= 2 && len(n.weights) == len(n.sizes)-1
}

// Shape returns a copy of the layer sizes.
func (n *Network) Shape() []int {
	if n == nil {
		return nil
	}
	return append([]int(nil), n.sizes...)
}

// NumLayers returns the number of layers, input and output included.
func (n *Network) NumLayers() int {
	if n == nil {
		return 0
	}
	return len(n.sizes)
}

// InputSize is the expected length of an input vector.
func (n *Network) InputSize() int {
	if !n.ready() {
		return 0
	}
	return n.sizes[0]
}

// OutputSize is the length of the output and label vectors.
func (n *Network) OutputSize() int {
	if !n.ready() {
		return 0
	}
	return n.sizes[len(n.sizes)-1]
}

// SetMomentumCoefficient sets μ. Zero gives plain averaged-gradient descent.
func (n *Network) SetMomentumCoefficient(c float64) error {
	if math.IsNaN(c) || c < 0 || c >= 1 {
		return &ConfigError{Field: "momentum coefficient", Value: c, Reason: "must be in [0, 1)"}
	}
	n.momentumCoefficient = c
	return nil
}

// MomentumCoefficient returns μ.
func (n *Network) MomentumCoefficient() float64 {
	return n.momentumCoefficient
}

// SetMomentumScope selects how long the momentum buffer lives. Switching
// scope drops any persistent buffer.
func (n *Network) SetMomentumScope(s MomentumScope) {
	n.momentumScope = s
	n.momentum = nil
}

// MomentumScope returns the configured momentum buffer lifetime.
func (n *Network) MomentumScope() MomentumScope {
	return n.momentumScope
}

// ResetMomentum clears the persistent momentum buffer, if any.
func (n *Network) ResetMomentum() {
	n.momentum = nil
}

// SetWorkers sets the number of goroutines used to accumulate gradients
// inside Train. Values below 2 keep accumulation sequential.
func (n *Network) SetWorkers(workers int) {
	n.workers = workers
}

// Weights returns a deep copy of the weights as weights[layer][neuron][input].
func (n *Network) Weights() [][][]float64 {
	if !n.ready() {
		return nil
	}
	out := make([][][]float64, len(n.weights))
	for i, w := range n.weights {
		rows, _ := w.Dims()
		out[i] = make([][]float64, rows)
		for j := 0; j < rows; j++ {
			out[i][j] = mat.Row(nil, j, w)
		}
	}
	return out
}

// Biases returns a deep copy of the biases as biases[layer][neuron].
func (n *Network) Biases() [][]float64 {
	if !n.ready() {
		return nil
	}
	out := make([][]float64, len(n.biases))
	for i, b := range n.biases {
		out[i] = mat.Col(nil, 0, b)
	}
	return out
}

// Neuron returns the bias and a copy of the incoming weights of neuron j on
// layer transition i.
func (n *Network) Neuron(i, j int) (float64, []float64, error) {
	if !n.ready() {
		return 0, nil, ErrUninitialized
	}
	if i < 0 || i >= len(n.weights) {
		return 0, nil, fmt.Errorf("%w: layer %d out of range [0, %d)", ErrShape, i, len(n.weights))
	}
	if j < 0 || j >= n.sizes[i+1] {
		return 0, nil, fmt.Errorf("%w: neuron %d out of range [0, %d)", ErrShape, j, n.sizes[i+1])
	}
	return n.biases[i].AtVec(j), mat.Row(nil, j, n.weights[i]), nil
}

// SetParameters replaces every weight and bias. The whole shape is checked
// before anything is written, so on error the network is unchanged.
func (n *Network) SetParameters(weights [][][]float64, biases [][]float64) error {
	if !n.ready() {
		return ErrUninitialized
	}
	if err := checkParameters(n.sizes, weights, biases); err != nil {
		return err
	}
	for i := range n.weights {
		for j, row := range weights[i] {
			n.weights[i].SetRow(j, row)
			n.biases[i].SetVec(j, biases[i][j])
		}
	}
	return nil
}

func checkParameters(sizes []int, weights [][][]float64, biases [][]float64) error {
	transitions := len(sizes) - 1
	if len(weights) != transitions {
		return shapeErr("weight layers", -1, transitions, len(weights))
	}
	if len(biases) != transitions {
		return shapeErr("bias layers", -1, transitions, len(biases))
	}
	for i := 0; i < transitions; i++ {
		if len(weights[i]) != sizes[i+1] {
			return shapeErr("weight rows of layer", i, sizes[i+1], len(weights[i]))
		}
		if len(biases[i]) != sizes[i+1] {
			return shapeErr("biases of layer", i, sizes[i+1], len(biases[i]))
		}
		for j, row := range weights[i] {
			if len(row) != sizes[i] {
				return &ShapeError{What: fmt.Sprintf("weights of layer %d neuron", i), Index: j, Want: sizes[i], Got: len(row)}
			}
		}
	}
	return nil
}

// Clone returns an independent deep copy, including the momentum settings
// and any persistent momentum buffer.
func (n *Network) Clone() *Network {
	if !n.ready() {
		return &Network{}
	}
	c := &Network{
		sizes:               append([]int(nil), n.sizes...),
		weights:             make([]*mat.Dense, len(n.weights)),
		biases:              make([]*mat.VecDense, len(n.biases)),
		momentumCoefficient: n.momentumCoefficient,
		momentumScope:       n.momentumScope,
		workers:             n.workers,
	}
	for i := range n.weights {
		c.weights[i] = mat.DenseCopyOf(n.weights[i])
		c.biases[i] = mat.VecDenseCopyOf(n.biases[i])
	}
	if n.momentum != nil {
		c.momentum = n.momentum.Clone()
	}
	return c
}
