package nn

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// FeedForward applies input to the network and returns the output layer's
// activations, each in (0, 1). It does not modify the network.
func (n *Network) FeedForward(input []float64) ([]float64, error) {
	if !n.ready() {
		return nil, ErrUninitialized
	}
	if len(input) != n.sizes[0] {
		return nil, shapeErr("input", -1, n.sizes[0], len(input))
	}

	activations := n.forwardCached(input)
	out := activations[len(activations)-1]
	return mat.Col(nil, 0, out), nil
}

// Predict returns the index of the largest output. Ties resolve to the
// lowest index.
func (n *Network) Predict(input []float64) (int, error) {
	out, err := n.FeedForward(input)
	if err != nil {
		return -1, err
	}
	return floats.MaxIdx(out), nil
}

// forwardCached runs the forward pass and keeps every layer's activation:
// activations[i] is the output of layer i+1. The input itself is not
// included. The caller has validated the input length.
func (n *Network) forwardCached(input []float64) []*mat.VecDense {
	activations := make([]*mat.VecDense, len(n.weights))

	var prev mat.Vector = mat.NewVecDense(len(input), input)
	for i, w := range n.weights {
		z := mat.NewVecDense(n.sizes[i+1], nil)
		z.MulVec(w, prev)
		z.AddVec(z, n.biases[i])

		raw := z.RawVector().Data
		for j, v := range raw {
			raw[j] = sigmoid(v)
		}

		activations[i] = z
		prev = z
	}
	return activations
}
