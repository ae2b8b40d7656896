package nn

import (
	"gonum.org/v1/gonum/mat"
)

// AccumulateGradient runs one labelled sample through the network and adds
// the per-parameter gradient into acc. The network is not modified.
//
// The output layer error is a - label, without the sigmoid derivative. Hidden
// layers use a(1-a) computed from the cached activations.
func (n *Network) AccumulateGradient(sample, label []float64, acc *Gradient) error {
	if !n.ready() {
		return ErrUninitialized
	}
	if len(sample) != n.sizes[0] {
		return shapeErr("sample", -1, n.sizes[0], len(sample))
	}
	if out := n.sizes[len(n.sizes)-1]; len(label) != out {
		return shapeErr("label", -1, out, len(label))
	}
	if err := acc.checkShape(n.sizes); err != nil {
		return err
	}

	n.accumulate(sample, label, acc)
	return nil
}

// accumulate is AccumulateGradient without validation.
func (n *Network) accumulate(sample, label []float64, acc *Gradient) {
	activations := n.forwardCached(sample)
	last := len(activations) - 1

	deltas := make([]*mat.VecDense, len(activations))
	deltas[last] = mat.NewVecDense(n.sizes[last+1], nil)
	deltas[last].SubVec(activations[last], mat.NewVecDense(len(label), label))

	for i := last - 1; i >= 0; i-- {
		back := mat.NewVecDense(n.sizes[i+1], nil)
		back.MulVec(n.weights[i+1].T(), deltas[i+1])
		back.MulElemVec(back, Sigmoid{}.Deactivate(activations[i]))
		deltas[i] = back
	}

	for i, d := range deltas {
		var in []float64
		if i == 0 {
			in = sample
		} else {
			in = activations[i-1].RawVector().Data
		}

		layer := acc.layers[i]
		for j, dj := range d.RawVector().Data {
			row := layer.RawRowView(j)
			row[0] += dj
			for k, x := range in {
				row[k+1] += x * dj
			}
		}
	}
}
