package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// QuadraticError returns Σ (out_i - label_i)².
func QuadraticError(out, label []float64) (float64, error) {
	if len(out) != len(label) {
		return 0, shapeErr("label", -1, len(out), len(label))
	}
	d := make([]float64, len(out))
	floats.SubTo(d, out, label)
	return floats.Dot(d, d), nil
}

// CrossEntropy returns -Σ y ln a + (1-y) ln(1-a). Its gradient with respect
// to the output pre-activation is exactly out - label, the error that
// AccumulateGradient propagates.
func CrossEntropy(out, label []float64) (float64, error) {
	if len(out) != len(label) {
		return 0, shapeErr("label", -1, len(out), len(label))
	}
	var c float64
	for i, a := range out {
		y := label[i]
		c -= y*math.Log(a) + (1-y)*math.Log(1-a)
	}
	return c, nil
}

// Loss evaluates cost over a labelled set with the network's current
// parameters.
func (n *Network) Loss(samples, labels [][]float64, cost func(out, label []float64) (float64, error)) (float64, error) {
	if len(samples) != len(labels) {
		return 0, shapeErr("labels", -1, len(samples), len(labels))
	}
	var total float64
	for s, x := range samples {
		out, err := n.FeedForward(x)
		if err != nil {
			return 0, err
		}
		c, err := cost(out, labels[s])
		if err != nil {
			return 0, err
		}
		total += c
	}
	return total, nil
}
