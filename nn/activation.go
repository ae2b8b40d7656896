package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Sigmoid is the logistic activation used by every neuron.
type Sigmoid struct{}

// Activate has the signature expected by mat.Dense.Apply and mat.VecDense
// element loops.
func (s Sigmoid) Activate(i, j int, sum float64) float64 {
	return sigmoid(sum)
}

// Deactivate returns a(1-a) element-wise, the sigmoid derivative expressed
// in terms of an already computed activation.
func (s Sigmoid) Deactivate(activation mat.Vector) *mat.VecDense {
	n := activation.Len()
	o := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		a := activation.AtVec(i)
		o.SetVec(i, a*(1-a))
	}
	return o
}

func (s Sigmoid) String() string {
	return "sigmoid"
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
