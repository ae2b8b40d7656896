package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestSigmoidActivate(t *testing.T) {
	var s Sigmoid
	assert.Equal(t, 0.5, s.Activate(0, 0, 0))
	assert.InDelta(t, 1/(1+math.Exp(-2)), s.Activate(0, 0, 2), 1e-15)
	assert.InDelta(t, 1-s.Activate(0, 0, 3), s.Activate(0, 0, -3), 1e-15)
	assert.Equal(t, s.Activate(0, 0, 1.25), sigmoid(1.25))
	assert.Equal(t, "sigmoid", s.String())
}

func TestSigmoidDeactivate(t *testing.T) {
	var s Sigmoid
	a := mat.NewVecDense(3, []float64{0.5, 0.1, 0.9})
	d := s.Deactivate(a)
	assert.InDeltaSlice(t, []float64{0.25, 0.09, 0.09}, d.RawVector().Data, 1e-15)
}
