package nn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func seeded(t *testing.T, sizes []int, seed uint64) *Network {
	t.Helper()
	net, err := NewWithSource(sizes, rand.NewSource(seed))
	require.NoError(t, err)
	return net
}

func TestNewInitRange(t *testing.T) {
	net := seeded(t, []int{5, 7, 3}, 1)

	assert.Equal(t, []int{5, 7, 3}, net.Shape())
	assert.Equal(t, 3, net.NumLayers())
	assert.Equal(t, 5, net.InputSize())
	assert.Equal(t, 3, net.OutputSize())

	w, b := net.Weights(), net.Biases()
	require.Len(t, w, 2)
	require.Len(t, b, 2)
	for i := range w {
		require.Len(t, w[i], net.Shape()[i+1])
		require.Len(t, b[i], net.Shape()[i+1])
		for j := range w[i] {
			require.Len(t, w[i][j], net.Shape()[i])
			assert.True(t, b[i][j] >= -initRange && b[i][j] < initRange, "bias %v", b[i][j])
			for _, v := range w[i][j] {
				assert.True(t, v >= -initRange && v < initRange, "weight %v", v)
			}
		}
	}
}

func TestNewSameSeedSameParameters(t *testing.T) {
	a := seeded(t, []int{4, 3, 2}, 42)
	b := seeded(t, []int{4, 3, 2}, 42)
	assert.Equal(t, a.Weights(), b.Weights())
	assert.Equal(t, a.Biases(), b.Biases())
}

func TestNewRejectsBadSizes(t *testing.T) {
	for _, sizes := range [][]int{nil, {3}, {3, 0, 2}, {3, -1}} {
		_, err := New(sizes)
		require.Error(t, err, "sizes %v", sizes)
		assert.True(t, errors.Is(err, ErrConfig), "sizes %v: %v", sizes, err)
	}
}

func TestFromParametersShapeMismatch(t *testing.T) {
	_, err := FromParameters([]int{2, 1},
		[][][]float64{{{1, 2, 3}}},
		[][]float64{{0}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShape))

	var se *ShapeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 2, se.Want)
	assert.Equal(t, 3, se.Got)

	// sizes are checked against the given parameters before allocation
	_, err = FromParameters([]int{1 << 23, 1 << 23}, [][][]float64{{}}, [][]float64{{}})
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1<<23, se.Want)
	assert.Equal(t, 0, se.Got)
}

func TestSetParametersLeavesNetworkOnError(t *testing.T) {
	net := seeded(t, []int{2, 2, 1}, 3)
	before := net.Weights()

	w := net.Weights()
	w[0][0][0] = 100
	w[1] = [][]float64{{1}} // wrong width
	err := net.SetParameters(w, net.Biases())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShape))
	assert.Equal(t, before, net.Weights())
}

func TestNeuron(t *testing.T) {
	net, err := FromParameters([]int{2, 1},
		[][][]float64{{{0.5, -0.5}}},
		[][]float64{{0.25}})
	require.NoError(t, err)

	bias, w, err := net.Neuron(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.25, bias)
	assert.Equal(t, []float64{0.5, -0.5}, w)

	w[0] = 9
	_, w2, _ := net.Neuron(0, 0)
	assert.Equal(t, 0.5, w2[0])

	_, _, err = net.Neuron(1, 0)
	assert.True(t, errors.Is(err, ErrShape))
	_, _, err = net.Neuron(0, 1)
	assert.True(t, errors.Is(err, ErrShape))
}

func TestMomentumCoefficientRange(t *testing.T) {
	net := seeded(t, []int{2, 1}, 1)
	require.NoError(t, net.SetMomentumCoefficient(0.9))
	assert.Equal(t, 0.9, net.MomentumCoefficient())

	for _, c := range []float64{-0.1, 1, 1.5} {
		err := net.SetMomentumCoefficient(c)
		assert.True(t, errors.Is(err, ErrConfig), "coefficient %v", c)
	}
	assert.Equal(t, 0.9, net.MomentumCoefficient())
}

func TestCloneIsIndependent(t *testing.T) {
	net := seeded(t, []int{3, 2}, 9)
	c := net.Clone()
	assert.Equal(t, net.Weights(), c.Weights())

	x := [][]float64{{1, 0, -1}}
	y := [][]float64{{1, 0}}
	require.NoError(t, c.Train(x, y, 1, 1, 0.5))
	assert.NotEqual(t, net.Weights(), c.Weights())
}

func TestZeroNetworkUninitialized(t *testing.T) {
	var net Network

	_, err := net.FeedForward([]float64{1})
	assert.True(t, errors.Is(err, ErrConfig))
	assert.True(t, errors.Is(err, ErrUninitialized))

	err = net.Train([][]float64{{1}}, [][]float64{{1}}, 1, 1, 0.1)
	assert.True(t, errors.Is(err, ErrUninitialized))

	_, err = NewGradient(&net)
	assert.True(t, errors.Is(err, ErrUninitialized))
	assert.Nil(t, net.Shape())
}
