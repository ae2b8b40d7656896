package nn

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestFeedForwardRange(t *testing.T) {
	shapes := [][]int{{1, 1}, {3, 4, 2}, {784, 30, 10}, {5, 8, 8, 8, 3}}
	rnd := rand.New(rand.NewSource(7))

	for _, sizes := range shapes {
		net := seeded(t, sizes, uint64(len(sizes)))
		in := make([]float64, sizes[0])
		for i := range in {
			in[i] = rnd.Float64()*2 - 1
		}
		out, err := net.FeedForward(in)
		require.NoError(t, err)
		require.Len(t, out, sizes[len(sizes)-1])
		for _, v := range out {
			assert.True(t, v > 0 && v < 1, "shape %v output %v", sizes, v)
		}
	}
}

func TestFeedForwardKnownValue(t *testing.T) {
	net, err := FromParameters([]int{2, 1},
		[][][]float64{{{1, -2}}},
		[][]float64{{0.5}})
	require.NoError(t, err)

	out, err := net.FeedForward([]float64{3, 1})
	require.NoError(t, err)
	// z = 3 - 2 + 0.5
	assert.InDelta(t, 1/(1+math.Exp(-1.5)), out[0], 1e-15)
}

func TestFeedForwardDeterministic(t *testing.T) {
	net := seeded(t, []int{6, 5, 4}, 11)
	in := []float64{0.1, -0.2, 0.3, -0.4, 0.5, -0.6}

	a, err := net.FeedForward(in)
	require.NoError(t, err)
	b, err := net.FeedForward(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, []float64{0.1, -0.2, 0.3, -0.4, 0.5, -0.6}, in)
}

func TestFeedForwardWrongLength(t *testing.T) {
	net := seeded(t, []int{3, 2}, 5)
	weights, biases := net.Weights(), net.Biases()

	for _, in := range [][]float64{nil, {1, 2}, {1, 2, 3, 4}} {
		_, err := net.FeedForward(in)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrShape))

		var se *ShapeError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "input", se.What)
		assert.Equal(t, 3, se.Want)
		assert.Equal(t, len(in), se.Got)
	}
	assert.Equal(t, weights, net.Weights())
	assert.Equal(t, biases, net.Biases())
}

func TestPredictArgmax(t *testing.T) {
	net, err := FromParameters([]int{1, 3},
		[][][]float64{{{0}, {0}, {0}}},
		[][]float64{{-1, 2, 2}})
	require.NoError(t, err)

	idx, err := net.Predict([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}
