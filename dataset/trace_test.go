package dataset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTraceGroup(t *testing.T) {
	traces, err := ParseTraceGroup("<trace>0.1 0.2, 0.3 0.4</trace> <trace>1.005 2</trace>")
	require.NoError(t, err)
	require.Len(t, traces, 2)
	assert.Equal(t, []Point{{X: 10, Y: 20}, {X: 30, Y: 40}}, traces[0])
	assert.Equal(t, Point{X: 100, Y: 200}, traces[1][0])

	for _, bad := range []string{"", "<trace>1 2", "<trace>1</trace>", "<trace>a b</trace>"} {
		_, err := ParseTraceGroup(bad)
		assert.True(t, errors.Is(err, ErrFormat), "%q", bad)
	}
}

func TestRenderTraceGroupVerticalStroke(t *testing.T) {
	const rows, cols = 28, 28
	sample, err := RenderTraceGroup("<trace>0 0, 0 1, 0 2, 0 3</trace>", rows, cols)
	require.NoError(t, err)
	require.Len(t, sample, rows*cols)

	var ink int
	for _, v := range sample {
		require.True(t, v == 1 || v == -1)
		if v == 1 {
			ink++
		}
	}
	assert.Greater(t, ink, 0)
	assert.Less(t, ink, rows*cols)

	// a single vertical line at x = 0 inks the left edge, never the right
	assert.Equal(t, 1.0, sample[rows/2*cols])
	assert.Equal(t, -1.0, sample[rows/2*cols+cols-1])
}

func TestRenderTraceGroupBadGrid(t *testing.T) {
	_, err := RenderTraceGroup("<trace>0 0</trace>", 0, 28)
	assert.True(t, errors.Is(err, ErrFormat))
}
