package persist

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"mlp_lib/nn"
)

func testNetwork(t *testing.T, sizes []int) *nn.Network {
	t.Helper()
	net, err := nn.NewWithSource(sizes, rand.NewSource(31))
	require.NoError(t, err)
	return net
}

func sampleOutput(t *testing.T, net *nn.Network) []float64 {
	t.Helper()
	in := make([]float64, net.InputSize())
	for i := range in {
		in[i] = float64(i%7)/3 - 1
	}
	out, err := net.FeedForward(in)
	require.NoError(t, err)
	return out
}

func TestBinaryRoundTrip(t *testing.T) {
	net := testNetwork(t, []int{5, 4, 3, 2})

	var buf bytes.Buffer
	require.NoError(t, WriteBinary(&buf, net))
	// header + (4*6 + 3*5 + 2*4) records
	assert.Equal(t, 4*5+8*(24+15+8), buf.Len())
	assert.Equal(t, []byte{0, 0, 0, 4, 0, 0, 0, 5}, buf.Bytes()[:8])

	back, err := ReadBinary(&buf)
	require.NoError(t, err)
	assert.Equal(t, net.Shape(), back.Shape())
	assert.Equal(t, net.Weights(), back.Weights())
	assert.Equal(t, net.Biases(), back.Biases())
	assert.Equal(t, sampleOutput(t, net), sampleOutput(t, back))
}

func TestBinaryRecordOrder(t *testing.T) {
	net, err := nn.FromParameters([]int{2, 1},
		[][][]float64{{{2, 3}}},
		[][]float64{{1}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteBinaryRaw(&buf, net))
	require.Equal(t, 24, buf.Len())
	// big-endian 1.0, 2.0, 3.0
	assert.Equal(t, []byte{0x3f, 0xf0, 0, 0, 0, 0, 0, 0}, buf.Bytes()[:8])
	assert.Equal(t, []byte{0x40, 0x00, 0, 0, 0, 0, 0, 0}, buf.Bytes()[8:16])
	assert.Equal(t, []byte{0x40, 0x08, 0, 0, 0, 0, 0, 0}, buf.Bytes()[16:])
}

func TestBinaryRawErrors(t *testing.T) {
	net := testNetwork(t, []int{3, 4, 2})
	var buf bytes.Buffer
	require.NoError(t, WriteBinaryRaw(&buf, net))
	data := buf.Bytes()

	t.Run("truncated", func(t *testing.T) {
		target := testNetwork(t, []int{3, 4, 2})
		before := target.Weights()

		err := ReadBinaryRaw(bytes.NewReader(data[:len(data)-3]), target)
		require.Error(t, err)
		assert.True(t, errors.Is(err, nn.ErrIO))
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
		assert.Equal(t, before, target.Weights())
	})

	t.Run("trailing data", func(t *testing.T) {
		target := testNetwork(t, []int{3, 4, 2})
		before := target.Weights()

		err := ReadBinaryRaw(bytes.NewReader(append(append([]byte{}, data...), make([]byte, 16)...)), target)
		require.Error(t, err)
		assert.True(t, errors.Is(err, nn.ErrShape))
		assert.Equal(t, before, target.Weights())
	})

	t.Run("exact", func(t *testing.T) {
		target := testNetwork(t, []int{3, 4, 2})
		require.NoError(t, ReadBinaryRaw(bytes.NewReader(data), target))
		assert.Equal(t, net.Weights(), target.Weights())
		assert.Equal(t, net.Biases(), target.Biases())
	})
}

func TestReadBinaryBadHeader(t *testing.T) {
	_, err := ReadBinary(bytes.NewReader([]byte{0, 0, 0, 1, 0, 0, 0, 3}))
	assert.True(t, errors.Is(err, nn.ErrConfig))

	_, err = ReadBinary(bytes.NewReader([]byte{0, 0, 0, 2, 0, 0, 0, 3, 0xff, 0xff, 0xff, 0xff}))
	assert.True(t, errors.Is(err, nn.ErrConfig))

	_, err = ReadBinary(bytes.NewReader([]byte{0, 0}))
	assert.True(t, errors.Is(err, nn.ErrIO))
}

func TestTextRoundTrip(t *testing.T) {
	net := testNetwork(t, []int{4, 3, 2})

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, net))
	text := buf.String()
	assert.True(t, strings.HasPrefix(text, "<sizes_of_layers>4 3 2</sizes_of_layers>\n"))
	assert.Equal(t, 2, strings.Count(text, "<layer>"))
	assert.Equal(t, 5, strings.Count(text, "<neuron>"))

	back, err := ReadText(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, net.Weights(), back.Weights())
	assert.Equal(t, net.Biases(), back.Biases())
	assert.Equal(t, sampleOutput(t, net), sampleOutput(t, back))
}

func TestReadTextHandWritten(t *testing.T) {
	doc := `<sizes_of_layers> 2 1 </sizes_of_layers>
<layer>
  <neuron>
    <bias>0.5</bias>
    <weights>1e-1
      -2</weights>
  </neuron>
</layer>`
	net, err := ReadText(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, [][][]float64{{{0.1, -2}}}, net.Weights())
	assert.Equal(t, [][]float64{{0.5}}, net.Biases())
}

func TestReadTextErrors(t *testing.T) {
	valid := "<sizes_of_layers>2 1</sizes_of_layers><layer><neuron><bias>0</bias><weights>1 2</weights></neuron></layer>"

	cases := []struct {
		name   string
		doc    string
		target error
	}{
		{"missing sizes", "<layer></layer>", nn.ErrParse},
		{"unclosed sizes", "<sizes_of_layers>2 1", nn.ErrParse},
		{"unclosed layer", strings.TrimSuffix(valid, "</layer>"), nn.ErrParse},
		{"unclosed bias", strings.Replace(valid, "</bias>", "", 1), nn.ErrParse},
		{"missing weights", strings.Replace(valid, "<weights>1 2</weights>", "", 1), nn.ErrParse},
		{"bad number", strings.Replace(valid, "1 2", "1 two", 1), nn.ErrParse},
		{"bad size", strings.Replace(valid, "2 1<", "2 x<", 1), nn.ErrParse},
		{"too few weights", strings.Replace(valid, "1 2", "1", 1), nn.ErrShape},
		{"too many neurons", strings.Replace(valid, "</layer>", "<neuron><bias>0</bias><weights>1 2</weights></neuron></layer>", 1), nn.ErrShape},
		{"missing layer", "<sizes_of_layers>2 1 1</sizes_of_layers>" + strings.TrimPrefix(valid, "<sizes_of_layers>2 1</sizes_of_layers>"), nn.ErrShape},
		{"extra layer", valid + "<layer></layer>", nn.ErrShape},
		{"one layer", "<sizes_of_layers>2</sizes_of_layers>", nn.ErrConfig},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadText(strings.NewReader(tc.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.target), "%v", err)
		})
	}

	_, err := ReadText(strings.NewReader(valid))
	require.NoError(t, err)
}

func TestParseErrorOffset(t *testing.T) {
	doc := "<sizes_of_layers>2 1</sizes_of_layers><layer><neuron><bias>0<weights>1 2</weights></neuron></layer>"
	_, err := ReadText(strings.NewReader(doc))

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "</bias>", pe.Marker)
	assert.Equal(t, strings.Index(doc, "<bias>")+len("<bias>"), pe.Offset)
}

func TestJSONRoundTrip(t *testing.T) {
	net := testNetwork(t, []int{3, 5, 2})

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, net))
	assert.Contains(t, buf.String(), `"layer_1"`)

	back, err := ReadJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, net.Weights(), back.Weights())
	assert.Equal(t, net.Biases(), back.Biases())
}

func TestReadJSONErrors(t *testing.T) {
	_, err := ReadJSON(strings.NewReader(`{"version": "1.0", "architecture": [2, 1], "layers": {`))
	assert.Error(t, err)

	_, err = ReadJSON(strings.NewReader(`{"version": "1.0", "architecture": [2, 1], "layers": {}}`))
	assert.True(t, errors.Is(err, nn.ErrShape))

	_, err = ReadJSON(strings.NewReader(`{"architecture": [2, 1], "layers": {"layer_0": {
		"weight": {"name": "w", "shape": [1, 2], "data": [1]},
		"bias": {"name": "b", "shape": [1], "data": [0]}}}}`))
	assert.True(t, errors.Is(err, nn.ErrParse))

	_, err = ReadJSON(strings.NewReader(`{"architecture": "2 1"}`))
	assert.True(t, errors.Is(err, nn.ErrParse))

	// the declared architecture is checked against the layer data before
	// anything of that size is allocated
	_, err = ReadJSON(strings.NewReader(`{"architecture": [8388608, 8388608], "layers": {"layer_0": {
		"weight": {"name": "w", "shape": [0, 0], "data": []},
		"bias": {"name": "b", "shape": [0], "data": []}}}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, nn.ErrShape), "%v", err)
}

func TestFormatFromPath(t *testing.T) {
	cases := map[string]Format{
		"net.bin":       FormatBinary,
		"net.raw":       FormatBinaryRaw,
		"dir/net.xml":   FormatText,
		"net.txt":       FormatText,
		"/tmp/net.JSON": FormatJSON,
	}
	for path, want := range cases {
		got, err := FormatFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}
	_, err := FormatFromPath("network")
	assert.True(t, errors.Is(err, nn.ErrConfig))
	_, err = FormatFromPath("network.csv")
	assert.True(t, errors.Is(err, nn.ErrConfig))
}

func TestSaveAndLoadFile(t *testing.T) {
	dir := t.TempDir()
	net := testNetwork(t, []int{4, 3, 2})

	for _, format := range []Format{FormatBinary, FormatText, FormatJSON} {
		path := filepath.Join(dir, "net."+format.String())
		require.NoError(t, SaveFile(path, net, format))

		back, err := LoadFile(path, format)
		require.NoError(t, err, format.String())
		assert.Equal(t, net.Weights(), back.Weights(), format.String())
	}

	raw := filepath.Join(dir, "net.raw")
	require.NoError(t, SaveFile(raw, net, FormatBinaryRaw))
	target := testNetwork(t, []int{4, 3, 2})
	require.NoError(t, LoadFileInto(raw, target))
	assert.Equal(t, net.Biases(), target.Biases())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4, "no temporary files left behind")
}

func TestLoadNetworkRaw(t *testing.T) {
	dir := t.TempDir()
	net := testNetwork(t, []int{4, 3, 2})

	raw := filepath.Join(dir, "net.raw")
	require.NoError(t, SaveFile(raw, net, FormatBinaryRaw))

	back, err := LoadNetwork(raw, []int{4, 3, 2})
	require.NoError(t, err)
	assert.Equal(t, net.Weights(), back.Weights())
	assert.Equal(t, net.Biases(), back.Biases())
	assert.Equal(t, sampleOutput(t, net), sampleOutput(t, back))

	_, err = LoadNetwork(raw, nil)
	assert.True(t, errors.Is(err, nn.ErrConfig))

	_, err = LoadNetwork(raw, []int{4, 2, 2})
	assert.True(t, errors.Is(err, nn.ErrShape), "%v", err)

	// self-describing files keep their own shape
	bin := filepath.Join(dir, "net.bin")
	require.NoError(t, SaveFile(bin, net, FormatBinary))
	back, err = LoadNetwork(bin, []int{9, 9})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 3, 2}, back.Shape())
}

func TestSaveFileFailureLeavesTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "net.bin")
	net := testNetwork(t, []int{2, 2})
	require.NoError(t, SaveFile(path, net, FormatBinary))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	err = SaveFile(path, &nn.Network{}, FormatBinary)
	assert.True(t, errors.Is(err, nn.ErrUninitialized))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.bin"), FormatBinary)
	assert.True(t, errors.Is(err, nn.ErrIO))
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = LoadFile("whatever.raw", FormatBinaryRaw)
	assert.Error(t, err)
}
