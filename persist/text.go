package persist

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"mlp_lib/nn"
)

const (
	tagSizes   = "sizes_of_layers"
	tagLayer   = "layer"
	tagNeuron  = "neuron"
	tagBias    = "bias"
	tagWeights = "weights"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteText writes the tag-delimited text format:
//
//	<sizes_of_layers>2 4 1</sizes_of_layers>
//	<layer>
//	<neuron><bias>B</bias><weights>W0 W1</weights></neuron>
//	...
//	</layer>
//
// Values use the shortest representation that parses back to the same bits.
func WriteText(w io.Writer, net *nn.Network) error {
	shape := net.Shape()
	if len(shape) == 0 {
		return nn.ErrUninitialized
	}
	bw := bufio.NewWriter(w)

	sizes := make([]string, len(shape))
	for i, s := range shape {
		sizes[i] = strconv.Itoa(s)
	}
	fmt.Fprintf(bw, "<%s>%s</%s>\n", tagSizes, strings.Join(sizes, " "), tagSizes)

	weights, biases := net.Weights(), net.Biases()
	for i := range weights {
		fmt.Fprintf(bw, "<%s>\n", tagLayer)
		for j, row := range weights[i] {
			values := make([]string, len(row))
			for k, v := range row {
				values[k] = formatFloat(v)
			}
			fmt.Fprintf(bw, "<%s><%s>%s</%s><%s>%s</%s></%s>\n",
				tagNeuron,
				tagBias, formatFloat(biases[i][j]), tagBias,
				tagWeights, strings.Join(values, " "), tagWeights,
				tagNeuron)
		}
		fmt.Fprintf(bw, "</%s>\n", tagLayer)
	}
	if err := bw.Flush(); err != nil {
		return ioErr("writing text parameters", err)
	}
	return nil
}

// tagScanner walks tag markers left to right.
type tagScanner struct {
	src  string
	base int // offset of src inside the whole document
	pos  int
}

// next returns the body of the next <tag>...</tag> at or after the current
// position. found is false when no further opening marker exists.
func (sc *tagScanner) next(tag string) (body tagScanner, found bool, err error) {
	openTag, closeTag := "<"+tag+">", "</"+tag+">"

	start := strings.Index(sc.src[sc.pos:], openTag)
	if start < 0 {
		return tagScanner{}, false, nil
	}
	start += sc.pos + len(openTag)

	end := strings.Index(sc.src[start:], closeTag)
	if end < 0 {
		return tagScanner{}, true, &ParseError{Marker: closeTag, Offset: sc.base + start}
	}
	end += start

	sc.pos = end + len(closeTag)
	return tagScanner{src: sc.src[start:end], base: sc.base + start}, true, nil
}

// expect is next for a marker that must be present.
func (sc *tagScanner) expect(tag string) (tagScanner, error) {
	body, found, err := sc.next(tag)
	if err != nil {
		return tagScanner{}, err
	}
	if !found {
		return tagScanner{}, &ParseError{Marker: "<" + tag + ">", Offset: sc.base + sc.pos}
	}
	return body, nil
}

func (sc tagScanner) floats(tag string) ([]float64, error) {
	fields := strings.Fields(sc.src)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, &ParseError{Marker: "<" + tag + ">", Offset: sc.base, Err: err}
		}
		out[i] = v
	}
	return out, nil
}

// ReadText parses the tag-delimited text format. The layer sizes come from
// the file; layer, neuron and weight counts must agree with them.
func ReadText(r io.Reader) (*nn.Network, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ioErr("reading text parameters", err)
	}
	doc := &tagScanner{src: string(data)}

	sizesTag, err := doc.expect(tagSizes)
	if err != nil {
		return nil, err
	}
	sizes, err := parseSizes(sizesTag)
	if err != nil {
		return nil, err
	}

	var (
		weights [][][]float64
		biases  [][]float64
	)
	for i := 0; ; i++ {
		layer, found, err := doc.next(tagLayer)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		if i >= len(sizes)-1 {
			return nil, &nn.ShapeError{What: "layer blocks", Index: -1, Want: len(sizes) - 1, Got: i + 1}
		}
		w, b, err := readLayer(&layer, i, sizes)
		if err != nil {
			return nil, err
		}
		weights = append(weights, w)
		biases = append(biases, b)
	}
	if len(weights) != len(sizes)-1 {
		return nil, &nn.ShapeError{What: "layer blocks", Index: -1, Want: len(sizes) - 1, Got: len(weights)}
	}
	return nn.FromParameters(sizes, weights, biases)
}

func parseSizes(sc tagScanner) ([]int, error) {
	fields := strings.Fields(sc.src)
	sizes := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, &ParseError{Marker: "<" + tagSizes + ">", Offset: sc.base, Err: err}
		}
		if n <= 0 || n > maxLayerSize {
			return nil, &nn.ConfigError{Field: "layer size", Value: n, Reason: fmt.Sprintf("layer %d must be in [1, %d]", i, maxLayerSize)}
		}
		sizes[i] = n
	}
	if len(sizes) < 2 {
		return nil, &nn.ConfigError{Field: "layer sizes", Value: sizes, Reason: "need at least an input and an output layer"}
	}
	return sizes, nil
}

func readLayer(layer *tagScanner, i int, sizes []int) ([][]float64, []float64, error) {
	var (
		weights [][]float64
		biases  []float64
	)
	for j := 0; ; j++ {
		neuron, found, err := layer.next(tagNeuron)
		if err != nil {
			return nil, nil, err
		}
		if !found {
			break
		}
		if j >= sizes[i+1] {
			return nil, nil, &nn.ShapeError{What: "neurons in layer", Index: i, Want: sizes[i+1], Got: j + 1}
		}

		biasTag, err := neuron.expect(tagBias)
		if err != nil {
			return nil, nil, err
		}
		bias, err := biasTag.floats(tagBias)
		if err != nil {
			return nil, nil, err
		}
		if len(bias) != 1 {
			return nil, nil, &nn.ShapeError{What: fmt.Sprintf("bias values of layer %d neuron", i), Index: j, Want: 1, Got: len(bias)}
		}

		weightsTag, err := neuron.expect(tagWeights)
		if err != nil {
			return nil, nil, err
		}
		row, err := weightsTag.floats(tagWeights)
		if err != nil {
			return nil, nil, err
		}
		if len(row) != sizes[i] {
			return nil, nil, &nn.ShapeError{What: fmt.Sprintf("weights of layer %d neuron", i), Index: j, Want: sizes[i], Got: len(row)}
		}

		weights = append(weights, row)
		biases = append(biases, bias[0])
	}
	if len(weights) != sizes[i+1] {
		return nil, nil, &nn.ShapeError{What: "neurons in layer", Index: i, Want: sizes[i+1], Got: len(weights)}
	}
	return weights, biases, nil
}
