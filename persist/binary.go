// Package persist reads and writes network parameters in binary, tag-text and
// JSON form. Every format stores, per layer transition and per neuron, the
// bias followed by the incoming weights.
package persist

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"mlp_lib/nn"
)

const (
	// maxLayers and maxLayerSize bound what a self-describing header may
	// declare before anything is allocated.
	maxLayers    = 1 << 10
	maxLayerSize = 1 << 24
)

// WriteBinary writes the self-describing binary format: a big-endian int32
// layer count, one int32 per layer size, then the neuron records.
func WriteBinary(w io.Writer, net *nn.Network) error {
	shape := net.Shape()
	if len(shape) == 0 {
		return nn.ErrUninitialized
	}
	bw := bufio.NewWriter(w)

	header := make([]int32, 0, len(shape)+1)
	header = append(header, int32(len(shape)))
	for _, s := range shape {
		header = append(header, int32(s))
	}
	if err := binary.Write(bw, binary.BigEndian, header); err != nil {
		return ioErr("writing header", err)
	}
	if err := writeRecords(bw, net); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return ioErr("writing parameters", err)
	}
	return nil
}

// WriteBinaryRaw writes the neuron records without a header. The reader must
// already know the shape.
func WriteBinaryRaw(w io.Writer, net *nn.Network) error {
	if len(net.Shape()) == 0 {
		return nn.ErrUninitialized
	}
	bw := bufio.NewWriter(w)
	if err := writeRecords(bw, net); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return ioErr("writing parameters", err)
	}
	return nil
}

func writeRecords(w io.Writer, net *nn.Network) error {
	weights, biases := net.Weights(), net.Biases()
	var buf [8]byte
	put := func(v float64) error {
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
		_, err := w.Write(buf[:])
		return err
	}
	for i := range weights {
		for j, row := range weights[i] {
			if err := put(biases[i][j]); err != nil {
				return ioErr(fmt.Sprintf("writing layer %d neuron %d", i, j), err)
			}
			for _, v := range row {
				if err := put(v); err != nil {
					return ioErr(fmt.Sprintf("writing layer %d neuron %d", i, j), err)
				}
			}
		}
	}
	return nil
}

// ReadBinary reads the self-describing binary format.
func ReadBinary(r io.Reader) (*nn.Network, error) {
	br := bufio.NewReader(r)

	var count int32
	if err := binary.Read(br, binary.BigEndian, &count); err != nil {
		return nil, ioErr("reading layer count", err)
	}
	if count < 2 || count > maxLayers {
		return nil, &nn.ConfigError{Field: "layer count", Value: count, Reason: fmt.Sprintf("must be in [2, %d]", maxLayers)}
	}
	raw := make([]int32, count)
	if err := binary.Read(br, binary.BigEndian, raw); err != nil {
		return nil, ioErr("reading layer sizes", err)
	}
	sizes := make([]int, count)
	for i, s := range raw {
		if s <= 0 || s > maxLayerSize {
			return nil, &nn.ConfigError{Field: "layer size", Value: s, Reason: fmt.Sprintf("layer %d must be in [1, %d]", i, maxLayerSize)}
		}
		sizes[i] = int(s)
	}

	weights, biases, err := readRecords(br, sizes)
	if err != nil {
		return nil, err
	}
	return nn.FromParameters(sizes, weights, biases)
}

// ReadBinaryRaw reads headerless records shaped like net and installs them.
// net is only modified once the whole stream decoded; data left after the
// last record means the file describes a different network.
func ReadBinaryRaw(r io.Reader, net *nn.Network) error {
	sizes := net.Shape()
	if len(sizes) == 0 {
		return nn.ErrUninitialized
	}
	br := bufio.NewReader(r)

	weights, biases, err := readRecords(br, sizes)
	if err != nil {
		return err
	}
	extra, err := io.Copy(io.Discard, br)
	if err != nil {
		return ioErr("reading past parameters", err)
	}
	if extra > 0 {
		want := parameterCount(sizes)
		return &nn.ShapeError{What: "parameter values in stream", Index: -1, Want: want, Got: want + int((extra+7)/8)}
	}
	return net.SetParameters(weights, biases)
}

func parameterCount(sizes []int) int {
	n := 0
	for i := 0; i < len(sizes)-1; i++ {
		n += sizes[i+1] * (sizes[i] + 1)
	}
	return n
}

func readRecords(r io.Reader, sizes []int) ([][][]float64, [][]float64, error) {
	weights := make([][][]float64, len(sizes)-1)
	biases := make([][]float64, len(sizes)-1)

	var buf [8]byte
	get := func() (float64, error) {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(buf[:])), nil
	}

	for i := range weights {
		weights[i] = make([][]float64, sizes[i+1])
		biases[i] = make([]float64, sizes[i+1])
		for j := range weights[i] {
			b, err := get()
			if err != nil {
				return nil, nil, ioErr(fmt.Sprintf("reading layer %d neuron %d", i, j), err)
			}
			biases[i][j] = b

			row := make([]float64, sizes[i])
			for k := range row {
				if row[k], err = get(); err != nil {
					return nil, nil, ioErr(fmt.Sprintf("reading layer %d neuron %d", i, j), err)
				}
			}
			weights[i][j] = row
		}
	}
	return weights, biases, nil
}
