// Package dataset loads labelled samples for the network: MNIST IDX files,
// CSV files and handwriting trace groups, plus the scaling and batching the
// trainers need.
package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"mlp_lib/nn"
)

// ErrFormat marks an input file that does not follow its declared format.
var ErrFormat = errors.New("malformed dataset")

// DataSet holds aligned samples and one-hot labels. Rows and Cols describe
// the image grid of a sample when it came from an image source, and are
// zero otherwise.
type DataSet struct {
	Samples [][]float64
	Labels  [][]float64
	Rows    int
	Cols    int
}

// Len returns the number of samples.
func (d *DataSet) Len() int {
	return len(d.Samples)
}

// SampleLength is the width of one sample, 0 for an empty set.
func (d *DataSet) SampleLength() int {
	if len(d.Samples) == 0 {
		return 0
	}
	return len(d.Samples[0])
}

// Validate checks that every sample has length inputs and every label length
// outputs.
func (d *DataSet) Validate(inputs, outputs int) error {
	if len(d.Samples) != len(d.Labels) {
		return &nn.ShapeError{What: "labels", Index: -1, Want: len(d.Samples), Got: len(d.Labels)}
	}
	for i, s := range d.Samples {
		if len(s) != inputs {
			return &nn.ShapeError{What: "sample", Index: i, Want: inputs, Got: len(s)}
		}
		if len(d.Labels[i]) != outputs {
			return &nn.ShapeError{What: "label", Index: i, Want: outputs, Got: len(d.Labels[i])}
		}
	}
	return nil
}

// Clone deep-copies the samples. Labels are shared since nothing mutates
// them.
func (d *DataSet) Clone() *DataSet {
	c := &DataSet{
		Samples: make([][]float64, len(d.Samples)),
		Labels:  d.Labels,
		Rows:    d.Rows,
		Cols:    d.Cols,
	}
	for i, s := range d.Samples {
		c.Samples[i] = append([]float64(nil), s...)
	}
	return c
}

// Class returns the index of the largest entry of label i.
func (d *DataSet) Class(i int) int {
	return floats.MaxIdx(d.Labels[i])
}

// Batch returns batch number iteration of size batchSize. The last batch may
// be short; out-of-range requests return empty slices.
func (d *DataSet) Batch(batchSize, iteration int) ([][]float64, [][]float64) {
	start := batchSize * iteration
	end := batchSize * (iteration + 1)

	if start < 0 || start >= len(d.Samples) || end <= start {
		return nil, nil
	}

	if end > len(d.Samples) {
		end = len(d.Samples)
	}

	return d.Samples[start:end], d.Labels[start:end]
}

// OneHot returns a vector of length n with a single 1 at class.
func OneHot(class, n int) ([]float64, error) {
	if class < 0 || class >= n {
		return nil, fmt.Errorf("%w: class %d out of range [0, %d)", ErrFormat, class, n)
	}
	v := make([]float64, n)
	v[class] = 1
	return v, nil
}

// Concat appends the sets in order. All sets must share sample and label
// widths.
func Concat(sets ...*DataSet) (*DataSet, error) {
	out := &DataSet{}
	for i, s := range sets {
		if s == nil || s.Len() == 0 {
			continue
		}
		if out.Len() == 0 {
			out.Rows, out.Cols = s.Rows, s.Cols
		} else if err := s.Validate(out.SampleLength(), len(out.Labels[0])); err != nil {
			return nil, fmt.Errorf("set %d: %w", i, err)
		}
		out.Samples = append(out.Samples, s.Samples...)
		out.Labels = append(out.Labels, s.Labels...)
	}
	return out, nil
}
