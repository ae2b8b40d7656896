package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"mlp_lib/nn"
)

// ScalePixel maps a grey level in [0, 255] to [-1, 1].
func ScalePixel(p byte) float64 {
	return float64(p)/127.5 - 1
}

// Scale maps raw grey levels to [-1, 1].
func Scale(pixels []byte) []float64 {
	out := make([]float64, len(pixels))
	for i, p := range pixels {
		out[i] = ScalePixel(p)
	}
	return out
}

// Binarize sets every value above -1 to 1 and the rest to -1. On samples
// scaled to [-1, 1] a blank pixel stays at -1 and any ink becomes 1.
func Binarize(d *DataSet) {
	for _, s := range d.Samples {
		for j, v := range s {
			if v > -1 {
				s[j] = 1
			} else {
				s[j] = -1
			}
		}
	}
}

// Moments returns the per-feature mean and standard deviation over the set.
func Moments(d *DataSet) (mean, std []float64) {
	n := d.SampleLength()
	if n == 0 {
		return nil, nil
	}
	mean = make([]float64, n)
	std = make([]float64, n)
	column := make([]float64, d.Len())
	for j := 0; j < n; j++ {
		for i, s := range d.Samples {
			column[i] = s[j]
		}
		mean[j], std[j] = stat.PopMeanStdDev(column, nil)
	}
	return mean, std
}

// Standardize shifts and scales every feature with the given moments.
// Constant features are only centred. The moments must cover every feature
// of every sample; on error nothing is changed.
func Standardize(d *DataSet, mean, std []float64) error {
	if len(mean) != len(std) {
		return &nn.ShapeError{What: "standard deviations", Index: -1, Want: len(mean), Got: len(std)}
	}
	for i, s := range d.Samples {
		if len(s) != len(mean) {
			return &nn.ShapeError{What: "sample", Index: i, Want: len(mean), Got: len(s)}
		}
	}
	for _, s := range d.Samples {
		floats.Sub(s, mean)
		for j := range s {
			if std[j] > 0 && !math.IsNaN(std[j]) {
				s[j] /= std[j]
			}
		}
	}
	return nil
}

type momentsDocument struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// WriteMoments stores feature moments as JSON, so that inference can apply
// the standardization a network was trained with.
func WriteMoments(w io.Writer, mean, std []float64) error {
	if len(mean) != len(std) {
		return &nn.ShapeError{What: "standard deviations", Index: -1, Want: len(mean), Got: len(std)}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(momentsDocument{Mean: mean, Std: std}); err != nil {
		return fmt.Errorf("%w: writing moments: %w", nn.ErrIO, err)
	}
	return nil
}

// ReadMoments reads a document written by WriteMoments.
func ReadMoments(r io.Reader) (mean, std []float64, err error) {
	var doc momentsDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("%w: moments: %w", ErrFormat, err)
	}
	if len(doc.Mean) == 0 || len(doc.Mean) != len(doc.Std) {
		return nil, nil, fmt.Errorf("%w: moments: %d means, %d deviations", ErrFormat, len(doc.Mean), len(doc.Std))
	}
	return doc.Mean, doc.Std, nil
}

// SaveMoments writes the moments to path.
func SaveMoments(path string, mean, std []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", nn.ErrIO, err)
	}
	if err := WriteMoments(f, mean, std); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", nn.ErrIO, err)
	}
	return nil
}

// LoadMoments reads moments saved by SaveMoments.
func LoadMoments(path string) (mean, std []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", nn.ErrIO, err)
	}
	defer f.Close()
	return ReadMoments(f)
}
