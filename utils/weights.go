package utils

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// WeightsVersion is written into every exported weights document.
const WeightsVersion = "1.0"

// WeightData represents serializable weight data for a layer
type WeightData struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// ModelWeights represents all weights in a model. Architecture lists the
// layer sizes; Layers is keyed "layer_0", "layer_1", ...
type ModelWeights struct {
	Version      string                 `json:"version"`
	Architecture []int                  `json:"architecture"`
	Layers       map[string]LayerWeight `json:"layers"`
}

// LayerWeight contains weights and bias for a layer
type LayerWeight struct {
	Weight *WeightData `json:"weight,omitempty"`
	Bias   *WeightData `json:"bias,omitempty"`
}

// LayerKey names layer transition i inside ModelWeights.Layers.
func LayerKey(i int) string {
	return fmt.Sprintf("layer_%d", i)
}

// DenseToWeightData converts a matrix to serializable row-major weight data
func DenseToWeightData(name string, m mat.Matrix) *WeightData {
	r, c := m.Dims()
	wd := &WeightData{
		Name:  name,
		Shape: []int{r, c},
		Data:  make([]float64, 0, r*c),
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			wd.Data = append(wd.Data, m.At(i, j))
		}
	}
	return wd
}

// VectorToWeightData converts a vector to serializable weight data
func VectorToWeightData(name string, v mat.Vector) *WeightData {
	return &WeightData{
		Name:  name,
		Shape: []int{v.Len()},
		Data:  mat.Col(nil, 0, v),
	}
}

// Rows splits 2-D weight data back into rows.
func (wd *WeightData) Rows() ([][]float64, error) {
	if len(wd.Shape) != 2 {
		return nil, fmt.Errorf("%s: want 2-D shape, got %v", wd.Name, wd.Shape)
	}
	r, c := wd.Shape[0], wd.Shape[1]
	if r < 0 || c < 0 || (c == 0 && r != 0) || (c > 0 && r > len(wd.Data)/c) || len(wd.Data) != r*c {
		return nil, fmt.Errorf("%s: shape %v does not match %d values", wd.Name, wd.Shape, len(wd.Data))
	}
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = append([]float64(nil), wd.Data[i*c:(i+1)*c]...)
	}
	return rows, nil
}

// Vector returns a copy of 1-D weight data.
func (wd *WeightData) Vector() ([]float64, error) {
	if len(wd.Shape) != 1 || wd.Shape[0] != len(wd.Data) {
		return nil, fmt.Errorf("%s: shape %v does not match %d values", wd.Name, wd.Shape, len(wd.Data))
	}
	return append([]float64(nil), wd.Data...), nil
}
