package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"

	"mlp_lib/nn"
	"mlp_lib/utils"
)

// WriteJSON exports the network as a utils.ModelWeights document, one
// "layer_i" entry per transition holding a rows × cols weight matrix and a
// bias vector.
func WriteJSON(w io.Writer, net *nn.Network) error {
	shape := net.Shape()
	if len(shape) == 0 {
		return nn.ErrUninitialized
	}
	doc := &utils.ModelWeights{
		Version:      utils.WeightsVersion,
		Architecture: shape,
		Layers:       make(map[string]utils.LayerWeight, len(shape)-1),
	}

	weights, biases := net.Weights(), net.Biases()
	for i := range weights {
		m := mat.NewDense(shape[i+1], shape[i], nil)
		for j, row := range weights[i] {
			m.SetRow(j, row)
		}
		doc.Layers[utils.LayerKey(i)] = utils.LayerWeight{
			Weight: utils.DenseToWeightData(fmt.Sprintf("%s.weight", utils.LayerKey(i)), m),
			Bias:   utils.VectorToWeightData(fmt.Sprintf("%s.bias", utils.LayerKey(i)), mat.NewVecDense(len(biases[i]), biases[i])),
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return ioErr("writing weights", err)
	}
	return nil
}

// ReadJSON reads a document written by WriteJSON.
func ReadJSON(r io.Reader) (*nn.Network, error) {
	var doc utils.ModelWeights
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		var syntax *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syntax):
			return nil, &ParseError{Marker: "json", Offset: int(syntax.Offset), Err: err}
		case errors.As(err, &typeErr):
			return nil, &ParseError{Marker: "json", Offset: int(typeErr.Offset), Err: err}
		}
		return nil, ioErr("reading weights", err)
	}

	sizes := doc.Architecture
	if len(sizes) < 2 {
		return nil, &ParseError{Marker: "architecture", Err: fmt.Errorf("need at least 2 layers, got %v", sizes)}
	}
	if len(doc.Layers) != len(sizes)-1 {
		return nil, &nn.ShapeError{What: "layers in document", Index: -1, Want: len(sizes) - 1, Got: len(doc.Layers)}
	}

	weights := make([][][]float64, len(sizes)-1)
	biases := make([][]float64, len(sizes)-1)
	for i := range weights {
		key := utils.LayerKey(i)
		layer, ok := doc.Layers[key]
		if !ok || layer.Weight == nil || layer.Bias == nil {
			return nil, &ParseError{Marker: key}
		}
		if err := checkWeightShape(key, layer.Weight.Shape, sizes[i+1], sizes[i]); err != nil {
			return nil, err
		}
		rows, err := layer.Weight.Rows()
		if err != nil {
			return nil, &ParseError{Marker: key, Err: err}
		}
		bias, err := layer.Bias.Vector()
		if err != nil {
			return nil, &ParseError{Marker: key, Err: err}
		}
		weights[i], biases[i] = rows, bias
	}
	return nn.FromParameters(sizes, weights, biases)
}

// checkWeightShape compares a declared weight shape with the architecture
// before any rows are built from it.
func checkWeightShape(key string, shape []int, rows, cols int) error {
	if len(shape) != 2 {
		return &nn.ShapeError{What: key + " weight dimensions", Index: -1, Want: 2, Got: len(shape)}
	}
	if shape[0] != rows {
		return &nn.ShapeError{What: key + " weight rows", Index: -1, Want: rows, Got: shape[0]}
	}
	if shape[1] != cols {
		return &nn.ShapeError{What: key + " weight columns", Index: -1, Want: cols, Got: shape[1]}
	}
	return nil
}
