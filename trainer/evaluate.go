package trainer

import (
	"mlp_lib/dataset"
	"mlp_lib/nn"
)

// Evaluate counts the samples whose predicted class matches the label and
// returns the count and the accuracy in percent.
func Evaluate(net *nn.Network, set *dataset.DataSet) (int, float64, error) {
	if set.Len() == 0 {
		return 0, 0, nil
	}
	correct := 0
	for i, s := range set.Samples {
		class, err := net.Predict(s)
		if err != nil {
			return 0, 0, err
		}
		if class == set.Class(i) {
			correct++
		}
	}
	return correct, float64(correct) / float64(set.Len()) * 100, nil
}

// Predict classifies every sample.
func Predict(net *nn.Network, samples [][]float64) ([]int, error) {
	out := make([]int, len(samples))
	for i, s := range samples {
		class, err := net.Predict(s)
		if err != nil {
			return nil, err
		}
		out[i] = class
	}
	return out, nil
}

// Confusion returns counts[label][predicted] over the set.
func Confusion(net *nn.Network, set *dataset.DataSet) ([][]int, error) {
	classes := net.OutputSize()
	counts := make([][]int, classes)
	for i := range counts {
		counts[i] = make([]int, classes)
	}
	for i, s := range set.Samples {
		class, err := net.Predict(s)
		if err != nil {
			return nil, err
		}
		counts[set.Class(i)][class]++
	}
	return counts, nil
}
