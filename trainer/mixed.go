package trainer

import (
	"fmt"

	"mlp_lib/dataset"
)

// MixedTrainer trains on the concatenation of several sources, for example
// rendered handwriting traces followed by MNIST digits. Every sample is
// binarized to ±1 so that grey-level differences between sources vanish.
type MixedTrainer struct {
	*SimpleTrainer

	// Extra sets are placed before the training set passed to Load.
	Extra []*dataset.DataSet
}

// Load implements Trainer. The given sets are copied before binarization.
func (t *MixedTrainer) Load(training, testing *dataset.DataSet) error {
	sets := append(append([]*dataset.DataSet{}, t.Extra...), training)
	mixed, err := dataset.Concat(sets...)
	if err != nil {
		return fmt.Errorf("mixing training sets: %w", err)
	}
	mixed = mixed.Clone()
	dataset.Binarize(mixed)

	test := testing.Clone()
	dataset.Binarize(test)

	return t.SimpleTrainer.Load(mixed, test)
}
