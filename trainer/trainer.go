// Package trainer drives epochs of mini-batch training over a dataset,
// evaluates the network after every epoch and keeps the best one on disk.
package trainer

import (
	"fmt"
	"time"

	"mlp_lib/dataset"
	"mlp_lib/distort"
	"mlp_lib/nn"
	"mlp_lib/persist"
	"mlp_lib/utils"
)

// Trainer loads a training and a testing set and trains on them.
type Trainer interface {
	Load(training, testing *dataset.DataSet) error
	Train() (*Result, error)
}

// Result summarises a training run. Accuracies are percentages, one per
// epoch.
type Result struct {
	Epochs       int
	BestEpoch    int
	BestAccuracy float64
	Accuracies   []float64
	Timing       utils.TimingStats
}

// SimpleTrainer trains Network on the loaded set in batches of BatchSize,
// one Train call of one iteration per batch. Every Distorter.Frequency()
// epochs (never on epoch 0) the training samples are replaced by a distorted
// copy of the original samples, so distortions never compound. After each
// epoch the network is evaluated on the testing set and saved to SavePath
// whenever the accuracy improves.
type SimpleTrainer struct {
	Network   *nn.Network
	Distorter distort.Distorter

	Epochs    int
	BatchSize int
	Gamma     float64

	SavePath string
	Format   persist.Format

	training *dataset.DataSet
	testing  *dataset.DataSet
}

// NewSimpleTrainer takes the hyperparameters from cfg. d may be nil.
func NewSimpleTrainer(net *nn.Network, cfg *utils.Config, d distort.Distorter) (*SimpleTrainer, error) {
	if err := utils.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	format := persist.FormatBinary
	if cfg.SavePath != "" {
		f, err := formatFor(cfg)
		if err != nil {
			return nil, err
		}
		format = f
	}
	return &SimpleTrainer{
		Network:   net,
		Distorter: d,
		Epochs:    cfg.Epochs,
		BatchSize: cfg.BatchSize,
		Gamma:     cfg.Gamma,
		SavePath:  cfg.SavePath,
		Format:    format,
	}, nil
}

func formatFor(cfg *utils.Config) (persist.Format, error) {
	if cfg.Format != "" {
		return persist.ParseFormat(cfg.Format)
	}
	return persist.FormatFromPath(cfg.SavePath)
}

// Load implements Trainer. Both sets must match the network's shape.
func (t *SimpleTrainer) Load(training, testing *dataset.DataSet) error {
	if t.Network == nil {
		return nn.ErrUninitialized
	}
	in, out := t.Network.InputSize(), t.Network.OutputSize()
	if err := training.Validate(in, out); err != nil {
		return fmt.Errorf("training set: %w", err)
	}
	if err := testing.Validate(in, out); err != nil {
		return fmt.Errorf("testing set: %w", err)
	}
	t.training, t.testing = training, testing
	return nil
}

// Train implements Trainer.
func (t *SimpleTrainer) Train() (*Result, error) {
	if t.training == nil || t.testing == nil {
		return nil, &nn.ConfigError{Field: "trainer", Reason: "no data loaded"}
	}
	if t.Epochs <= 0 {
		return nil, &nn.ConfigError{Field: "epochs", Value: t.Epochs, Reason: "must be positive"}
	}
	if t.BatchSize <= 0 || t.BatchSize > t.training.Len() {
		return nil, &nn.ConfigError{Field: "batch size", Value: t.BatchSize, Reason: fmt.Sprintf("must be in [1, %d]", t.training.Len())}
	}

	res := &Result{BestEpoch: -1}
	start := time.Now()

	pristine := t.training.Samples
	samples := pristine
	labels := t.training.Labels
	batches := len(samples) / t.BatchSize

	for epoch := 0; epoch < t.Epochs; epoch++ {
		utils.Logf("TRAIN", "Epoch: %d", epoch)

		if t.distortNow(epoch) {
			utils.Logf("TRAIN", "Distorting the training set...")
			s := time.Now()
			distorted, err := t.Distorter.Distort(pristine)
			if err != nil {
				return res, fmt.Errorf("epoch %d: distorting: %w", epoch, err)
			}
			samples = distorted
			res.Timing.DistortionTime += time.Since(s)
		}

		s := time.Now()
		epochSet := &dataset.DataSet{Samples: samples, Labels: labels}
		for b := 0; b < batches; b++ {
			x, y := epochSet.Batch(t.BatchSize, b)
			if err := t.Network.Train(x, y, t.BatchSize, 1, t.Gamma); err != nil {
				return res, fmt.Errorf("epoch %d batch %d: %w", epoch, b, err)
			}
		}
		res.Timing.TrainingTime += time.Since(s)

		s = time.Now()
		correct, accuracy, err := Evaluate(t.Network, t.testing)
		if err != nil {
			return res, fmt.Errorf("epoch %d: evaluating: %w", epoch, err)
		}
		res.Timing.EvaluationTime += time.Since(s)
		res.Accuracies = append(res.Accuracies, accuracy)
		res.Epochs = epoch + 1

		if accuracy > res.BestAccuracy || res.BestEpoch < 0 {
			res.BestAccuracy = accuracy
			res.BestEpoch = epoch
			if t.SavePath != "" {
				utils.Logf("TRAIN", "Found best accuracy, saving the network to %s", t.SavePath)
				s = time.Now()
				if err := persist.SaveFile(t.SavePath, t.Network, t.Format); err != nil {
					return res, fmt.Errorf("epoch %d: %w", epoch, err)
				}
				res.Timing.SaveTime += time.Since(s)
			}
		}

		utils.Logf("TRAIN", "%d/%d correct answers, %.2f%% (best so far %.2f%%)",
			correct, t.testing.Len(), accuracy, res.BestAccuracy)
	}

	res.Timing.TotalTime = time.Since(start)
	return res, nil
}

func (t *SimpleTrainer) distortNow(epoch int) bool {
	if t.Distorter == nil || epoch == 0 {
		return false
	}
	f := t.Distorter.Frequency()
	return f > 0 && epoch%f == 0
}
