// mlp-train: trains a sigmoid network on IDX (MNIST) files, keeping the
// parameters with the best test accuracy.
//
// Usage:
//
//	mlp-train -train-images=train-images-idx3-ubyte -train-labels=train-labels-idx1-ubyte \
//	          -test-images=t10k-images-idx3-ubyte -test-labels=t10k-labels-idx1-ubyte \
//	          -arch="784 30 10" -epochs=30 -batch=10 -gamma=3 -save=network.bin
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"mlp_lib/dataset"
	"mlp_lib/distort"
	"mlp_lib/nn"
	"mlp_lib/persist"
	"mlp_lib/trainer"
	"mlp_lib/utils"

	"golang.org/x/exp/rand"
)

var (
	defaults = utils.DefaultConfig()

	trainImages = flag.String("train-images", "train-images-idx3-ubyte", "Training images (IDX)")
	trainLabels = flag.String("train-labels", "train-labels-idx1-ubyte", "Training labels (IDX)")
	testImages  = flag.String("test-images", "t10k-images-idx3-ubyte", "Test images (IDX)")
	testLabels  = flag.String("test-labels", "t10k-labels-idx1-ubyte", "Test labels (IDX)")
	extraImages = flag.String("extra-images", "", "Additional training images mixed in front of the training set")
	extraLabels = flag.String("extra-labels", "", "Labels for -extra-images")
	limit       = flag.Int("limit", 0, "Read at most this many samples per file (0 = all)")

	arch     = flag.String("arch", utils.FormatArchitecture(defaults.Architecture), "Layer sizes")
	epochs   = flag.Int("epochs", defaults.Epochs, "Number of training epochs")
	batch    = flag.Int("batch", defaults.BatchSize, "Mini-batch size")
	gamma    = flag.Float64("gamma", defaults.Gamma, "Learning rate")
	momentum = flag.Float64("momentum", defaults.Momentum, "Momentum coefficient in [0, 1)")
	scope    = flag.String("momentum-scope", defaults.MomentumScope, "Momentum buffer lifetime: call, iteration, persistent")
	distortN = flag.Int("distort", defaults.DistortEvery, "Distort the training set every N epochs (0 = never)")
	workers  = flag.Int("workers", defaults.Workers, "Goroutines per mini-batch")
	seed     = flag.Int64("seed", defaults.Seed, "Random seed for initialization and distortion")
	standard = flag.Bool("standardize", false, "Standardize features with the training set moments, saved next to -save")
	resume   = flag.String("resume", "", "Start from a saved network instead of random parameters")

	savePath = flag.String("save", defaults.SavePath, "Where to save the best network (empty = don't save)")
	format   = flag.String("format", "", "Save format: binary, raw, text, json (default: from extension)")
	verbose  = flag.Bool("verbose", true, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	cfg, err := buildConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration:\n")
	fmt.Printf("  Architecture:  %s\n", utils.FormatArchitecture(cfg.Architecture))
	fmt.Printf("  Epochs:        %d\n", cfg.Epochs)
	fmt.Printf("  Batch size:    %d\n", cfg.BatchSize)
	fmt.Printf("  Gamma:         %.4f\n", cfg.Gamma)
	fmt.Printf("  Momentum:      %.2f (%s)\n", cfg.Momentum, cfg.MomentumScope)
	fmt.Printf("  Distortion:    every %d epochs\n", cfg.DistortEvery)
	fmt.Printf("  Workers:       %d\n", cfg.Workers)
	fmt.Println()

	start := time.Now()
	classes := cfg.Architecture[len(cfg.Architecture)-1]
	training, err := dataset.LoadMNIST(cfg.TrainImages, cfg.TrainLabels, classes, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading training set: %v\n", err)
		os.Exit(1)
	}
	testing, err := dataset.LoadMNIST(cfg.TestImages, cfg.TestLabels, classes, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading test set: %v\n", err)
		os.Exit(1)
	}
	var extra *dataset.DataSet
	if *extraImages != "" {
		extra, err = dataset.LoadMNIST(*extraImages, *extraLabels, classes, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading extra set: %v\n", err)
			os.Exit(1)
		}
	}
	if *standard {
		if err := standardize(training, testing, extra, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	loadTime := time.Since(start)
	fmt.Printf("Loaded %d training and %d test samples\n", training.Len(), testing.Len())

	start = time.Now()
	net, err := buildNetwork(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building network: %v\n", err)
		os.Exit(1)
	}
	initTime := time.Since(start)

	var d distort.Distorter
	if cfg.DistortEvery > 0 {
		d = distort.NewImageDistorter(training.Rows, training.Cols, cfg.DistortEvery, rand.NewSource(uint64(cfg.Seed)))
	}

	simple, err := trainer.NewSimpleTrainer(net, cfg, d)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	var t trainer.Trainer = simple
	if extra != nil {
		t = &trainer.MixedTrainer{SimpleTrainer: simple, Extra: []*dataset.DataSet{extra}}
	}
	if err := t.Load(training, testing); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	res, err := t.Train()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error training: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nBest accuracy %.2f%% at epoch %d\n", res.BestAccuracy, res.BestEpoch)
	if *verbose {
		res.Timing.DataLoadingTime = loadTime
		res.Timing.ModelInitTime = initTime
		utils.PrintTimingStats(&res.Timing, res.Epochs)
	}
}

func buildConfig() (*utils.Config, error) {
	sizes, err := utils.ParseArchitecture(*arch)
	if err != nil {
		return nil, err
	}
	cfg := utils.DefaultConfig()
	cfg.Architecture = sizes
	cfg.Epochs = *epochs
	cfg.BatchSize = *batch
	cfg.Gamma = *gamma
	cfg.Momentum = *momentum
	cfg.MomentumScope = *scope
	cfg.DistortEvery = *distortN
	cfg.Workers = *workers
	cfg.Seed = *seed
	cfg.TrainImages = *trainImages
	cfg.TrainLabels = *trainLabels
	cfg.TestImages = *testImages
	cfg.TestLabels = *testLabels
	cfg.SavePath = *savePath
	cfg.Format = *format
	return cfg, utils.ValidateConfig(cfg)
}

func buildNetwork(cfg *utils.Config) (*nn.Network, error) {
	var (
		net *nn.Network
		err error
	)
	if *resume != "" {
		net, err = persist.LoadNetwork(*resume, cfg.Architecture)
	} else {
		net, err = nn.NewWithSource(cfg.Architecture, rand.NewSource(uint64(cfg.Seed)))
	}
	if err != nil {
		return nil, err
	}

	sc, err := nn.ParseMomentumScope(cfg.MomentumScope)
	if err != nil {
		return nil, err
	}
	if err := net.SetMomentumCoefficient(cfg.Momentum); err != nil {
		return nil, err
	}
	net.SetMomentumScope(sc)
	net.SetWorkers(cfg.Workers)
	return net, nil
}

// standardize rescales both sets with the training moments and stores them
// beside the saved network for mlp-infer -moments.
func standardize(training, testing, extra *dataset.DataSet, cfg *utils.Config) error {
	if cfg.DistortEvery > 0 || extra != nil {
		return &nn.ConfigError{Field: "standardize", Value: true, Reason: "works on raw pixels only, without -distort or -extra-images"}
	}
	mean, std := dataset.Moments(training)
	if err := dataset.Standardize(training, mean, std); err != nil {
		return err
	}
	if err := dataset.Standardize(testing, mean, std); err != nil {
		return err
	}
	if cfg.SavePath == "" {
		return nil
	}
	path := cfg.SavePath + ".moments.json"
	utils.Logf("TRAIN", "Saving feature moments to %s", path)
	return dataset.SaveMoments(path, mean, std)
}
