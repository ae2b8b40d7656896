// mlp-infer: classifies samples with a saved network, optionally running
// the first layer on encrypted inputs.
//
// Usage:
//
//	mlp-infer -network=network.bin -images=t10k-images-idx3-ubyte -labels=t10k-labels-idx1-ubyte
//	mlp-infer -network=network.bin -trace-file=digit.trace -rows=28 -cols=28
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"mlp_lib/core/ckkswrapper"
	"mlp_lib/dataset"
	"mlp_lib/nn"
	"mlp_lib/persist"
	"mlp_lib/split"
	"mlp_lib/trainer"
	"mlp_lib/utils"
)

var (
	networkFile = flag.String("network", "network.bin", "Saved network (.bin, .raw, .xml, .json)")
	arch        = flag.String("arch", "", "Layer sizes of a .raw network, e.g. \"784 30 10\"")
	images      = flag.String("images", "", "IDX images to classify")
	labels      = flag.String("labels", "", "IDX labels for -images")
	limit       = flag.Int("limit", 0, "Classify at most this many samples (0 = all)")
	traceFile   = flag.String("trace-file", "", "File holding one trace group to classify")
	rows        = flag.Int("rows", 28, "Rendered trace height")
	cols        = flag.Int("cols", 28, "Rendered trace width")
	moments     = flag.String("moments", "", "Feature moments written by mlp-train -standardize")
	binarize    = flag.Bool("binarize", false, "Binarize samples to ±1 before classifying")
	encrypted   = flag.Bool("encrypted", false, "Run the first layer on encrypted inputs")
	confusion   = flag.Bool("confusion", false, "Print the confusion matrix")
	topK        = flag.Int("topk", 3, "Top predictions to show for a single sample")
	verbose     = flag.Bool("verbose", false, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	shape, err := parseArch(*arch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	net, err := persist.LoadNetwork(*networkFile, shape)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading network: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded network %s\n", utils.FormatArchitecture(net.Shape()))

	var forward func([]float64) ([]float64, error) = net.FeedForward
	if *encrypted {
		client, stop, err := startSplit(net)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error starting encrypted inference: %v\n", err)
			os.Exit(1)
		}
		defer stop()
		forward = client.FeedForward
	}

	switch {
	case *traceFile != "":
		err = classifyTrace(forward)
	case *images != "":
		err = classifySet(net, forward)
	default:
		err = fmt.Errorf("nothing to classify: pass -images or -trace-file")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// startSplit runs a split server in a goroutine, connected through pipes.
func startSplit(net *nn.Network) (*split.Client, func(), error) {
	start := time.Now()
	he, err := ckkswrapper.NewHeContext()
	if err != nil {
		return nil, nil, err
	}

	c2sR, c2sW := io.Pipe()
	s2cR, s2cW := io.Pipe()
	server, err := split.NewServer(net, split.NewProtocol(c2sR, s2cW))
	if err != nil {
		return nil, nil, err
	}
	done := make(chan error, 1)
	go func() {
		done <- server.Serve()
		s2cW.Close()
	}()

	client, err := split.NewClient(he, net, split.NewProtocol(s2cR, c2sW))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Setup(); err != nil {
		return nil, nil, err
	}
	utils.Logf("INFER", "HE setup took %.2fs", time.Since(start).Seconds())

	stop := func() {
		client.Close()
		if err := <-done; err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		}
		c2sW.Close()
	}
	return client, stop, nil
}

func classifyTrace(forward func([]float64) ([]float64, error)) error {
	data, err := os.ReadFile(*traceFile)
	if err != nil {
		return fmt.Errorf("%w: %w", nn.ErrIO, err)
	}
	sample, err := dataset.RenderTraceGroup(string(data), *rows, *cols)
	if err != nil {
		return err
	}
	if err := applyMoments(&dataset.DataSet{Samples: [][]float64{sample}}); err != nil {
		return err
	}
	start := time.Now()
	out, err := forward(sample)
	if err != nil {
		return err
	}
	fmt.Printf("Time: %.4fs\n", time.Since(start).Seconds())
	showResults(out, *topK)
	return nil
}

func classifySet(net *nn.Network, forward func([]float64) ([]float64, error)) error {
	set, err := dataset.LoadMNIST(*images, *labels, net.OutputSize(), *limit)
	if err != nil {
		return err
	}
	if *binarize {
		dataset.Binarize(set)
	}
	if err := applyMoments(set); err != nil {
		return err
	}
	if err := set.Validate(net.InputSize(), net.OutputSize()); err != nil {
		return err
	}

	start := time.Now()
	correct := 0
	for i, s := range set.Samples {
		out, err := forward(s)
		if err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		if argmax(out) == set.Class(i) {
			correct++
		}
	}
	elapsed := time.Since(start)
	fmt.Printf("%d/%d correct answers, %.2f%%\n", correct, set.Len(), float64(correct)/float64(set.Len())*100)
	fmt.Printf("Time: %.2fs (%.1f µs/sample)\n", elapsed.Seconds(), utils.DurationUS(elapsed)/float64(set.Len()))

	if *confusion {
		counts, err := trainer.Confusion(net, set)
		if err != nil {
			return err
		}
		fmt.Println("\nConfusion (rows: label, columns: predicted):")
		for label, row := range counts {
			fmt.Printf("%3d:", label)
			for _, c := range row {
				fmt.Printf(" %5d", c)
			}
			fmt.Println()
		}
	}
	return nil
}

func argmax(vals []float64) int {
	return topKIndices(vals, 1)[0]
}

func showResults(predictions []float64, k int) {
	indices := topKIndices(predictions, k)
	fmt.Printf("\nTop %d predictions:\n", len(indices))
	for i, idx := range indices {
		fmt.Printf("  %d. Class %d: %.4f\n", i+1, idx, predictions[idx])
	}
}

func topKIndices(vals []float64, k int) []int {
	if k > len(vals) {
		k = len(vals)
	}
	indices := make([]int, k)
	used := make(map[int]bool)
	for i := 0; i < k; i++ {
		maxIdx, maxVal := -1, math.Inf(-1)
		for j, v := range vals {
			if !used[j] && v > maxVal {
				maxVal, maxIdx = v, j
			}
		}
		indices[i] = maxIdx
		used[maxIdx] = true
	}
	return indices
}

func parseArch(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	return utils.ParseArchitecture(s)
}

func applyMoments(set *dataset.DataSet) error {
	if *moments == "" {
		return nil
	}
	mean, std, err := dataset.LoadMoments(*moments)
	if err != nil {
		return err
	}
	return dataset.Standardize(set, mean, std)
}
