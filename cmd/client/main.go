// mlp-client: classifies IDX samples through an mlp-server, talking over
// stdin/stdout. Results are reported on stderr.
//
// Usage (with a pair of named pipes):
//
//	mkfifo c2s s2c
//	mlp-server -network=network.bin < c2s > s2c &
//	mlp-client -network=network.bin -images=t10k-images-idx3-ubyte -labels=t10k-labels-idx1-ubyte > c2s < s2c
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"mlp_lib/core/ckkswrapper"
	"mlp_lib/dataset"
	"mlp_lib/persist"
	"mlp_lib/split"
	"mlp_lib/utils"
)

var (
	networkFile = flag.String("network", "network.bin", "Saved network; everything after the first layer runs here")
	arch        = flag.String("arch", "", "Layer sizes of a .raw network, e.g. \"784 30 10\"")
	images      = flag.String("images", "t10k-images-idx3-ubyte", "IDX images to classify")
	labels      = flag.String("labels", "t10k-labels-idx1-ubyte", "IDX labels for -images")
	limit       = flag.Int("limit", 100, "Classify at most this many samples (0 = all)")
	verbose     = flag.Bool("verbose", false, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose
	utils.Output = os.Stderr

	shape, err := parseArch(*arch)
	if err != nil {
		fail(err)
	}
	net, err := persist.LoadNetwork(*networkFile, shape)
	if err != nil {
		fail(err)
	}
	set, err := dataset.LoadMNIST(*images, *labels, net.OutputSize(), *limit)
	if err != nil {
		fail(err)
	}

	stats := &utils.TimingStats{}
	start := time.Now()
	he, err := ckkswrapper.NewHeContext()
	if err != nil {
		fail(err)
	}
	client, err := split.NewClient(he, net, split.NewProtocol(os.Stdin, os.Stdout))
	if err != nil {
		fail(err)
	}
	client.Stats = stats
	if err := client.Setup(); err != nil {
		fail(err)
	}
	stats.ModelInitTime = time.Since(start)

	correct := 0
	start = time.Now()
	for i, s := range set.Samples {
		class, err := client.Predict(s)
		if err != nil {
			fail(fmt.Errorf("sample %d: %w", i, err))
		}
		if class == set.Class(i) {
			correct++
		}
		utils.Logf("CLIENT", "sample %d: predicted %d, label %d", i, class, set.Class(i))
	}
	stats.EvaluationTime = time.Since(start)
	stats.TotalTime = stats.ModelInitTime + stats.EvaluationTime

	if err := client.Close(); err != nil {
		fail(err)
	}
	fmt.Fprintf(os.Stderr, "%d/%d correct answers, %.2f%%\n", correct, set.Len(), float64(correct)/float64(set.Len())*100)
	if *verbose {
		utils.PrintTimingStats(stats, 1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func parseArch(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	return utils.ParseArchitecture(s)
}
