// mlp-bench: times mini-batch training (and optionally encrypted first-layer
// inference) for several architectures, worker counts and core counts, and
// writes one CSV row per case.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"mlp_lib/core/ckkswrapper"
	"mlp_lib/nn"
	"mlp_lib/split"
	"mlp_lib/utils"

	"golang.org/x/exp/rand"
)

// parseCSVInts parses a comma-separated list of integers
func parseCSVInts(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid int %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func synthetic(rnd *rand.Rand, n, in, out int) ([][]float64, [][]float64) {
	samples := make([][]float64, n)
	labels := make([][]float64, n)
	for i := range samples {
		samples[i] = make([]float64, in)
		for k := range samples[i] {
			samples[i][k] = rnd.Float64()*2 - 1
		}
		labels[i] = make([]float64, out)
		labels[i][rnd.Intn(out)] = 1
	}
	return samples, labels
}

// measureTrain averages one Train call over iters after warmup calls.
func measureTrain(net *nn.Network, samples, labels [][]float64, iters, warmup int) (time.Duration, error) {
	batch := len(samples)
	for i := 0; i < warmup; i++ {
		if err := net.Train(samples, labels, batch, 1, 0.1); err != nil {
			return 0, err
		}
	}
	start := time.Now()
	for i := 0; i < iters; i++ {
		if err := net.Train(samples, labels, batch, 1, 0.1); err != nil {
			return 0, err
		}
	}
	if iters == 0 {
		return 0, nil
	}
	return time.Since(start) / time.Duration(iters), nil
}

// measureEncrypted averages one split forward pass over iters.
func measureEncrypted(net *nn.Network, samples [][]float64, iters int) (time.Duration, error) {
	he, err := ckkswrapper.NewHeContext()
	if err != nil {
		return 0, err
	}
	c2sR, c2sW := io.Pipe()
	s2cR, s2cW := io.Pipe()
	defer c2sW.Close()
	defer s2cW.Close()

	server, err := split.NewServer(net, split.NewProtocol(c2sR, s2cW))
	if err != nil {
		return 0, err
	}
	done := make(chan error, 1)
	go func() { done <- server.Serve() }()

	client, err := split.NewClient(he, net, split.NewProtocol(s2cR, c2sW))
	if err != nil {
		return 0, err
	}
	if err := client.Setup(); err != nil {
		return 0, err
	}
	if iters > len(samples) {
		iters = len(samples)
	}
	start := time.Now()
	for i := 0; i < iters; i++ {
		if _, err := client.FeedForward(samples[i]); err != nil {
			return 0, err
		}
	}
	elapsed := time.Since(start)
	if err := client.Close(); err != nil {
		return 0, err
	}
	if err := <-done; err != nil {
		return 0, err
	}
	if iters == 0 {
		return 0, nil
	}
	return elapsed / time.Duration(iters), nil
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.6f", float64(d.Nanoseconds())/1e9)
}

func main() {
	var archsFlag string
	var workersCSV string
	var coresCSV string
	var outPath string
	var batch int
	var iters int
	var warmup int
	var includeHE bool
	var seed int64

	flag.StringVar(&archsFlag, "archs", "784 30 10;784 100 10", "Semicolon-separated list of architectures")
	flag.StringVar(&workersCSV, "workers", "1,2,4,8", "Comma-separated list of worker counts")
	flag.StringVar(&coresCSV, "cores", strconv.Itoa(runtime.NumCPU()), "Comma-separated list of GOMAXPROCS values")
	flag.StringVar(&outPath, "out", "bench_results.csv", "Output CSV path")
	flag.IntVar(&batch, "batch", 100, "Mini-batch size")
	flag.IntVar(&iters, "iters", 20, "Timed iterations per case")
	flag.IntVar(&warmup, "warmup", 2, "Warmup iterations per case")
	flag.BoolVar(&includeHE, "he", false, "Also time encrypted first-layer inference")
	flag.Int64Var(&seed, "seed", 1, "Random seed")
	flag.Parse()

	var archs [][]int
	for _, a := range strings.Split(archsFlag, ";") {
		if strings.TrimSpace(a) == "" {
			continue
		}
		sizes, err := utils.ParseArchitecture(a)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid architecture %q: %v\n", a, err)
			os.Exit(2)
		}
		archs = append(archs, sizes)
	}
	workersList, err := parseCSVInts(workersCSV)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid workers: %v\n", err)
		os.Exit(2)
	}
	coresList, err := parseCSVInts(coresCSV)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid cores: %v\n", err)
		os.Exit(2)
	}

	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create output CSV: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()

	w.Write([]string{"arch", "mode", "workers", "num_cores", "batch_size", "time_per_call", "time_per_sample"})

	rnd := rand.New(rand.NewSource(uint64(seed)))
	for _, sizes := range archs {
		name := utils.FormatArchitecture(sizes)
		samples, labels := synthetic(rnd, batch, sizes[0], sizes[len(sizes)-1])
		base, err := nn.NewWithSource(sizes, rand.NewSource(uint64(seed)))
		if err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", name, err)
			continue
		}

		for _, cores := range coresList {
			runtime.GOMAXPROCS(cores)
			for _, workers := range workersList {
				net := base.Clone()
				net.SetWorkers(workers)
				d, err := measureTrain(net, samples, labels, iters, warmup)
				if err != nil {
					fmt.Fprintf(os.Stderr, "skip %s workers=%d: %v\n", name, workers, err)
					continue
				}
				w.Write([]string{name, "Train", strconv.Itoa(workers), strconv.Itoa(cores), strconv.Itoa(batch),
					seconds(d), seconds(d / time.Duration(batch))})
			}

			if includeHE {
				d, err := measureEncrypted(base, samples, iters)
				if err != nil {
					fmt.Fprintf(os.Stderr, "skip %s HE: %v\n", name, err)
				} else {
					w.Write([]string{name, "HE", "-", strconv.Itoa(cores), "1", seconds(d), seconds(d)})
				}
			}
			w.Flush()
		}
	}

	fmt.Printf("Wrote results to %s\n", outPath)
}
