package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Verbose controls whether progress and timing statistics are printed.
// Set to false to suppress output.
var Verbose = true

// Output is the writer where progress and timing statistics are printed.
// Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// TimingStats holds timing information for different operations
type TimingStats struct {
	TotalTime       time.Duration
	DataLoadingTime time.Duration
	ModelInitTime   time.Duration
	DistortionTime  time.Duration
	TrainingTime    time.Duration
	EvaluationTime  time.Duration
	SaveTime        time.Duration
	EncryptionTime  time.Duration
	ServerTime      time.Duration
	DecryptionTime  time.Duration
}

func percent(part, whole time.Duration) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// PrintTimingStats prints detailed timing statistics.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats, epochs int) {
	if !Verbose {
		return
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total time: %v\n", stats.TotalTime)
	if epochs > 0 {
		fmt.Fprintf(Output, "Average time per epoch: %v\n", stats.TotalTime/time.Duration(epochs))
	}
	fmt.Fprintf(Output, "Epochs completed: %d\n", epochs)
	fmt.Fprintln(Output, "\nBreakdown by operation:")
	fmt.Fprintf(Output, "  Data loading: %v (%.1f%%)\n", stats.DataLoadingTime, percent(stats.DataLoadingTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Model initialization: %v (%.1f%%)\n", stats.ModelInitTime, percent(stats.ModelInitTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Distortion: %v (%.1f%%)\n", stats.DistortionTime, percent(stats.DistortionTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Training: %v (%.1f%%)\n", stats.TrainingTime, percent(stats.TrainingTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Evaluation: %v (%.1f%%)\n", stats.EvaluationTime, percent(stats.EvaluationTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Saving: %v (%.1f%%)\n", stats.SaveTime, percent(stats.SaveTime, stats.TotalTime))
	if stats.EncryptionTime+stats.ServerTime+stats.DecryptionTime > 0 {
		fmt.Fprintln(Output, "\nEncrypted inference:")
		fmt.Fprintf(Output, "  Encryption: %v\n", stats.EncryptionTime)
		fmt.Fprintf(Output, "  Server layer: %v\n", stats.ServerTime)
		fmt.Fprintf(Output, "  Decryption: %v\n", stats.DecryptionTime)
	}
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}
