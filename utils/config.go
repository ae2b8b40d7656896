package utils

import (
	"fmt"
	"strconv"
	"strings"

	"mlp_lib/nn"
)

// Config holds training configuration
type Config struct {
	Architecture  []int
	Epochs        int
	BatchSize     int
	Gamma         float64
	Momentum      float64
	MomentumScope string
	DistortEvery  int
	Workers       int
	Seed          int64

	TrainImages string
	TrainLabels string
	TestImages  string
	TestLabels  string

	SavePath string
	Format   string
}

// DefaultConfig mirrors the classic MNIST setup: one hidden layer of 30
// sigmoid neurons, batches of 10.
func DefaultConfig() *Config {
	return &Config{
		Architecture:  []int{784, 30, 10},
		Epochs:        30,
		BatchSize:     10,
		Gamma:         3.0,
		MomentumScope: nn.MomentumPerCall.String(),
		Workers:       1,
		Seed:          1,
		SavePath:      "network.bin",
	}
}

// ParseArchitecture parses architecture string into slice of integers.
// Sizes may be separated by spaces or commas: "784 30 10", "784,30,10".
func ParseArchitecture(archStr string) ([]int, error) {
	archParts := strings.FieldsFunc(archStr, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	arch := make([]int, len(archParts))
	for i, s := range archParts {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		arch[i] = n
	}
	return arch, nil
}

// FormatArchitecture is the inverse of ParseArchitecture.
func FormatArchitecture(arch []int) string {
	parts := make([]string, len(arch))
	for i, n := range arch {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, " ")
}

// ValidateConfig validates training configuration
func ValidateConfig(config *Config) error {
	if len(config.Architecture) < 2 {
		return &nn.ConfigError{Field: "architecture", Value: config.Architecture, Reason: "must have at least 2 layers (input and output)"}
	}
	for i, n := range config.Architecture {
		if n <= 0 {
			return &nn.ConfigError{Field: "architecture", Value: config.Architecture, Reason: fmt.Sprintf("layer %d must be positive", i)}
		}
	}

	if config.Epochs <= 0 {
		return &nn.ConfigError{Field: "epochs", Value: config.Epochs, Reason: "must be positive"}
	}

	if config.BatchSize <= 0 {
		return &nn.ConfigError{Field: "batch size", Value: config.BatchSize, Reason: "must be positive"}
	}

	if !(config.Gamma > 0) {
		return &nn.ConfigError{Field: "learning rate", Value: config.Gamma, Reason: "must be positive"}
	}

	if config.Momentum < 0 || config.Momentum >= 1 {
		return &nn.ConfigError{Field: "momentum", Value: config.Momentum, Reason: "must be in [0, 1)"}
	}

	if _, err := nn.ParseMomentumScope(config.MomentumScope); err != nil {
		return err
	}

	if config.DistortEvery < 0 {
		return &nn.ConfigError{Field: "distortion frequency", Value: config.DistortEvery, Reason: "must not be negative"}
	}

	return nil
}
