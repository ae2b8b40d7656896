package nn

import (
	"fmt"
	"math"
	"strings"
	"sync"
)

// MomentumScope controls how long the momentum buffer survives.
type MomentumScope int

const (
	// MomentumPerCall zeroes the buffer at the start of every Train call and
	// carries it across that call's iterations.
	MomentumPerCall MomentumScope = iota
	// MomentumPerIteration zeroes the buffer together with the gradient
	// accumulator before every iteration.
	MomentumPerIteration
	// MomentumPersistent keeps one buffer for the lifetime of the network,
	// carried across Train calls until ResetMomentum.
	MomentumPersistent
)

func (s MomentumScope) String() string {
	switch s {
	case MomentumPerCall:
		return "call"
	case MomentumPerIteration:
		return "iteration"
	case MomentumPersistent:
		return "persistent"
	default:
		return fmt.Sprintf("MomentumScope(%d)", int(s))
	}
}

// ParseMomentumScope accepts "call", "iteration" or "persistent".
func ParseMomentumScope(s string) (MomentumScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "call":
		return MomentumPerCall, nil
	case "iteration":
		return MomentumPerIteration, nil
	case "persistent":
		return MomentumPersistent, nil
	}
	return 0, &ConfigError{Field: "momentum scope", Value: s, Reason: "want call, iteration or persistent"}
}

// Train runs iterations rounds of mini-batch gradient descent on the first
// batchSize pairs of batch and labels. Each round sums the gradient of every
// sample, then updates every parameter p with
//
//	m = (g*(1-μ) + m*μ) / batchSize
//	p -= gamma * m
//
// Arguments are validated before anything is modified.
func (n *Network) Train(batch, labels [][]float64, batchSize, iterations int, gamma float64) error {
	if !n.ready() {
		return ErrUninitialized
	}
	if err := n.checkTrainArgs(batch, labels, batchSize, iterations, gamma); err != nil {
		return err
	}

	acc := newGradient(n.sizes)
	momentum := n.momentumBuffer()

	for it := 0; it < iterations; it++ {
		acc.Zero()
		if n.momentumScope == MomentumPerIteration && it > 0 {
			momentum.Zero()
		}
		n.accumulateBatch(batch[:batchSize], labels[:batchSize], acc)
		n.applyUpdate(acc, momentum, batchSize, gamma)
	}
	return nil
}

func (n *Network) checkTrainArgs(batch, labels [][]float64, batchSize, iterations int, gamma float64) error {
	if batchSize <= 0 {
		return &ConfigError{Field: "batch size", Value: batchSize, Reason: "must be positive"}
	}
	if iterations <= 0 {
		return &ConfigError{Field: "iterations", Value: iterations, Reason: "must be positive"}
	}
	if math.IsNaN(gamma) || math.IsInf(gamma, 0) || gamma <= 0 {
		return &ConfigError{Field: "learning rate", Value: gamma, Reason: "must be positive and finite"}
	}
	if len(batch) < batchSize {
		return shapeErr("batch samples", -1, batchSize, len(batch))
	}
	if len(labels) < batchSize {
		return shapeErr("batch labels", -1, batchSize, len(labels))
	}

	in, out := n.sizes[0], n.sizes[len(n.sizes)-1]
	for s := 0; s < batchSize; s++ {
		if len(batch[s]) != in {
			return shapeErr("sample", s, in, len(batch[s]))
		}
		if len(labels[s]) != out {
			return shapeErr("label", s, out, len(labels[s]))
		}
	}
	return nil
}

// momentumBuffer returns the buffer for one Train call according to the
// configured scope.
func (n *Network) momentumBuffer() *Gradient {
	if n.momentumScope != MomentumPersistent {
		return newGradient(n.sizes)
	}
	if n.momentum == nil {
		n.momentum = newGradient(n.sizes)
	}
	return n.momentum
}

// accumulateBatch sums the gradient of every pair into acc. With more than
// one worker the pairs are split into contiguous chunks, each summed into a
// private Gradient, and the partial sums are added in chunk order.
func (n *Network) accumulateBatch(batch, labels [][]float64, acc *Gradient) {
	workers := n.workers
	if workers > len(batch) {
		workers = len(batch)
	}
	if workers < 2 {
		for s := range batch {
			n.accumulate(batch[s], labels[s], acc)
		}
		return
	}

	partials := make([]*Gradient, workers)
	chunk := (len(batch) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(batch) {
			end = len(batch)
		}
		if start >= end {
			continue
		}
		partials[w] = newGradient(n.sizes)

		wg.Add(1)
		go func(g *Gradient, start, end int) {
			defer wg.Done()
			for s := start; s < end; s++ {
				n.accumulate(batch[s], labels[s], g)
			}
		}(partials[w], start, end)
	}
	wg.Wait()

	for _, p := range partials {
		if p != nil {
			// shapes match by construction
			_ = acc.Add(p)
		}
	}
}

// applyUpdate folds acc into the momentum buffer and steps every parameter.
func (n *Network) applyUpdate(acc, momentum *Gradient, batchSize int, gamma float64) {
	mu := n.momentumCoefficient
	size := float64(batchSize)

	for i, w := range n.weights {
		bias := n.biases[i].RawVector().Data
		rows, _ := w.Dims()
		for j := 0; j < rows; j++ {
			g := acc.layers[i].RawRowView(j)
			m := momentum.layers[i].RawRowView(j)
			weights := w.RawRowView(j)

			m[0] = (g[0]*(1-mu) + m[0]*mu) / size
			bias[j] -= gamma * m[0]
			for k := range weights {
				m[k+1] = (g[k+1]*(1-mu) + m[k+1]*mu) / size
				weights[k] -= gamma * m[k+1]
			}
		}
	}
}
