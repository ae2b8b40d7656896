package nn

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks.
var (
	ErrShape  = errors.New("shape mismatch")
	ErrConfig = errors.New("invalid configuration")
	ErrParse  = errors.New("parse error")
	ErrIO     = errors.New("i/o error")

	// ErrUninitialized is returned by operations on a zero Network.
	ErrUninitialized = &ConfigError{Field: "network", Reason: "not initialized"}
)

// ShapeError reports a vector, matrix or file whose size disagrees with the
// network's expected shape.
type ShapeError struct {
	What  string // e.g. "input", "label", "layer 1 weights"
	Index int    // sample/layer index, -1 when not applicable
	Want  int
	Got   int
}

func (e *ShapeError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("shape mismatch: %s %d has length %d, want %d", e.What, e.Index, e.Got, e.Want)
	}
	return fmt.Sprintf("shape mismatch: %s has length %d, want %d", e.What, e.Got, e.Want)
}

func (e *ShapeError) Is(target error) bool { return target == ErrShape }

func shapeErr(what string, index, want, got int) error {
	return &ShapeError{What: what, Index: index, Want: want, Got: got}
}

// ConfigError reports a non-positive batch size, learning rate, layer size or
// an out-of-range hyperparameter.
type ConfigError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }
