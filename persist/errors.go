package persist

import (
	"errors"
	"fmt"
	"io"

	"mlp_lib/nn"
)

// ParseError reports a malformed marker or token in a text or JSON
// parameter file.
type ParseError struct {
	Marker string // tag being read, e.g. "</bias>"
	Offset int    // byte offset in the input
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parse error at offset %d: missing %s", e.Offset, e.Marker)
	}
	return fmt.Sprintf("parse error at offset %d in %s: %v", e.Offset, e.Marker, e.Err)
}

func (e *ParseError) Is(target error) bool { return target == nn.ErrParse }

func (e *ParseError) Unwrap() error { return e.Err }

// ioErr tags err as an I/O failure. A clean EOF in the middle of a record is
// a truncated stream.
func ioErr(context string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%s: %w: %w", context, nn.ErrIO, err)
}
