package dfc

import (
	"errors"
	"fmt"
)

var (
	// ErrAllocation reports that the pattern id space is exhausted. The
	// engine must be discarded.
	ErrAllocation = errors.New("dfc: allocation failed")

	// ErrInvalidPatternLength is returned for patterns outside the configured bounds.
	ErrInvalidPatternLength = errors.New("dfc: invalid pattern length")

	// ErrNotCompiled is returned by Search before Compile succeeds.
	ErrNotCompiled = errors.New("dfc: engine not compiled")

	// ErrAlreadyCompiled is returned when the build phase is over.
	ErrAlreadyCompiled = errors.New("dfc: engine already compiled")

	// ErrBuildFailed is returned by every call after an ErrAllocation.
	ErrBuildFailed = errors.New("dfc: engine build failed")

	// ErrFreed is returned by every call after Free.
	ErrFreed = errors.New("dfc: engine freed")
)

// PatternLengthError describes a rejected pattern length.
type PatternLengthError struct {
	Length int
	Min    int
	Max    int
}

func (e *PatternLengthError) Error() string {
	return fmt.Sprintf("dfc: pattern length %d outside [%d, %d]", e.Length, e.Min, e.Max)
}

// Unwrap lets errors.Is match ErrInvalidPatternLength.
func (e *PatternLengthError) Unwrap() error {
	return ErrInvalidPatternLength
}
