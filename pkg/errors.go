package ldup

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexFinalized is returned by Admit once the index is read-only
	ErrIndexFinalized = errors.New("duplicate index is finalized")

	// ErrInterrupted is returned when a shutdown signal stops a walk or a hash
	ErrInterrupted = errors.New("interrupted by shutdown")

	// ErrUnsupportedAlgorithm is returned for unknown hash algorithm names
	ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")
)

// SkippedFile records a file dropped from the index because it could not be
// measured or read
type SkippedFile struct {
	Path string
	Err  error
}

func (s SkippedFile) Error() string {
	return fmt.Sprintf("skipped %s: %v", s.Path, s.Err)
}

func (s SkippedFile) Unwrap() error {
	return s.Err
}

// joinSkipped folds a skip list into one error, nil when empty
func joinSkipped(skipped []SkippedFile) error {
	if len(skipped) == 0 {
		return nil
	}
	errs := make([]error, 0, len(skipped))
	for _, s := range skipped {
		errs = append(errs, s)
	}
	return errors.Join(errs...)
}
