package service

import (
	"errors"
	"fmt"
)

// ErrBatchNotFound is returned when a batch id is unknown.
var ErrBatchNotFound = errors.New("batch not found")

// ErrFeatureNotFound is returned when a feature id is unknown within a
// batch.
var ErrFeatureNotFound = errors.New("feature not found in batch")

// ErrFeatureNotRetryable is returned when retry targets a feature that is
// not in the failed state.
var ErrFeatureNotRetryable = errors.New("feature is not in a retryable state")

// ErrCaseNotFound is returned when a test case id is unknown.
var ErrCaseNotFound = errors.New("test case not found")

// GenerationError means a feature produced zero usable test cases. It
// marks the feature failed without affecting its siblings.
type GenerationError struct {
	Dimension Dimension
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Dimension != "" {
		return fmt.Sprintf("generation failed for dimension %s: %v", e.Dimension, e.Err)
	}
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
