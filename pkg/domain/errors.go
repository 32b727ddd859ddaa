package domain

import (
	"errors"
	"fmt"
)

// ErrCatalogUnavailable is returned when the node catalog could not be fetched.
var ErrCatalogUnavailable = errors.New("node catalog unavailable")

// ErrTemplateNotFound is returned when a catalog index is out of range.
var ErrTemplateNotFound = errors.New("node template not found")

// ErrNodeNotFound is returned when an operation references an absent node ID.
var ErrNodeNotFound = errors.New("node not found")

// ErrEdgeNotFound is returned when an operation references an absent edge ID.
var ErrEdgeNotFound = errors.New("edge not found")

// ErrSelfLoop is returned by Connect when the edge policy rejects self-loops.
var ErrSelfLoop = errors.New("self-loop rejected by edge policy")

// ErrParallelEdge is returned by Connect when the edge policy rejects duplicate edges.
var ErrParallelEdge = errors.New("parallel edge rejected by edge policy")

// ErrSubmissionFailed is returned when the training endpoint could not be reached
// or answered with a non-2xx status.
var ErrSubmissionFailed = errors.New("training submission failed")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// SubmissionError carries the status and body of a rejected submission.
// It matches ErrSubmissionFailed with errors.Is.
type SubmissionError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v: status %d", ErrSubmissionFailed, e.StatusCode)
	}
	return fmt.Sprintf("%v: %v", ErrSubmissionFailed, e.Err)
}

func (e *SubmissionError) Is(target error) bool {
	return target == ErrSubmissionFailed
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
