package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline failures. Infrastructure errors that are
// worth retrying are wrapped in RemoteError instead.
var (
	// ErrNotFound indicates a requested remote item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates no extractor handles the MIME type.
	ErrUnsupportedType = errors.New("unsupported document type")

	// ErrDecode indicates the document bytes could not be decoded.
	ErrDecode = errors.New("undecodable document content")

	// ErrEmptyDocument indicates extraction produced no text.
	ErrEmptyDocument = errors.New("document contains no extractable text")

	// ErrChunkConfig indicates invalid chunking parameters
	// (overlap must be smaller than the chunk size).
	ErrChunkConfig = errors.New("invalid chunk configuration")

	// ErrTraversalLimit indicates folder recursion exceeded the depth cap.
	ErrTraversalLimit = errors.New("folder traversal depth limit exceeded")

	// ErrNoDocuments indicates the resolved target set contains no usable files.
	ErrNoDocuments = errors.New("no documents to answer from")

	// ErrLLMUnavailable indicates the language model service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)

// RemoteError wraps a failed call to an external collaborator (file store,
// embedding API, vector index, language model). Retryable marks transient
// connectivity and rate-limit failures eligible for backoff-and-retry.
type RemoteError struct {
	Op        string
	Retryable bool
	Err       error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote call %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewRemoteError wraps err as a remote call failure.
func NewRemoteError(op string, retryable bool, err error) *RemoteError {
	return &RemoteError{Op: op, Retryable: retryable, Err: err}
}

// IsRetryable reports whether err is a transient remote failure.
// Format and validation errors are never retryable.
func IsRetryable(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Retryable
}
