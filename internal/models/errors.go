package models

import "errors"

// Sentinel errors for pipeline operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrEmptyDocument indicates the document text is empty after normalization.
	ErrEmptyDocument = errors.New("empty document")

	// ErrEmbeddingFailure indicates an embedding call failed or returned a
	// vector of inconsistent dimensionality.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrModelMismatch indicates an index or chunk set was built with a different
	// embedding model than the one asked to serve it.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrGenerationFailure indicates the generation service failed.
	ErrGenerationFailure = errors.New("generation failure")

	// ErrConfiguration indicates invalid parameters (chunk size, overlap, k, ...).
	ErrConfiguration = errors.New("configuration error")

	// ErrArtifactNotFound indicates an artifact was never built.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrArtifactCorrupted indicates an artifact exists but fails payload or schema validation.
	ErrArtifactCorrupted = errors.New("artifact corrupted")

	// ErrTimeout indicates an external call exceeded its deadline. Retryable.
	ErrTimeout = errors.New("timeout")

	// ErrRateLimited indicates the provider throttled the request. Retryable.
	ErrRateLimited = errors.New("rate limited")

	// ErrEmptyQuery indicates a blank query.
	ErrEmptyQuery = errors.New("empty query")
)

// IsRetryable reports whether err is worth retrying by the caller.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited)
}
