package ingestion

import "errors"

var (
	// ErrPassageRepositoryRequired is returned when a passage repository is not provided.
	ErrPassageRepositoryRequired = errors.New("passage repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrNoSources is returned when Ingest is called without sources.
	ErrNoSources = errors.New("no sources to ingest")

	// ErrFetchFailed is returned when a remote source answers with a non-2xx status.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrNoContent is returned when no source yields any text.
	ErrNoContent = errors.New("sources produced no content")

	// ErrEmbeddingMismatch is returned when the embedder returns the wrong number of vectors.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")

	// ErrInvalidMaxAttempts is returned when a retry policy allows no attempts.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrInvalidOption is returned when an option value is out of range.
	ErrInvalidOption = errors.New("invalid option")
)
