package models

import "errors"

// Error taxonomy for the intake and evaluation pipeline. Callers classify with
// errors.Is; wrapping sites attach the document or query ID for correlation.
var (
	// ErrUnsupportedFormat: the upload's mime kind is not recognized.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrCorruptDocument: parsing produced no usable text.
	ErrCorruptDocument = errors.New("corrupt document")
	// ErrEmbeddingUnavailable: the embedding backend could not be reached.
	// Retryable with backoff; after exhausted retries the document fails.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	// ErrEntityExtractionIncomplete: required query fields are missing.
	// Soft: evaluation proceeds with partial entities at reduced confidence.
	ErrEntityExtractionIncomplete = errors.New("entity extraction incomplete")
	// ErrNoMatchingClause: no clause authorizes the procedure. Produces a
	// rejection decision, not an evaluation failure.
	ErrNoMatchingClause = errors.New("no matching clause")
	// ErrPaymentRequired: evaluation was attempted without payment verification.
	ErrPaymentRequired = errors.New("payment required")
	// ErrEvaluationFailed: unrecoverable failure during evaluation; the query is
	// marked failed and the reason surfaced to the caller.
	ErrEvaluationFailed = errors.New("internal evaluation failure")
)

// Retryable reports whether err is transient and worth retrying with backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable)
}
