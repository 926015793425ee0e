package embedding

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/claimlens/claimlens/internal/models"
)

// RetryPolicy bounds retries of transient embedding failures.
type RetryPolicy struct {
	// Attempts is the total number of tries (1 = no retry).
	Attempts    int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// DefaultRetryPolicy retries twice after the first failure with exponential
// backoff and jitter.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:    3,
	BackoffBase: 200 * time.Millisecond,
	BackoffMax:  5 * time.Second,
}

// RetryEmbedder wraps an Embedder and retries transient failures
// (models.ErrEmbeddingUnavailable) with bounded exponential backoff. All other
// errors surface immediately. After the attempt cap the last error is returned
// so the caller can fail the document and record the reason.
type RetryEmbedder struct {
	inner  Embedder
	policy RetryPolicy
}

// NewRetryEmbedder wraps inner with the given policy.
func NewRetryEmbedder(inner Embedder, policy RetryPolicy) *RetryEmbedder {
	if policy.Attempts <= 0 {
		policy.Attempts = DefaultRetryPolicy.Attempts
	}
	if policy.BackoffBase <= 0 {
		policy.BackoffBase = DefaultRetryPolicy.BackoffBase
	}
	if policy.BackoffMax <= 0 {
		policy.BackoffMax = DefaultRetryPolicy.BackoffMax
	}
	return &RetryEmbedder{inner: inner, policy: policy}
}

func (e *RetryEmbedder) backoff() retry.Backoff {
	b := retry.NewExponential(e.policy.BackoffBase)
	// retry.WithJitter panics on a zero jitter, so skip it for sub-4ns bases.
	if jitter := e.policy.BackoffBase / 4; jitter > 0 {
		b = retry.WithJitter(jitter, b)
	}
	b = retry.WithCappedDuration(e.policy.BackoffMax, b)
	return retry.WithMaxRetries(uint64(e.policy.Attempts-1), b)
}

// Embed retries e.inner.Embed on transient failures.
func (e *RetryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	err := retry.Do(ctx, e.backoff(), func(ctx context.Context) error {
		emb, err := e.inner.Embed(ctx, text)
		if err != nil {
			if models.Retryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = emb
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EmbedBatch retries e.inner.EmbedBatch on transient failures.
func (e *RetryEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32
	err := retry.Do(ctx, e.backoff(), func(ctx context.Context) error {
		embs, err := e.inner.EmbedBatch(ctx, texts)
		if err != nil {
			if models.Retryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = embs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Dimensions returns the inner embedder's dimension.
func (e *RetryEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close closes the inner embedder.
func (e *RetryEmbedder) Close() error {
	return e.inner.Close()
}
