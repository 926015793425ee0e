package embedding

import (
	"fmt"

	"github.com/claimlens/claimlens/internal/config"
)

// NewFromConfig builds the configured embedding backend wrapped with the retry
// policy. Backends: "mock" (deterministic), "remote" (HTTP service), "onnx"
// (local model, requires CGO).
func NewFromConfig(cfg *config.EmbeddingConfig) (Embedder, error) {
	var inner Embedder
	switch cfg.Backend {
	case "mock", "":
		inner = NewMockEmbedder(cfg.Dimensions)
	case "remote":
		remote, err := NewRemoteEmbedder(cfg.Endpoint, cfg.Dimensions, cfg.Timeout, cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("remote embedder: %w", err)
		}
		inner = remote
	case "onnx":
		onnx, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("onnx embedder: %w", err)
		}
		inner = onnx
	default:
		return nil, fmt.Errorf("unknown embedding backend: %s (supported: mock, remote, onnx)", cfg.Backend)
	}
	return NewRetryEmbedder(inner, RetryPolicy{
		Attempts:    cfg.RetryAttempts,
		BackoffBase: cfg.BackoffBase,
		BackoffMax:  cfg.BackoffMax,
	}), nil
}
