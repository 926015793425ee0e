package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/claimlens/data/db/claims.db"
	}
	if cfg.Storage.ClauseIndexPath == "" {
		cfg.Storage.ClauseIndexPath = "/usr/local/var/claimlens/data/indices/clauses"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/claimlens/data/indices/vectors.bin"
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = "mock"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 10 * time.Second
	}
	if cfg.Embedding.RetryAttempts == 0 {
		cfg.Embedding.RetryAttempts = 3
	}
	if cfg.Embedding.BackoffBase == 0 {
		cfg.Embedding.BackoffBase = 200 * time.Millisecond
	}
	if cfg.Embedding.BackoffMax == 0 {
		cfg.Embedding.BackoffMax = 5 * time.Second
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = 4
	}
	if cfg.Pipeline.ChunkSize == 0 {
		cfg.Pipeline.ChunkSize = 800
	}
	if cfg.Pipeline.ChunkOverlap == 0 {
		cfg.Pipeline.ChunkOverlap = 100
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 10
	}
	if cfg.Payment.UPIID == "" {
		cfg.Payment.UPIID = "claims@oksbi"
	}
	if cfg.Payment.Amount == 0 {
		cfg.Payment.Amount = 20
	}
	if cfg.Intake.Extensions == nil {
		cfg.Intake.Extensions = []string{".pdf", ".doc", ".docx", ".txt", ".xlsx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Intake.Directories) > 0 && cfg.Intake.Recursive == nil {
		t := true
		cfg.Intake.Recursive = &t
	}
}
