// Package main is the ClaimLens CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/claimlens/claimlens/internal/config"
	"github.com/claimlens/claimlens/internal/docid"
	"github.com/claimlens/claimlens/internal/embedding"
	"github.com/claimlens/claimlens/internal/evaluator"
	"github.com/claimlens/claimlens/internal/export"
	"github.com/claimlens/claimlens/internal/history"
	"github.com/claimlens/claimlens/internal/ingest"
	"github.com/claimlens/claimlens/internal/keyword"
	"github.com/claimlens/claimlens/internal/models"
	"github.com/claimlens/claimlens/internal/payment"
	"github.com/claimlens/claimlens/internal/server"
	"github.com/claimlens/claimlens/internal/storage"
	"github.com/claimlens/claimlens/internal/vector"
	"github.com/claimlens/claimlens/internal/watcher"
	"github.com/claimlens/claimlens/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/claimlens/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so running from the project dir
// picks up the project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "query":
		runQuery()
	case "history":
		runHistory()
	case "status":
		runStatus()
	case "config":
		runConfig()
	case "version", "--version", "-v":
		fmt.Printf("claimlens version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	pipeline := components.Pipeline
	exts := cfg.Intake.Extensions
	watchOpts := []watcher.Option{watcher.WithLogger(logger)}
	intake := watcher.New(&cfg.Intake,
		func(path string) {
			if _, err := pipeline.IngestFile(context.Background(), path, exts); err != nil {
				logger.Warn("intake ingest failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			abs, absErr := filepath.Abs(path)
			if absErr != nil {
				return
			}
			if err := pipeline.Remove(context.Background(), docid.FromPath(abs)); err != nil {
				logger.Warn("intake remove failed", zap.String("path", path), zap.Error(err))
			}
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if len(cfg.Intake.Directories) > 0 {
		if err := intake.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start intake watcher", zap.Error(err))
		}
		intake.ScanExisting()
	}

	srv := server.NewServer(
		components.Storage,
		components.Pipeline,
		components.Evaluator,
		components.Payments,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	intake.Stop()
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)

	// Drain background uploads before persisting the vector index.
	components.Pipeline.Wait()
	if cfg.Storage.VectorIndexPath != "" && components.VectorIndex != nil {
		if err := components.VectorIndex.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
		}
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: claimlens ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	target := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(target)
	if err != nil {
		fmt.Printf("Cannot read %s: %v\n", target, err)
		os.Exit(1)
	}
	if info.IsDir() {
		n, err := components.Pipeline.IngestDirectory(ctx, target, cfg.Intake.Extensions)
		if err != nil {
			fmt.Printf("Ingest failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Processed %d documents\n", n)
		return
	}
	doc, err := components.Pipeline.IngestFile(ctx, target, nil)
	if err != nil {
		fmt.Printf("Ingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document %s: %s", doc.ID, doc.Status)
	if doc.FailureReason != "" {
		fmt.Printf(" (%s)", doc.FailureReason)
	}
	fmt.Println()
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: claimlens query [flags] <query text>")
		os.Exit(1)
	}
	text := strings.Join(fs.Args(), " ")

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// The CLI evaluates directly against local storage; the payment gate
	// applies to the HTTP API.
	disabled := false
	cfg.Payment.Required = &disabled

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	q, err := components.Evaluator.Submit(ctx, text)
	if err != nil {
		fmt.Printf("Submit failed: %v\n", err)
		os.Exit(1)
	}
	result, err := components.Evaluator.Evaluate(ctx, q.ID)
	if err != nil {
		fmt.Printf("Evaluation failed: %v\n", err)
		os.Exit(1)
	}
	printQueryResult(result)
}

func printQueryResult(q *models.Query) {
	if q.Status == models.QueryFailed {
		fmt.Printf("Failed: %s\n", q.FailureReason)
		return
	}
	fmt.Printf("Decision: %s\n", q.Decision)
	if q.Amount != nil {
		fmt.Printf("Amount:   %s\n", export.FormatRupees(*q.Amount))
	}
	if q.Justification != "" {
		fmt.Printf("Reason:   %s\n", q.Justification)
	}
	if len(q.ClauseIDs) > 0 {
		fmt.Printf("Clauses:  %s\n", strings.Join(q.ClauseIDs, ", "))
	}
	fmt.Printf("Took:     %s\n", q.Duration)
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	status := fs.String("status", "", "filter by status (pending|processing|completed|failed)")
	decision := fs.String("decision", "", "filter by decision (approved|rejected|pending)")
	text := fs.String("q", "", "filter by query text substring")
	asJSON := fs.Bool("json", false, "output JSON")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(false)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	filter := &models.HistoryFilter{
		Status:   models.QueryStatus(*status),
		Decision: models.Decision(*decision),
		Text:     *text,
	}
	log := history.NewLog(components.Storage)
	if *asJSON {
		exporter := export.NewExporter(components.Storage)
		exported, err := exporter.ExportHistory(context.Background(), filter)
		if err != nil {
			fmt.Printf("History failed: %v\n", err)
			os.Exit(1)
		}
		if err := export.WriteJSON(os.Stdout, exported); err != nil {
			fmt.Printf("Write failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	records, err := log.List(context.Background(), filter)
	if err != nil {
		fmt.Printf("History failed: %v\n", err)
		os.Exit(1)
	}
	for _, r := range records {
		line := fmt.Sprintf("%s  %-8s  %-9s", r.SubmittedAt.Format(time.RFC3339), r.Kind, r.Status)
		if r.Decision != "" {
			line += fmt.Sprintf("  %-8s", r.Decision)
		}
		if r.Amount != nil {
			line += "  " + export.FormatRupees(*r.Amount)
		}
		fmt.Printf("%s  %s\n", line, utils.Truncate(r.QueryText, 60))
	}
	fmt.Printf("%d records\n", len(records))
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(false)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	docs, _ := components.Storage.CountDocuments(ctx)
	chunks, _ := components.Storage.CountChunks(ctx)
	clauses, _ := components.Storage.CountClauses(ctx)
	fmt.Printf("Documents: %d\nChunks:    %d\nClauses:   %d\nVectors:   %d\n",
		docs, chunks, clauses, components.VectorIndex.Size())
}

func runConfig() {
	if len(os.Args) < 3 || os.Args[2] != "init" {
		fmt.Println("Usage: claimlens config init [flags]")
		os.Exit(1)
	}
	fs := flag.NewFlagSet("config init", flag.ExitOnError)
	path := fs.String("path", "config.yaml", "where to write the config file")
	_ = fs.Parse(os.Args[3:])

	if _, err := os.Stat(*path); err == nil {
		fmt.Printf("Refusing to overwrite existing %s\n", *path)
		os.Exit(1)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	if err := config.Save(*path, cfg); err != nil {
		fmt.Printf("Failed to write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *path)
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	VectorIndex  vector.Index
	KeywordIndex keyword.Index
	Pipeline     *ingest.Pipeline
	Evaluator    *evaluator.Evaluator
	Payments     payment.Verifier
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := embedding.NewFromConfig(&cfg.Embedding)
	if err != nil {
		logger.Warn("embedding backend unavailable, falling back to mock",
			zap.String("backend", cfg.Embedding.Backend), zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}

	vectorIndex, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if loadErr := vectorIndex.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
			logger.Warn("vector index load skipped",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
		}
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.ClauseIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	var payments payment.Verifier
	if cfg.Payment.RequiredOrDefault() {
		payments = payment.NewMemoryVerifier(&cfg.Payment)
	} else {
		payments = payment.AlwaysVerified{}
	}

	pipeline := ingest.NewPipeline(store, embedder, vectorIndex, keywordIndex,
		&cfg.Pipeline, ingest.WithLogger(logger))
	eval := evaluator.NewEvaluator(store, embedder, vectorIndex, keywordIndex,
		payments, &cfg.Search, &cfg.Payment, evaluator.WithLogger(logger))

	return &Components{
		Storage:      store,
		Embedder:     embedder,
		VectorIndex:  vectorIndex,
		KeywordIndex: keywordIndex,
		Pipeline:     pipeline,
		Evaluator:    eval,
		Payments:     payments,
	}, nil
}

func printUsage() {
	fmt.Println(`claimlens - policy document intake and claim query evaluation

Usage:
  claimlens server [flags]              Start the HTTP server
  claimlens ingest [flags] <path>       Ingest a document or directory
  claimlens query [flags] <text>        Evaluate a claim query
  claimlens history [flags]             Show the evaluation audit log
  claimlens status [flags]              Show storage and index counts
  claimlens config init [flags]         Write a starter config file
  claimlens version                     Show version
  claimlens help                        Show this help

Flags:
  --config string    Config file path (default: /usr/local/etc/claimlens/config.yaml)
  --debug            Enable debug logging (server, ingest)

History Flags:
  --status string    Filter by status (pending|processing|completed|failed)
  --decision string  Filter by decision (approved|rejected|pending)
  --q string         Filter by query text substring
  --json             Output the full export as JSON

Examples:
  claimlens ingest ./policies
  claimlens query "46M, knee surgery in Pune, 3-month-old insurance policy"
  claimlens history --decision approved`)
}
