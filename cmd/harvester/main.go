// Package main provides the one-shot harvest CLI: search PubMed for a
// term, fetch and enrich the matching articles, and persist the new ones.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/biolit/pubmed-harvester/internal/config"
	"github.com/biolit/pubmed-harvester/internal/database"
	"github.com/biolit/pubmed-harvester/internal/enrich"
	"github.com/biolit/pubmed-harvester/internal/observability"
	"github.com/biolit/pubmed-harvester/internal/pipeline"
	"github.com/biolit/pubmed-harvester/internal/pubmed"
	"github.com/biolit/pubmed-harvester/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	term := flag.String("term", "", "Search term (overrides configured default)")
	maxResults := flag.Int("max-results", 0, "Maximum identifiers to retrieve (overrides configured default)")
	dumpPath := flag.String("dump", "", "Write enriched records to this file as JSON (overrides configured default)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "harvester").Logger()
	logger.Info().Msg("pubmed-harvester starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("harvester")
	}

	source := pubmed.New(pubmed.Config{
		BaseURL:      cfg.PubMed.BaseURL,
		APIKey:       cfg.PubMed.APIKey,
		Timeout:      cfg.PubMed.Timeout,
		RateLimit:    cfg.PubMed.RateLimit,
		BurstSize:    cfg.PubMed.BurstSize,
		MaxResults:   cfg.Pipeline.MaxResults,
		RequestDelay: cfg.PubMed.RequestDelay,
	}, logger, metrics)

	engine := enrich.NewEngine(enrich.Config{
		KeywordCount:     cfg.Enrich.KeywordCount,
		SummarySentences: cfg.Enrich.SummarySentences,
		StopwordsFile:    cfg.Enrich.StopwordsFile,
	}, logger, metrics)

	repo := repository.NewPgArticleRepository(db, logger)

	dump := cfg.Pipeline.DumpPath
	if *dumpPath != "" {
		dump = *dumpPath
	}

	runner := pipeline.NewRunner(source, engine, repo, logger, metrics, dump)

	req := pipeline.Request{
		Term:       cfg.Pipeline.Term,
		MaxResults: cfg.Pipeline.MaxResults,
	}
	if *term != "" {
		req.Term = *term
	}
	if *maxResults > 0 {
		req.MaxResults = *maxResults
	}

	summary, err := runner.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("harvest run %s: %w", summary.RunID, err)
	}

	if summary.State == pipeline.StateAborted {
		logger.Warn().
			Str("run_id", summary.RunID).
			Str("reason", string(summary.AbortReason)).
			Msg("harvest run ended without storing anything")
		return nil
	}

	logger.Info().
		Str("run_id", summary.RunID).
		Int("identifiers", summary.IdentifiersFound).
		Int("stored", summary.Stored).
		Int("skipped", summary.Skipped).
		Int("errored", summary.Errored).
		Dur("duration", summary.Duration).
		Msg("harvest run finished")

	return nil
}
