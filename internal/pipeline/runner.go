// Package pipeline orchestrates one harvest run: search for identifiers,
// fetch article metadata, normalize text, derive keywords and summaries,
// and persist whatever is not already stored.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/biolit/pubmed-harvester/internal/domain"
	"github.com/biolit/pubmed-harvester/internal/observability"
	"github.com/biolit/pubmed-harvester/internal/pubmed"
	"github.com/biolit/pubmed-harvester/internal/repository"
	"github.com/biolit/pubmed-harvester/internal/textclean"
)

// State names the stage a run is in. A run moves through the states in
// order and ends in either StateDone or StateAborted.
type State string

// Run states.
const (
	StateIdle      State = "idle"
	StateSearching State = "searching"
	StateFetching  State = "fetching"
	StateCleaning  State = "cleaning"
	StateEnriching State = "enriching"
	StateStoring   State = "storing"
	StateDone      State = "done"
	StateAborted   State = "aborted"
)

// AbortReason says why a run ended in StateAborted. An empty search
// result and a failed search are distinct outcomes: the first is a
// property of the term, the second of the service.
type AbortReason string

// Abort reasons.
const (
	ReasonNone         AbortReason = ""
	ReasonInvalidInput AbortReason = "invalid_input"
	ReasonSearchFailed AbortReason = "search_failed"
	ReasonNoResults    AbortReason = "no_results"
	ReasonStoreFailed  AbortReason = "store_failed"
)

// Request describes one harvest run.
type Request struct {
	// Term is the search term submitted to the article source.
	Term string `validate:"required"`

	// MaxResults caps the number of identifiers retrieved.
	MaxResults int `validate:"gte=1,lte=10000"`
}

// Summary is the outcome of one run.
type Summary struct {
	RunID            string             `json:"run_id"`
	Term             string             `json:"term"`
	State            State              `json:"state"`
	AbortReason      AbortReason        `json:"abort_reason,omitempty"`
	IdentifiersFound int                `json:"identifiers_found"`
	RecordsFetched   int                `json:"records_fetched"`
	RecordsCleaned   int                `json:"records_cleaned"`
	RecordsEnriched  int                `json:"records_enriched"`
	Store            domain.StoreResult `json:"-"`
	Stored           int                `json:"stored"`
	Skipped          int                `json:"skipped"`
	Errored          int                `json:"errored"`
	Duration         time.Duration      `json:"-"`
}

// Source resolves a search term to identifiers and identifiers to raw
// article records. *pubmed.Client satisfies this.
type Source interface {
	SearchIDs(ctx context.Context, term string, maxResults int) ([]string, *pubmed.SearchContext, error)
	FetchDetails(ctx context.Context, ids []string) ([]domain.RawRecord, error)
}

// Enricher derives keywords and a summary for one cleaned record.
// *enrich.Engine satisfies this.
type Enricher interface {
	EnrichRecord(rec domain.CleanedRecord) domain.EnrichedRecord
}

// Runner executes harvest runs. It is safe for concurrent use as long as
// its collaborators are.
type Runner struct {
	source   Source
	enricher Enricher
	repo     repository.ArticleRepository
	logger   zerolog.Logger
	metrics  *observability.Metrics
	validate *validator.Validate

	// dumpPath optionally names a file receiving the enriched record
	// set as JSON at the end of each run. Empty disables the dump.
	dumpPath string
}

// NewRunner creates a runner. metrics may be nil, in which case no run
// metrics are recorded. dumpPath may be empty to disable the JSON dump.
func NewRunner(source Source, enricher Enricher, repo repository.ArticleRepository,
	logger zerolog.Logger, metrics *observability.Metrics, dumpPath string) *Runner {
	return &Runner{
		source:   source,
		enricher: enricher,
		repo:     repo,
		logger:   logger.With().Str("component", "pipeline").Logger(),
		metrics:  metrics,
		validate: validator.New(),
		dumpPath: dumpPath,
	}
}

// Run executes one harvest run end to end and returns its summary.
//
// A search failure aborts the run with an error. A search that matches
// nothing aborts the run without an error: there is nothing to harvest,
// and the caller decides whether that is a problem. A fetch failure does
// not abort; the run continues with whatever records were retrieved
// (possibly none), because a partial harvest is still a harvest. Only a
// storage failure after enrichment aborts with an error.
func (r *Runner) Run(ctx context.Context, req Request) (*Summary, error) {
	summary := &Summary{
		RunID: uuid.New().String(),
		Term:  req.Term,
		State: StateIdle,
	}

	if err := r.validate.Struct(req); err != nil {
		summary.State = StateAborted
		summary.AbortReason = ReasonInvalidInput
		return summary, domain.NewValidationError("request", err.Error())
	}

	logger := observability.WithRunContext(r.logger, summary.RunID, req.Term)
	logger.Info().Int("max_results", req.MaxResults).Msg("harvest run started")

	start := time.Now()
	if r.metrics != nil {
		r.metrics.RunsStarted.Inc()
	}
	defer func() {
		summary.Duration = time.Since(start)
	}()

	// Search
	r.enterState(summary, StateSearching, logger)
	searchStart := time.Now()
	ids, sc, err := r.source.SearchIDs(ctx, req.Term, req.MaxResults)
	r.observeStage(StateSearching, time.Since(searchStart))
	if err != nil {
		return r.abort(summary, ReasonSearchFailed, logger, fmt.Errorf("search failed: %w", err))
	}

	if sc != nil && sc.Count > len(ids) {
		logger.Debug().Int("total_matches", sc.Count).Msg("search matched more articles than retrieved")
	}

	summary.IdentifiersFound = len(ids)
	if r.metrics != nil {
		r.metrics.IdentifiersFound.Add(float64(len(ids)))
	}

	if len(ids) == 0 {
		logger.Info().Msg("search matched no articles")
		summary.State = StateAborted
		summary.AbortReason = ReasonNoResults
		if r.metrics != nil {
			r.metrics.RunsAborted.WithLabelValues(string(ReasonNoResults)).Inc()
		}
		return summary, nil
	}

	logger.Info().Int("identifiers", len(ids)).Msg("search completed")

	// Fetch
	r.enterState(summary, StateFetching, logger)
	fetchStart := time.Now()
	raw, err := r.source.FetchDetails(ctx, ids)
	r.observeStage(StateFetching, time.Since(fetchStart))
	if err != nil {
		if ctx.Err() != nil {
			return r.abort(summary, ReasonSearchFailed, logger, ctx.Err())
		}
		// A failed fetch leaves nothing to process but is not fatal:
		// the identifiers will come back on the next run.
		logger.Warn().Err(err).Msg("fetch failed, continuing with no records")
		raw = nil
	}

	summary.RecordsFetched = len(raw)
	if r.metrics != nil {
		r.metrics.RecordsFetched.Add(float64(len(raw)))
	}

	// Clean
	r.enterState(summary, StateCleaning, logger)
	cleanStart := time.Now()
	cleaned := make([]domain.CleanedRecord, 0, len(raw))
	for _, rec := range raw {
		cleaned = append(cleaned, domain.CleanedRecord{
			PMID:     rec.PMID,
			Title:    textclean.Clean(rec.Title),
			Abstract: textclean.Clean(rec.Abstract),
			PubDate:  rec.PubDate,
		})
	}
	r.observeStage(StateCleaning, time.Since(cleanStart))
	summary.RecordsCleaned = len(cleaned)
	if r.metrics != nil {
		r.metrics.RecordsCleaned.Add(float64(len(cleaned)))
	}

	// Enrich
	r.enterState(summary, StateEnriching, logger)
	enrichStart := time.Now()
	enriched := make([]domain.EnrichedRecord, 0, len(cleaned))
	for _, rec := range cleaned {
		enriched = append(enriched, r.enricher.EnrichRecord(rec))
	}
	r.observeStage(StateEnriching, time.Since(enrichStart))
	summary.RecordsEnriched = len(enriched)
	if r.metrics != nil {
		r.metrics.RecordsEnriched.Add(float64(len(enriched)))
	}

	// Store
	r.enterState(summary, StateStoring, logger)
	storeStart := time.Now()
	result, err := r.repo.StoreBatch(ctx, enriched)
	r.observeStage(StateStoring, time.Since(storeStart))
	if err != nil {
		return r.abort(summary, ReasonStoreFailed, logger, fmt.Errorf("store failed: %w", err))
	}

	summary.Store = result
	summary.Stored = result.Stored
	summary.Skipped = result.Skipped
	summary.Errored = result.Errored
	if r.metrics != nil {
		r.metrics.ArticlesStored.Add(float64(result.Stored))
		r.metrics.ArticlesSkipped.Add(float64(result.Skipped))
		r.metrics.ArticlesErrored.Add(float64(result.Errored))
	}

	if r.dumpPath != "" {
		if err := r.dumpRecords(enriched); err != nil {
			// The dump is a convenience artifact; losing it does not
			// invalidate the run.
			logger.Warn().Err(err).Str("path", r.dumpPath).Msg("failed to write record dump")
		}
	}

	summary.State = StateDone
	if r.metrics != nil {
		r.metrics.RunsCompleted.Inc()
		r.metrics.RunDuration.Observe(time.Since(start).Seconds())
	}

	logger.Info().
		Int("stored", result.Stored).
		Int("skipped", result.Skipped).
		Int("errored", result.Errored).
		Dur("duration", time.Since(start)).
		Msg("harvest run completed")

	return summary, nil
}

func (r *Runner) enterState(summary *Summary, state State, logger zerolog.Logger) {
	summary.State = state
	logger.Debug().Str("state", string(state)).Msg("entering state")
}

func (r *Runner) observeStage(state State, d time.Duration) {
	if r.metrics != nil {
		r.metrics.StageDuration.WithLabelValues(string(state)).Observe(d.Seconds())
	}
}

func (r *Runner) abort(summary *Summary, reason AbortReason, logger zerolog.Logger, err error) (*Summary, error) {
	summary.State = StateAborted
	summary.AbortReason = reason
	if r.metrics != nil {
		r.metrics.RunsAborted.WithLabelValues(string(reason)).Inc()
	}
	logger.Error().Err(err).Str("reason", string(reason)).Msg("harvest run aborted")
	return summary, err
}

// dumpRecords writes the enriched record set to the configured path as
// indented JSON.
func (r *Runner) dumpRecords(records []domain.EnrichedRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}

	if err := os.WriteFile(r.dumpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write dump file: %w", err)
	}

	return nil
}
