package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the harvest service.
// Metrics are organized by subsystem: runs, source requests, enrichment,
// storage, and the dashboard API. All counters and histograms are registered
// with the registry passed to NewMetricsWithRegistry.
type Metrics struct {
	// RunsStarted counts the total number of harvest runs initiated.
	RunsStarted prometheus.Counter

	// RunsCompleted counts the total number of runs that finished successfully.
	RunsCompleted prometheus.Counter

	// RunsAborted counts runs that ended early, labeled by abort reason.
	RunsAborted *prometheus.CounterVec

	// RunDuration observes the end-to-end duration of harvest runs in seconds.
	RunDuration prometheus.Histogram

	// StageDuration observes per-stage duration in seconds, labeled by stage.
	StageDuration *prometheus.HistogramVec

	// IdentifiersFound counts identifiers returned by searches.
	IdentifiersFound prometheus.Counter

	// RecordsFetched counts article records retrieved from the source.
	RecordsFetched prometheus.Counter

	// RecordsCleaned counts article records passed through text normalization.
	RecordsCleaned prometheus.Counter

	// RecordsEnriched counts article records run through enrichment.
	RecordsEnriched prometheus.Counter

	// EnrichmentDegraded counts enrichment operations that fell back to a
	// degraded result, labeled by operation and reason.
	EnrichmentDegraded *prometheus.CounterVec

	// ArticlesStored counts articles newly inserted into the store.
	ArticlesStored prometheus.Counter

	// ArticlesSkipped counts articles skipped as already present or invalid.
	ArticlesSkipped prometheus.Counter

	// ArticlesErrored counts articles whose insert failed.
	ArticlesErrored prometheus.Counter

	// SourceRequestsTotal counts HTTP requests to the article source API, labeled by endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed HTTP requests to the source API, labeled by endpoint and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes source API request duration in seconds, labeled by endpoint.
	SourceRequestDuration *prometheus.HistogramVec

	// DashboardRequests counts dashboard API requests, labeled by route and status.
	DashboardRequests *prometheus.CounterVec

	// DashboardCacheHits counts article list reads served from the cache.
	DashboardCacheHits prometheus.Counter

	// DashboardCacheMisses counts article list reads that went to the store.
	DashboardCacheMisses prometheus.Counter
}

// NewMetrics creates a new Metrics instance registered with the default
// Prometheus registry. The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance registered with the
// given registerer. Tests pass a fresh registry to avoid duplicate
// registration across cases.
func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Runs
		RunsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of harvest runs started",
		}),
		RunsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of harvest runs completed successfully",
		}),
		RunsAborted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_aborted_total",
			Help:      "Total number of harvest runs aborted by reason",
		}, []string{"reason"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of harvest runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of harvest run stages in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"stage"}),

		// Records
		IdentifiersFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identifiers_found_total",
			Help:      "Total number of article identifiers returned by searches",
		}),
		RecordsFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Total number of article records fetched from the source",
		}),
		RecordsCleaned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_cleaned_total",
			Help:      "Total number of article records normalized",
		}),
		RecordsEnriched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_enriched_total",
			Help:      "Total number of article records enriched",
		}),
		EnrichmentDegraded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_degraded_total",
			Help:      "Total number of degraded enrichment results by operation and reason",
		}, []string{"operation", "reason"}),

		// Storage
		ArticlesStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_stored_total",
			Help:      "Total number of articles newly stored",
		}),
		ArticlesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_skipped_total",
			Help:      "Total number of articles skipped (already stored or invalid)",
		}),
		ArticlesErrored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_errored_total",
			Help:      "Total number of article inserts that failed",
		}),

		// Source
		SourceRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to the article source API",
		}, []string{"endpoint"}),
		SourceRequestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed requests to the article source API",
		}, []string{"endpoint", "error_type"}),
		SourceRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of article source API requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),

		// Dashboard
		DashboardRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_requests_total",
			Help:      "Total number of dashboard API requests by route and status",
		}, []string{"route", "status"}),
		DashboardCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_cache_hits_total",
			Help:      "Total number of article list reads served from cache",
		}),
		DashboardCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_cache_misses_total",
			Help:      "Total number of article list reads that went to the store",
		}),
	}
}
