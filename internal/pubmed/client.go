package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/biolit/pubmed-harvester/internal/domain"
	"github.com/biolit/pubmed-harvester/internal/observability"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	// With an API key, the limit increases to 10 requests/second.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search.
	DefaultMaxResults = 100

	// DefaultRequestDelay is the courtesy pause before the detail fetch.
	DefaultRequestDelay = 150 * time.Millisecond

	// MaxResultsLimit is the maximum results allowed per request by the API.
	MaxResultsLimit = 10000

	endpointSearch = "esearch"
	endpointFetch  = "efetch"
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits.
	// Optional but recommended for production use.
	APIKey string

	// Timeout is the request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit (3 req/sec) if zero.
	// With an API key, you can increase this to 10 req/sec.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize if zero.
	BurstSize int

	// MaxResults is the default maximum results per search.
	// Defaults to DefaultMaxResults if zero.
	MaxResults int

	// RequestDelay is the pause before the detail fetch call.
	// Defaults to DefaultRequestDelay if zero.
	RequestDelay time.Duration
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.RequestDelay == 0 {
		c.RequestDelay = DefaultRequestDelay
	}
}

// SearchContext carries the server-side search session returned by
// esearch when history is enabled. WebEnv and QueryKey allow follow-up
// requests to reference the result set without resending identifiers.
type SearchContext struct {
	// Count is the total number of matches on the server, which may
	// exceed the number of identifiers returned.
	Count int

	// WebEnv identifies the server-side history session.
	WebEnv string

	// QueryKey identifies this query within the history session.
	QueryKey string
}

// Client talks to the NCBI E-utilities API.
type Client struct {
	config    Config
	transport *transport
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// New creates a new PubMed client with the given configuration.
// metrics may be nil, in which case no source metrics are recorded.
func New(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()

	return &Client{
		config:    cfg,
		transport: newTransport(cfg),
		logger:    logger.With().Str("component", "pubmed").Logger(),
		metrics:   metrics,
	}
}

// SearchIDs queries esearch.fcgi for PMIDs matching the given term.
// maxResults is clamped to [1, MaxResultsLimit]; values <= 0 fall back
// to the configured default. A term that matches nothing returns an
// empty identifier list and a nil error; the caller decides whether that
// is worth continuing a run for.
func (c *Client) SearchIDs(ctx context.Context, term string, maxResults int) ([]string, *SearchContext, error) {
	if strings.TrimSpace(term) == "" {
		return nil, nil, domain.NewValidationError("term", "search term must not be empty")
	}

	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}

	u, err := url.Parse(c.config.BaseURL + "/esearch.fcgi")
	if err != nil {
		return nil, nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("term", term)
	q.Set("retmode", "xml")
	q.Set("retmax", strconv.Itoa(maxResults))
	q.Set("usehistory", "y")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	c.logger.Debug().Str("term", term).Int("retmax", maxResults).Msg("searching for identifiers")

	body, err := c.get(ctx, endpointSearch, u.String())
	if err != nil {
		return nil, nil, fmt.Errorf("esearch failed: %w", err)
	}

	var result ESearchResult
	if err := xml.Unmarshal(body, &result); err != nil {
		c.recordFailure(endpointSearch, "parse")
		return nil, nil, fmt.Errorf("failed to parse XML response: %w", err)
	}

	// A phrase the index does not know is an empty result, not a failure.
	if result.ErrorList != nil && len(result.ErrorList.PhraseNotFound) > 0 {
		return []string{}, &SearchContext{}, nil
	}

	sc := &SearchContext{
		Count:    result.Count,
		WebEnv:   result.WebEnv,
		QueryKey: result.QueryKey,
	}

	return result.IDList.IDs, sc, nil
}

// FetchDetails retrieves article metadata from efetch.fcgi for the given
// PMIDs. All identifiers go into a single comma-joined request. A short
// courtesy delay is observed before the call so that a search immediately
// followed by a fetch does not hammer the API.
func (c *Client) FetchDetails(ctx context.Context, pmids []string) ([]domain.RawRecord, error) {
	if len(pmids) == 0 {
		return []domain.RawRecord{}, nil
	}

	if err := c.courtesyDelay(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(c.config.BaseURL + "/efetch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	c.logger.Debug().Int("ids", len(pmids)).Msg("fetching article details")

	body, err := c.get(ctx, endpointFetch, u.String())
	if err != nil {
		return nil, fmt.Errorf("efetch failed: %w", err)
	}

	var result PubmedArticleSet
	if err := xml.Unmarshal(body, &result); err != nil {
		c.recordFailure(endpointFetch, "parse")
		return nil, fmt.Errorf("failed to parse XML response: %w", err)
	}

	records := make([]domain.RawRecord, 0, len(result.Articles))
	for _, article := range result.Articles {
		records = append(records, recordFromArticle(article))
	}

	return records, nil
}

// courtesyDelay waits for the configured post-search pause, respecting
// context cancellation.
func (c *Client) courtesyDelay(ctx context.Context) error {
	if c.config.RequestDelay <= 0 {
		return nil
	}
	return sleepContext(ctx, c.config.RequestDelay)
}

// get executes a GET request against the given endpoint and returns the
// response body. Non-200 responses become ExternalAPIErrors.
func (c *Client) get(ctx context.Context, endpoint, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	if c.metrics != nil {
		c.metrics.SourceRequestsTotal.WithLabelValues(endpoint).Inc()
	}

	resp, err := c.transport.do(req)
	if err != nil {
		c.recordFailure(endpoint, "transport")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.SourceRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		c.recordFailure(endpoint, "read")
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.recordFailure(endpoint, "status")
		return nil, domain.NewExternalAPIError(endpoint, resp.StatusCode, string(body), nil)
	}

	return body, nil
}

func (c *Client) recordFailure(endpoint, errorType string) {
	if c.metrics != nil {
		c.metrics.SourceRequestsFailed.WithLabelValues(endpoint, errorType).Inc()
	}
}

// recordFromArticle maps one efetch article to a raw record. Missing
// fields degrade to empty strings; the date falls through a fixed chain
// of formats before giving up with the sentinel.
func recordFromArticle(article PubmedArticle) domain.RawRecord {
	citation := article.MedlineCitation

	return domain.RawRecord{
		PMID:     strings.TrimSpace(citation.PMID.Value),
		Title:    strings.TrimSpace(citation.Article.ArticleTitle),
		Abstract: renderAbstract(citation.Article.Abstract),
		PubDate:  renderPubDate(citation.Article.Journal.JournalIssue.PubDate),
	}
}

// renderAbstract flattens a possibly-structured abstract into a single
// string. Labeled sections keep their labels as bold markers so that
// structure survives the flattening; sections are joined with newlines.
func renderAbstract(abstract *Abstract) string {
	if abstract == nil || len(abstract.AbstractTexts) == 0 {
		return ""
	}

	var b strings.Builder
	for _, at := range abstract.AbstractTexts {
		text := strings.TrimSpace(at.Value)
		if at.Label != "" {
			b.WriteString("**" + at.Label + ":** ")
		}
		if text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
	}

	return strings.TrimSpace(b.String())
}

// renderPubDate renders a publication date as "Year-Month-Day" only when
// all three components are present. Partial structured dates fall back to
// the free-form MedlineDate, and records with neither get the sentinel.
func renderPubDate(pd PubDate) string {
	if pd.Year != "" && pd.Month != "" && pd.Day != "" {
		return pd.Year + "-" + pd.Month + "-" + pd.Day
	}
	if pd.MedlineDate != "" {
		return pd.MedlineDate
	}
	return domain.PubDateNotAvailable
}
