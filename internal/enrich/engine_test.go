package enrich

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolit/pubmed-harvester/internal/domain"
)

const sampleAbstract = "Sepsis is a leading cause of mortality in intensive care units. " +
	"Early prediction of sepsis onset allows clinicians to intervene before organ failure develops. " +
	"We trained a recurrent neural network on vital sign time series from electronic health records. " +
	"The model predicted sepsis onset six hours in advance with high sensitivity. " +
	"Deep learning models can support early sepsis detection in clinical practice."

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	return NewEngine(cfg, zerolog.Nop(), nil)
}

func TestKeywords(t *testing.T) {
	e := newTestEngine(t, Config{KeywordCount: 10, SummarySentences: 3})

	result := e.Keywords(sampleAbstract, 5)
	assert.Equal(t, StatusOK, result.Status)
	assert.Empty(t, result.Reason)
	assert.NotEmpty(t, result.Keywords)
	assert.LessOrEqual(t, len(result.Keywords), 5)

	// Ranked phrases carry no duplicates.
	seen := make(map[string]struct{})
	for _, kw := range result.Keywords {
		_, dup := seen[kw]
		assert.False(t, dup, "duplicate keyword %q", kw)
		seen[kw] = struct{}{}
	}
}

func TestKeywordsEmptyInput(t *testing.T) {
	e := newTestEngine(t, Config{KeywordCount: 10})

	result := e.Keywords("", 5)
	assert.Equal(t, StatusDegraded, result.Status)
	assert.Equal(t, ReasonEmptyInput, result.Reason)
	assert.Empty(t, result.Keywords)

	result = e.Keywords("   \n ", 5)
	assert.Equal(t, StatusDegraded, result.Status)
	assert.Equal(t, ReasonEmptyInput, result.Reason)
	assert.Empty(t, result.Keywords)
}

func TestKeywordsNonPositiveCount(t *testing.T) {
	e := newTestEngine(t, Config{KeywordCount: 10})

	result := e.Keywords(sampleAbstract, 0)
	assert.Equal(t, StatusDegraded, result.Status)
	assert.Equal(t, ReasonEmptyInput, result.Reason)
	assert.Empty(t, result.Keywords)
}

func TestSummary(t *testing.T) {
	e := newTestEngine(t, Config{SummarySentences: 3})

	result := e.Summary(sampleAbstract, 2)
	assert.Equal(t, StatusOK, result.Status)
	assert.NotEmpty(t, result.Summary)
}

func TestSummaryEmptyInput(t *testing.T) {
	e := newTestEngine(t, Config{SummarySentences: 3})

	result := e.Summary("", 3)
	assert.Equal(t, StatusDegraded, result.Status)
	assert.Equal(t, ReasonEmptyInput, result.Reason)
	assert.Empty(t, result.Summary)

	result = e.Summary(sampleAbstract, 0)
	assert.Equal(t, StatusDegraded, result.Status)
	assert.Equal(t, ReasonEmptyInput, result.Reason)
	assert.Empty(t, result.Summary)
}

func TestStopwordFileMissingDegrades(t *testing.T) {
	e := newTestEngine(t, Config{
		KeywordCount:     10,
		SummarySentences: 3,
		StopwordsFile:    filepath.Join(t.TempDir(), "does-not-exist.txt"),
	})

	result := e.Keywords(sampleAbstract, 5)
	assert.Equal(t, StatusDegraded, result.Status)
	assert.Equal(t, ReasonStopwords, result.Reason)
	// Extraction still proceeds with the built-in set.
	assert.NotEmpty(t, result.Keywords)

	sum := e.Summary(sampleAbstract, 2)
	assert.Equal(t, StatusDegraded, sum.Status)
	assert.Equal(t, ReasonStopwords, sum.Reason)
	assert.NotEmpty(t, sum.Summary)
}

func TestStopwordFileLoaded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stopwords.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nthe\nof\nin\n\na\n"), 0o644))

	e := newTestEngine(t, Config{KeywordCount: 10, StopwordsFile: path})

	result := e.Keywords(sampleAbstract, 5)
	assert.Equal(t, StatusOK, result.Status)
	assert.NotEmpty(t, result.Keywords)
}

func TestEnrichRecord(t *testing.T) {
	e := newTestEngine(t, Config{KeywordCount: 8, SummarySentences: 2})

	rec := domain.CleanedRecord{
		PMID:     "38912345",
		Title:    "Deep learning for sepsis prediction",
		Abstract: sampleAbstract,
		PubDate:  "2023-Jun-15",
	}

	enriched := e.EnrichRecord(rec)
	assert.Equal(t, rec.PMID, enriched.PMID)
	assert.Equal(t, rec.Title, enriched.Title)
	assert.Equal(t, rec.Abstract, enriched.Abstract)
	assert.Equal(t, rec.PubDate, enriched.PubDate)
	assert.NotEmpty(t, enriched.Keywords)
	assert.LessOrEqual(t, len(enriched.Keywords), 8)
	assert.NotEmpty(t, enriched.Summary)
}

func TestEnrichRecordEmptyAbstract(t *testing.T) {
	e := newTestEngine(t, Config{KeywordCount: 8, SummarySentences: 2})

	enriched := e.EnrichRecord(domain.CleanedRecord{
		PMID:    "39011223",
		Title:   "No abstract and no date",
		PubDate: domain.PubDateNotAvailable,
	})

	// Keywords still rank over the title; the summary has nothing to work with.
	assert.Empty(t, enriched.Summary)
	assert.NotNil(t, enriched.Keywords)
}
