// Package enrich derives keyword phrases and extractive summaries from
// cleaned article text using TextRank graph ranking. Derivation never
// fails a record: anything that goes wrong produces a degraded result
// with an explicit reason, and the record proceeds with whatever could
// be extracted.
package enrich

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	textrank "github.com/DavidBelicza/TextRank/v2"
	"github.com/rs/zerolog"

	"github.com/biolit/pubmed-harvester/internal/domain"
	"github.com/biolit/pubmed-harvester/internal/observability"
)

// Status reports whether a derivation ran cleanly.
type Status string

const (
	// StatusOK means the derivation completed without fallback.
	StatusOK Status = "ok"

	// StatusDegraded means the derivation hit a problem and returned a
	// partial or empty result. The Reason field says what happened.
	StatusDegraded Status = "degraded"
)

// Degradation reasons reported on degraded results.
const (
	// ReasonPanic means the ranking engine panicked on this input.
	ReasonPanic = "rank_panic"

	// ReasonStopwords means the configured stopword list could not be
	// loaded and the built-in default set was used instead.
	ReasonStopwords = "stopwords_unavailable"

	// ReasonEmptyInput means there was no text to derive from, or the
	// requested output size was not positive.
	ReasonEmptyInput = "empty_input"
)

// KeywordResult is the outcome of a keyword derivation.
type KeywordResult struct {
	Keywords []string
	Status   Status
	Reason   string
}

// SummaryResult is the outcome of a summary derivation.
type SummaryResult struct {
	Summary string
	Status  Status
	Reason  string
}

// Config holds derivation settings.
type Config struct {
	// KeywordCount caps the number of ranked phrases returned.
	KeywordCount int

	// SummarySentences is the number of sentences in the summary.
	SummarySentences int

	// StopwordsFile optionally points at a newline-separated stopword
	// list overriding the built-in English set.
	StopwordsFile string
}

// Engine derives keywords and summaries from text. It is safe for
// concurrent use; each derivation builds its own ranking graph.
type Engine struct {
	config    Config
	logger    zerolog.Logger
	metrics   *observability.Metrics
	stopwords []string

	// stopwordsDegraded is set when StopwordsFile was configured but
	// unreadable. Every result produced with the fallback set reports it.
	stopwordsDegraded bool
}

// NewEngine creates a derivation engine. A configured stopword file that
// cannot be read does not fail construction; the engine falls back to
// the built-in set and marks results as degraded.
// metrics may be nil, in which case no derivation metrics are recorded.
func NewEngine(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Engine {
	e := &Engine{
		config:  cfg,
		logger:  logger.With().Str("component", "enrich").Logger(),
		metrics: metrics,
	}

	if cfg.StopwordsFile != "" {
		words, err := loadStopwords(cfg.StopwordsFile)
		if err != nil {
			e.logger.Warn().Err(err).Str("file", cfg.StopwordsFile).
				Msg("stopword list unavailable, using built-in set")
			e.stopwordsDegraded = true
		} else {
			e.stopwords = words
		}
	}

	return e
}

// Keywords derives up to count ranked keyword phrases from text.
// Empty text or a non-positive count return an empty degraded result.
func (e *Engine) Keywords(text string, count int) KeywordResult {
	if strings.TrimSpace(text) == "" || count <= 0 {
		e.recordDegraded("keywords", ReasonEmptyInput)
		return KeywordResult{Keywords: []string{}, Status: StatusDegraded, Reason: ReasonEmptyInput}
	}

	phrases, err := e.rankPhrases(text)
	if err != nil {
		e.recordDegraded("keywords", ReasonPanic)
		return KeywordResult{Keywords: []string{}, Status: StatusDegraded, Reason: ReasonPanic}
	}

	if len(phrases) > count {
		phrases = phrases[:count]
	}

	result := KeywordResult{Keywords: phrases, Status: StatusOK}
	if e.stopwordsDegraded {
		e.recordDegraded("keywords", ReasonStopwords)
		result.Status = StatusDegraded
		result.Reason = ReasonStopwords
	}

	return result
}

// Summary derives an extractive summary of up to the given number of
// sentences. Empty text or a non-positive sentence count return an
// empty degraded result.
func (e *Engine) Summary(text string, sentences int) SummaryResult {
	if strings.TrimSpace(text) == "" || sentences <= 0 {
		e.recordDegraded("summary", ReasonEmptyInput)
		return SummaryResult{Status: StatusDegraded, Reason: ReasonEmptyInput}
	}

	summary, err := e.rankSentences(text, sentences)
	if err != nil {
		e.recordDegraded("summary", ReasonPanic)
		return SummaryResult{Status: StatusDegraded, Reason: ReasonPanic}
	}

	result := SummaryResult{Summary: summary, Status: StatusOK}
	if e.stopwordsDegraded {
		e.recordDegraded("summary", ReasonStopwords)
		result.Status = StatusDegraded
		result.Reason = ReasonStopwords
	}

	return result
}

// EnrichRecord derives keywords and a summary for one cleaned record.
// Keywords rank over title and abstract together so that title terms
// weigh in; the summary ranks over the abstract alone.
func (e *Engine) EnrichRecord(rec domain.CleanedRecord) domain.EnrichedRecord {
	keywordText := rec.Title
	if rec.Abstract != "" {
		if keywordText != "" {
			keywordText += ". "
		}
		keywordText += rec.Abstract
	}

	kw := e.Keywords(keywordText, e.config.KeywordCount)
	sum := e.Summary(rec.Abstract, e.config.SummarySentences)

	if kw.Status == StatusDegraded {
		e.logger.Debug().Str("pmid", rec.PMID).Str("reason", kw.Reason).Msg("keyword derivation degraded")
	}
	if sum.Status == StatusDegraded {
		e.logger.Debug().Str("pmid", rec.PMID).Str("reason", sum.Reason).Msg("summary derivation degraded")
	}

	return domain.EnrichedRecord{
		PMID:     rec.PMID,
		Title:    rec.Title,
		Abstract: rec.Abstract,
		PubDate:  rec.PubDate,
		Keywords: kw.Keywords,
		Summary:  sum.Summary,
	}
}

// rankPhrases builds a ranking graph over text and returns phrase pairs
// ordered by weight, falling back to single ranked words when the text
// is too short to form phrases.
func (e *Engine) rankPhrases(text string) (phrases []string, err error) {
	// The ranking engine indexes by rune position and can panic on
	// inputs its tokenizer mishandles. A panic degrades the record
	// instead of killing the run.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("phrase ranking panicked: %v", r)
		}
	}()

	tr := e.newRanker(text)

	ranked := textrank.FindPhrases(tr)
	phrases = make([]string, 0, len(ranked))
	seen := make(map[string]struct{}, len(ranked))
	for _, p := range ranked {
		phrase := p.Left + " " + p.Right
		if _, ok := seen[phrase]; ok {
			continue
		}
		seen[phrase] = struct{}{}
		phrases = append(phrases, phrase)
	}

	if len(phrases) == 0 {
		for _, w := range textrank.FindSingleWords(tr) {
			phrases = append(phrases, w.Word)
		}
	}

	return phrases, nil
}

// rankSentences builds a ranking graph over text and returns the most
// central sentences joined into one summary string.
func (e *Engine) rankSentences(text string, count int) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sentence ranking panicked: %v", r)
		}
	}()

	tr := e.newRanker(text)

	ranked := textrank.FindSentencesByRelationWeight(tr, count)
	parts := make([]string, 0, len(ranked))
	for _, s := range ranked {
		v := strings.TrimSpace(s.Value)
		if v != "" {
			parts = append(parts, v)
		}
	}

	return strings.Join(parts, " "), nil
}

// newRanker populates and ranks a fresh graph for one input.
func (e *Engine) newRanker(text string) *textrank.TextRank {
	tr := textrank.NewTextRank()
	rule := textrank.NewDefaultRule()
	language := textrank.NewDefaultLanguage()

	if len(e.stopwords) > 0 {
		language.SetWords("custom", e.stopwords)
		language.SetActiveLanguage("custom")
	}

	tr.Populate(text, language, rule)
	tr.Ranking(textrank.NewDefaultAlgorithm())

	return tr
}

func (e *Engine) recordDegraded(operation, reason string) {
	if e.metrics != nil {
		e.metrics.EnrichmentDegraded.WithLabelValues(operation, reason).Inc()
	}
}

// loadStopwords reads a newline-separated stopword list. Blank lines and
// lines starting with '#' are ignored.
func loadStopwords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stopword list: %w", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, strings.ToLower(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stopword list: %w", err)
	}

	if len(words) == 0 {
		return nil, fmt.Errorf("stopword list %s is empty", path)
	}

	return words, nil
}
