// Package domain defines the core record types and errors shared by the
// harvest pipeline and the dashboard read API.
package domain

import "time"

// PubDateNotAvailable is the sentinel stored when a record carries no
// usable publication date.
const PubDateNotAvailable = "N/A"

// RawRecord is one article exactly as parsed from the efetch response.
// Missing fields degrade to empty strings (or the date sentinel) during
// parsing; a RawRecord is never persisted as-is.
type RawRecord struct {
	PMID     string
	Title    string
	Abstract string
	PubDate  string
}

// CleanedRecord is a RawRecord whose title and abstract have passed
// through the text normalizer.
type CleanedRecord struct {
	PMID     string
	Title    string
	Abstract string
	PubDate  string
}

// EnrichedRecord is a CleanedRecord plus derived keyword and summary
// fields. Keywords are ranked and length-capped; Summary may be empty
// when enrichment degraded. This is the unit handed to persistence.
type EnrichedRecord struct {
	PMID     string   `json:"pmid"`
	Title    string   `json:"title"`
	Abstract string   `json:"abstract"`
	PubDate  string   `json:"pub_date"`
	Keywords []string `json:"keywords"`
	Summary  string   `json:"summary"`
}

// StoredArticle is the durable row keyed by PMID. Rows are created once
// by the pipeline and never updated or deleted afterwards.
type StoredArticle struct {
	ID        string
	Title     string
	Abstract  *string
	PubDate   *string
	Keywords  []string
	Summary   *string
	CreatedAt time.Time
}

// StoreResult is the per-batch tally produced by the persistence layer.
// After a failed commit all counts are zero: nothing was persisted.
type StoreResult struct {
	Stored  int
	Skipped int
	Errored int
}

// Total returns the number of records the batch accounted for.
func (r StoreResult) Total() int {
	return r.Stored + r.Skipped + r.Errored
}
