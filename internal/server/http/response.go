package httpserver

import (
	"strings"
	"time"

	"github.com/biolit/pubmed-harvester/internal/domain"
)

// Display sentinels for fields missing from a stored article. The API
// always renders complete rows; absent fields become fixed placeholder
// text rather than nulls.
const (
	sentinelTitle    = "Untitled"
	sentinelAbstract = "No abstract."
	sentinelSummary  = "No summary available."
)

type articleResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Abstract  string    `json:"abstract"`
	PubDate   string    `json:"pub_date"`
	// Keywords is a ", "-joined list, empty when no keywords were
	// derived.
	Keywords string `json:"keywords"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

type listArticlesResponse struct {
	Articles   []articleResponse `json:"articles"`
	TotalCount int               `json:"total_count"`
}

// domainArticleToResponse renders a stored article for the dashboard,
// substituting sentinels for missing fields.
func domainArticleToResponse(a domain.StoredArticle) articleResponse {
	resp := articleResponse{
		ID:        a.ID,
		Title:     a.Title,
		Abstract:  sentinelAbstract,
		PubDate:   domain.PubDateNotAvailable,
		Keywords:  strings.Join(a.Keywords, ", "),
		Summary:   sentinelSummary,
		CreatedAt: a.CreatedAt,
	}

	if resp.Title == "" {
		resp.Title = sentinelTitle
	}
	if a.Abstract != nil && *a.Abstract != "" {
		resp.Abstract = *a.Abstract
	}
	if a.PubDate != nil && *a.PubDate != "" {
		resp.PubDate = *a.PubDate
	}
	if a.Summary != nil && *a.Summary != "" {
		resp.Summary = *a.Summary
	}

	return resp
}
