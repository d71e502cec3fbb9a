package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolit/pubmed-harvester/internal/database"
	"github.com/biolit/pubmed-harvester/internal/domain"
)

type stubRepo struct {
	articles []domain.StoredArticle
	err      error
	calls    int
}

func (s *stubRepo) Exists(context.Context, string) (bool, error) {
	return false, nil
}

func (s *stubRepo) StoreBatch(context.Context, []domain.EnrichedRecord) (domain.StoreResult, error) {
	return domain.StoreResult{}, nil
}

func (s *stubRepo) ListAll(context.Context) ([]domain.StoredArticle, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.articles, nil
}

type stubHealth struct {
	status string
	errMsg string
}

func (s stubHealth) Health(context.Context) database.HealthStatus {
	return database.HealthStatus{Status: s.status, Error: s.errMsg}
}

func strPtr(s string) *string { return &s }

func newTestServer(repo *stubRepo, cacheTTL time.Duration) *Server {
	return NewServer(Config{
		Address:  "127.0.0.1:0",
		CacheTTL: cacheTTL,
	}, repo, stubHealth{status: "healthy"}, zerolog.Nop(), nil)
}

func doRequest(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestListArticles(t *testing.T) {
	now := time.Now().UTC()
	repo := &stubRepo{articles: []domain.StoredArticle{
		{
			ID:        "1001",
			Title:     "Deep learning for sepsis prediction.",
			Abstract:  strPtr("Sepsis is common."),
			PubDate:   strPtr("2023-Jun-15"),
			Keywords:  []string{"sepsis prediction", "deep learning"},
			Summary:   strPtr("The model worked."),
			CreatedAt: now,
		},
		{
			ID:        "1002",
			Title:     "",
			CreatedAt: now.Add(-time.Hour),
		},
	}}
	server := newTestServer(repo, 0)

	rec := doRequest(t, server, "/api/v1/articles")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp listArticlesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Articles, 2)
	assert.Equal(t, 2, resp.TotalCount)

	first := resp.Articles[0]
	assert.Equal(t, "1001", first.ID)
	assert.Equal(t, "Deep learning for sepsis prediction.", first.Title)
	assert.Equal(t, "Sepsis is common.", first.Abstract)
	assert.Equal(t, "2023-Jun-15", first.PubDate)
	assert.Equal(t, "sepsis prediction, deep learning", first.Keywords)

	// Missing fields render as fixed placeholders, never as nulls.
	second := resp.Articles[1]
	assert.Equal(t, sentinelTitle, second.Title)
	assert.Equal(t, sentinelAbstract, second.Abstract)
	assert.Equal(t, domain.PubDateNotAvailable, second.PubDate)
	assert.Equal(t, sentinelSummary, second.Summary)
	assert.Equal(t, "", second.Keywords)
}

func TestListArticlesEmpty(t *testing.T) {
	server := newTestServer(&stubRepo{}, 0)

	rec := doRequest(t, server, "/api/v1/articles")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listArticlesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Articles)
	assert.Equal(t, 0, resp.TotalCount)
}

func TestListArticlesStoreFailure(t *testing.T) {
	server := newTestServer(&stubRepo{err: errors.New("connection refused")}, 0)

	rec := doRequest(t, server, "/api/v1/articles")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "unavailable")
}

func TestListArticlesCache(t *testing.T) {
	repo := &stubRepo{articles: []domain.StoredArticle{{ID: "1001", Title: "T"}}}
	server := newTestServer(repo, time.Minute)

	// First read goes to the store, second is served from cache.
	doRequest(t, server, "/api/v1/articles")
	doRequest(t, server, "/api/v1/articles")
	assert.Equal(t, 1, repo.calls)

	// refresh=1 drops the cached entry and re-reads.
	rec := doRequest(t, server, "/api/v1/articles?refresh=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, repo.calls)

	// The refreshed read repopulated the cache.
	doRequest(t, server, "/api/v1/articles")
	assert.Equal(t, 2, repo.calls)
}

func TestHealthz(t *testing.T) {
	server := newTestServer(&stubRepo{}, 0)

	rec := doRequest(t, server, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	t.Run("ready when database healthy", func(t *testing.T) {
		server := newTestServer(&stubRepo{}, 0)

		rec := doRequest(t, server, "/readyz")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ready", resp["status"])
	})

	t.Run("not ready when database unhealthy", func(t *testing.T) {
		server := NewServer(Config{Address: "127.0.0.1:0"}, &stubRepo{},
			stubHealth{status: "unhealthy", errMsg: "connection refused"}, zerolog.Nop(), nil)

		rec := doRequest(t, server, "/readyz")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "not_ready", resp["status"])
	})
}
