package httpserver

import (
	"net/http"
	"strconv"
)

// cacheKeyArticles is the single cache entry for the article list.
const cacheKeyArticles = "articles:list"

// listArticles returns every stored article, most recently stored first.
//
// The list is served from an in-memory TTL cache when one is configured.
// Passing ?refresh=1 drops the cached entry and reads from the store, so
// a dashboard can show a just-finished harvest without waiting out the TTL.
func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "1"

	if s.cache != nil {
		if refresh {
			s.cache.Delete(cacheKeyArticles)
		} else if cached, found := s.cache.Get(cacheKeyArticles); found {
			if resp, ok := cached.(listArticlesResponse); ok {
				s.recordCacheHit(true)
				s.recordRequest("/api/v1/articles", http.StatusOK)
				writeJSON(w, http.StatusOK, resp)
				return
			}
		}
		s.recordCacheHit(false)
	}

	articles, err := s.repo.ListAll(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list articles")
		s.recordRequest("/api/v1/articles", http.StatusServiceUnavailable)
		writeError(w, http.StatusServiceUnavailable, "article store is unavailable")
		return
	}

	resp := listArticlesResponse{
		Articles:   make([]articleResponse, 0, len(articles)),
		TotalCount: len(articles),
	}
	for _, a := range articles {
		resp.Articles = append(resp.Articles, domainArticleToResponse(a))
	}

	if s.cache != nil {
		s.cache.Set(cacheKeyArticles, resp, s.cacheTTL)
	}

	s.recordRequest("/api/v1/articles", http.StatusOK)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) recordRequest(route string, status int) {
	if s.metrics != nil {
		s.metrics.DashboardRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	}
}

func (s *Server) recordCacheHit(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.DashboardCacheHits.Inc()
	} else {
		s.metrics.DashboardCacheMisses.Inc()
	}
}
