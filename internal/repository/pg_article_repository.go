package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/biolit/pubmed-harvester/internal/domain"
)

// Compile-time interface verification.
var _ ArticleRepository = (*PgArticleRepository)(nil)

// PgArticleRepository is a PostgreSQL implementation of ArticleRepository.
type PgArticleRepository struct {
	db     TxBeginner
	logger zerolog.Logger
}

// NewPgArticleRepository creates a new PostgreSQL article repository.
func NewPgArticleRepository(db TxBeginner, logger zerolog.Logger) *PgArticleRepository {
	return &PgArticleRepository{
		db:     db,
		logger: logger.With().Str("component", "repository").Logger(),
	}
}

const existsQuery = `SELECT EXISTS(SELECT 1 FROM articles WHERE id = $1)`

const insertQuery = `
	INSERT INTO articles (id, title, abstract, pub_date, keywords, summary)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO NOTHING`

const listQuery = `
	SELECT id, title, abstract, pub_date, keywords, summary, created_at
	FROM articles
	ORDER BY created_at DESC, id`

// Exists reports whether an article with the given identifier is stored.
func (r *PgArticleRepository) Exists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, domain.NewValidationError("id", "article ID is required")
	}

	var exists bool
	if err := r.db.QueryRow(ctx, existsQuery, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check article existence: %w", err)
	}

	return exists, nil
}

// StoreBatch persists the given records in one transaction.
//
// Records without an identifier are counted as skipped before touching the
// database. Records already stored are skipped; the insert additionally
// carries ON CONFLICT DO NOTHING so a row created concurrently between the
// existence check and the insert is also counted as skipped rather than
// failing the batch. Each insert runs under its own savepoint: a failing
// record is rolled back to the savepoint, counted as errored, and the rest
// of the batch continues. A failed commit returns a zero tally: nothing
// was persisted.
func (r *PgArticleRepository) StoreBatch(ctx context.Context, records []domain.EnrichedRecord) (domain.StoreResult, error) {
	var result domain.StoreResult

	if len(records) == 0 {
		return result, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.StoreResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, rec := range records {
		if rec.PMID == "" {
			result.Skipped++
			continue
		}

		var exists bool
		if err := tx.QueryRow(ctx, existsQuery, rec.PMID).Scan(&exists); err != nil {
			return domain.StoreResult{}, fmt.Errorf("failed to check article %s: %w", rec.PMID, err)
		}
		if exists {
			result.Skipped++
			continue
		}

		var keywordsJSON []byte
		if len(rec.Keywords) > 0 {
			keywordsJSON, err = json.Marshal(rec.Keywords)
			if err != nil {
				r.logger.Warn().Err(err).Str("pmid", rec.PMID).Msg("failed to encode keywords, skipping record")
				result.Errored++
				continue
			}
		}

		// A nested Begin opens a savepoint, so a failing insert only
		// loses this record, not the statements before it.
		sp, err := tx.Begin(ctx)
		if err != nil {
			return domain.StoreResult{}, fmt.Errorf("failed to open savepoint for article %s: %w", rec.PMID, err)
		}

		tag, err := sp.Exec(ctx, insertQuery,
			rec.PMID,
			rec.Title,
			nullable(rec.Abstract),
			nullable(rec.PubDate),
			keywordsJSON,
			nullable(rec.Summary),
		)
		if err != nil {
			if rbErr := sp.Rollback(ctx); rbErr != nil {
				return domain.StoreResult{}, fmt.Errorf("failed to roll back savepoint for article %s: %w", rec.PMID, rbErr)
			}
			r.logger.Warn().Err(err).Str("pmid", rec.PMID).Msg("failed to insert article, continuing batch")
			result.Errored++
			continue
		}

		if err := sp.Commit(ctx); err != nil {
			return domain.StoreResult{}, fmt.Errorf("failed to release savepoint for article %s: %w", rec.PMID, err)
		}

		if tag.RowsAffected() == 0 {
			// Inserted concurrently since the existence check.
			result.Skipped++
		} else {
			result.Stored++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.StoreResult{}, fmt.Errorf("failed to commit batch: %w", err)
	}

	return result, nil
}

// ListAll returns every stored article, most recently stored first.
func (r *PgArticleRepository) ListAll(ctx context.Context) ([]domain.StoredArticle, error) {
	rows, err := r.db.Query(ctx, listQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	articles := make([]domain.StoredArticle, 0)
	for rows.Next() {
		var (
			article      domain.StoredArticle
			keywordsJSON []byte
		)

		if err := rows.Scan(
			&article.ID,
			&article.Title,
			&article.Abstract,
			&article.PubDate,
			&keywordsJSON,
			&article.Summary,
			&article.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}

		if len(keywordsJSON) > 0 {
			if err := json.Unmarshal(keywordsJSON, &article.Keywords); err != nil {
				return nil, fmt.Errorf("failed to decode keywords for %s: %w", article.ID, err)
			}
		}

		articles = append(articles, article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate articles: %w", err)
	}

	return articles, nil
}

// nullable maps empty strings to NULL so that absent fields stay absent
// instead of becoming empty text.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
