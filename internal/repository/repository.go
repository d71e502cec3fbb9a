// Package repository provides data access interfaces and implementations
// for the harvest service.
//
// # Overview
//
// This package defines the article repository interface and its PostgreSQL
// implementation following the repository pattern to abstract persistence
// from the pipeline and the dashboard API.
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use by multiple
// goroutines. The underlying pgxpool handles connection pooling and
// synchronization.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package.
// Database errors are wrapped with context using fmt.Errorf with the %w verb.
//
// # Transactions
//
// Write paths take a database.TxBeginner so that a whole batch shares one
// transaction; read paths only need DBTX. Either a *database.DB or a mock
// pool can stand in for both.
package repository

import (
	"context"

	"github.com/biolit/pubmed-harvester/internal/database"
	"github.com/biolit/pubmed-harvester/internal/domain"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// TxBeginner is a DBTX that can also open transactions.
type TxBeginner = database.TxBeginner

// ArticleRepository manages stored articles. Rows are written once by the
// pipeline and only ever read afterwards; there is no update or delete.
type ArticleRepository interface {
	// Exists reports whether an article with the given identifier is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// StoreBatch persists the records that are not yet stored and tallies
	// the outcome per record. The batch runs in a single transaction; if
	// the commit fails nothing was persisted and the tally is zero.
	StoreBatch(ctx context.Context, records []domain.EnrichedRecord) (domain.StoreResult, error)

	// ListAll returns every stored article, most recently stored first.
	ListAll(ctx context.Context) ([]domain.StoredArticle, error)
}
