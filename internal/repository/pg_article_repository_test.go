package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolit/pubmed-harvester/internal/domain"
)

func newMockRepo(t *testing.T) (*PgArticleRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewPgArticleRepository(mock, zerolog.Nop()), mock
}

func newTestRecord(pmid string) domain.EnrichedRecord {
	return domain.EnrichedRecord{
		PMID:     pmid,
		Title:    "Deep learning for sepsis prediction.",
		Abstract: "**BACKGROUND:** Sepsis is common.",
		PubDate:  "2023-Jun-15",
		Keywords: []string{"sepsis prediction", "deep learning"},
		Summary:  "Sepsis is common.",
	}
}

func TestExists(t *testing.T) {
	ctx := context.Background()

	t.Run("returns true when stored", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("38912345").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		exists, err := repo.Exists(ctx, "38912345")
		require.NoError(t, err)
		assert.True(t, exists)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns false when absent", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("99999999").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

		exists, err := repo.Exists(ctx, "99999999")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("rejects empty id", func(t *testing.T) {
		repo, _ := newMockRepo(t)

		_, err := repo.Exists(ctx, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestStoreBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("tallies stored and skipped", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()

		// First record is new.
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("1001").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectBegin() // savepoint
		mock.ExpectExec("INSERT INTO articles").
			WithArgs("1001", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit() // release savepoint

		// Second record is already stored.
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("1002").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		mock.ExpectCommit()

		records := []domain.EnrichedRecord{
			newTestRecord("1001"),
			newTestRecord("1002"),
			newTestRecord(""), // no identifier, skipped without touching the database
		}

		result, err := repo.StoreBatch(ctx, records)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Stored)
		assert.Equal(t, 2, result.Skipped)
		assert.Equal(t, 0, result.Errored)
		assert.Equal(t, 3, result.Total())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("counts concurrent insert as skipped", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("1001").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectBegin() // savepoint
		mock.ExpectExec("INSERT INTO articles").
			WithArgs("1001", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		mock.ExpectCommit() // release savepoint
		mock.ExpectCommit()

		result, err := repo.StoreBatch(ctx, []domain.EnrichedRecord{newTestRecord("1001")})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Stored)
		assert.Equal(t, 1, result.Skipped)
	})

	t.Run("empty batch does nothing", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		result, err := repo.StoreBatch(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.StoreResult{}, result)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure returns zero tally", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("1001").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectBegin() // savepoint
		mock.ExpectExec("INSERT INTO articles").
			WithArgs("1001", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit() // release savepoint
		mock.ExpectCommit().WillReturnError(errors.New("connection lost"))
		mock.ExpectRollback()

		result, err := repo.StoreBatch(ctx, []domain.EnrichedRecord{newTestRecord("1001")})
		require.Error(t, err)
		assert.Equal(t, domain.StoreResult{}, result)
	})

	t.Run("insert failure only loses the failing record", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()

		// First record fails its statement; the savepoint rollback keeps
		// the transaction usable.
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("1001").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectBegin() // savepoint
		mock.ExpectExec("INSERT INTO articles").
			WithArgs("1001", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("value too long"))
		mock.ExpectRollback() // roll back to savepoint

		// Second record still stores.
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("1002").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectBegin() // savepoint
		mock.ExpectExec("INSERT INTO articles").
			WithArgs("1002", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit() // release savepoint

		mock.ExpectCommit()

		result, err := repo.StoreBatch(ctx, []domain.EnrichedRecord{
			newTestRecord("1001"),
			newTestRecord("1002"),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Stored)
		assert.Equal(t, 0, result.Skipped)
		assert.Equal(t, 1, result.Errored)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListAll(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored articles", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		abstract := "Sepsis is common."
		pubDate := "2023-Jun-15"
		summary := "The model worked."
		now := time.Now().UTC()

		mock.ExpectQuery("SELECT id, title, abstract, pub_date, keywords, summary, created_at").
			WillReturnRows(pgxmock.NewRows([]string{"id", "title", "abstract", "pub_date", "keywords", "summary", "created_at"}).
				AddRow("1001", "Deep learning for sepsis prediction.", &abstract, &pubDate,
					[]byte(`["sepsis prediction","deep learning"]`), &summary, now).
				AddRow("1002", "An older style record.", (*string)(nil), (*string)(nil),
					[]byte(nil), (*string)(nil), now.Add(-time.Hour)))

		articles, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, articles, 2)

		assert.Equal(t, "1001", articles[0].ID)
		require.NotNil(t, articles[0].Abstract)
		assert.Equal(t, abstract, *articles[0].Abstract)
		assert.Equal(t, []string{"sepsis prediction", "deep learning"}, articles[0].Keywords)

		assert.Equal(t, "1002", articles[1].ID)
		assert.Nil(t, articles[1].Abstract)
		assert.Nil(t, articles[1].Summary)
		assert.Empty(t, articles[1].Keywords)
	})

	t.Run("returns empty slice when nothing stored", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery("SELECT id, title, abstract, pub_date, keywords, summary, created_at").
			WillReturnRows(pgxmock.NewRows([]string{"id", "title", "abstract", "pub_date", "keywords", "summary", "created_at"}))

		articles, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.NotNil(t, articles)
		assert.Empty(t, articles)
	})

	t.Run("propagates query error", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery("SELECT id, title, abstract, pub_date, keywords, summary, created_at").
			WillReturnError(errors.New("relation does not exist"))

		_, err := repo.ListAll(ctx)
		require.Error(t, err)
	})
}
