package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/Caring-data/documenso-sub000/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func documentRows(id string, status models.DocumentStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "status", "signing_order", "document_data_id", "owner_email", "owner_name", "meta", "completed_at", "deleted_at", "created_at", "updated_at"}).
		AddRow(id, "Lease Agreement", status, "PARALLEL", "data-1", "owner@example.test", "Owner", []byte(`{}`), nil, nil, time.Now(), time.Now())
}

func TestDocumentRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	doc := &models.Document{
		Title:          "Lease Agreement",
		DocumentDataID: "data-1",
		OwnerEmail:     "owner@example.test",
	}
	require.NoError(t, repo.Create(context.Background(), doc))
	require.NotEmpty(t, doc.ID)
	require.Equal(t, models.DocumentStatusDraft, doc.Status)

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE id = $1")).
		WithArgs(doc.ID).
		WillReturnRows(documentRows(doc.ID, models.DocumentStatusDraft))

	fetched, err := repo.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, doc.ID, fetched.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryLocksRowForUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE id = $1 FOR UPDATE")).
		WithArgs("doc-1").
		WillReturnRows(documentRows("doc-1", models.DocumentStatusPending))
	mock.ExpectCommit()

	err := WithTx(context.Background(), db, func(tx *sqlx.Tx) error {
		doc, err := repo.GetByIDForUpdate(context.Background(), tx, "doc-1")
		require.NoError(t, err)
		require.Equal(t, models.DocumentStatusPending, doc.Status)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryUpdateStatusStampsCompletion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET status = $1, completed_at = $2, updated_at = $3 WHERE id = $4")).
		WithArgs(models.DocumentStatusCompleted, sqlmock.AnyArg(), sqlmock.AnyArg(), "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), db, "doc-1", models.DocumentStatusCompleted, &now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositorySoftDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL")).
		WithArgs(sqlmock.AnyArg(), "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SoftDelete(context.Background(), "doc-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := WithTx(context.Background(), db, func(tx *sqlx.Tx) error {
		return context.DeadlineExceeded
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NoError(t, mock.ExpectationsWereMet())
}
