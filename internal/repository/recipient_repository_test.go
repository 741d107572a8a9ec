package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/Caring-data/documenso-sub000/internal/models"
)

func recipientRows(rcpts ...models.Recipient) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "document_id", "email", "name", "role", "signing_order", "signing_status", "send_status", "token", "rejection_reason", "signed_at", "created_at"})
	for _, r := range rcpts {
		rows.AddRow(r.ID, r.DocumentID, r.Email, r.Name, r.Role, r.SigningOrder, r.SigningStatus, r.SendStatus, r.Token, r.RejectionReason, r.SignedAt, time.Now())
	}
	return rows
}

func TestRecipientRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRecipientRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO recipients")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rcpt := &models.Recipient{DocumentID: "doc-1", Email: "ada@example.test", Token: "tok"}
	require.NoError(t, repo.Create(context.Background(), rcpt))
	require.Equal(t, models.RecipientRoleSigner, rcpt.Role)
	require.Equal(t, models.SigningStatusNotSigned, rcpt.SigningStatus)
	require.Equal(t, models.SendStatusNotSent, rcpt.SendStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientRepositoryGetByToken(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRecipientRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM recipients WHERE token = $1")).
		WithArgs("tok-1").
		WillReturnRows(recipientRows(models.Recipient{
			ID: "rcpt-1", DocumentID: "doc-1", Email: "ada@example.test",
			Role: models.RecipientRoleSigner, SigningStatus: models.SigningStatusNotSigned,
			SendStatus: models.SendStatusSent, Token: "tok-1",
		}))

	rcpt, err := repo.GetByToken(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Equal(t, "rcpt-1", rcpt.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientRepositoryListOrdersBySigningOrder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRecipientRepository(db)

	first := 1
	second := 2
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY signing_order ASC NULLS LAST, created_at ASC")).
		WithArgs("doc-1").
		WillReturnRows(recipientRows(
			models.Recipient{ID: "rcpt-1", DocumentID: "doc-1", SigningOrder: &first, Role: models.RecipientRoleSigner, SigningStatus: models.SigningStatusNotSigned, SendStatus: models.SendStatusSent},
			models.Recipient{ID: "rcpt-2", DocumentID: "doc-1", SigningOrder: &second, Role: models.RecipientRoleSigner, SigningStatus: models.SigningStatusNotSigned, SendStatus: models.SendStatusSent},
		))

	rcpts, err := repo.ListByDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, rcpts, 2)
	require.Equal(t, "rcpt-1", rcpts[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientRepositoryUpdateSigningStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRecipientRepository(db)

	reason := "wrong terms"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE recipients SET signing_status = $1, signed_at = $2, rejection_reason = $3 WHERE id = $4")).
		WithArgs(models.SigningStatusRejected, sqlmock.AnyArg(), sqlmock.AnyArg(), "rcpt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateSigningStatus(context.Background(), db, "rcpt-1", models.SigningStatusRejected, nil, &reason))
	require.NoError(t, mock.ExpectationsWereMet())
}
