package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Caring-data/documenso-sub000/internal/models"
)

const recipientColumns = `id, document_id, email, name, role, signing_order, signing_status, send_status, token, rejection_reason, signed_at, created_at`

// RecipientRepository persists document recipients.
type RecipientRepository struct {
	db *sqlx.DB
}

// NewRecipientRepository constructs the repository.
func NewRecipientRepository(db *sqlx.DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// Create inserts a recipient row with generated defaults.
func (r *RecipientRepository) Create(ctx context.Context, rcpt *models.Recipient) error {
	if rcpt.ID == "" {
		rcpt.ID = uuid.NewString()
	}
	if rcpt.Role == "" {
		rcpt.Role = models.RecipientRoleSigner
	}
	if rcpt.SigningStatus == "" {
		rcpt.SigningStatus = models.SigningStatusNotSigned
	}
	if rcpt.SendStatus == "" {
		rcpt.SendStatus = models.SendStatusNotSent
	}
	if rcpt.CreatedAt.IsZero() {
		rcpt.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO recipients (id, document_id, email, name, role, signing_order, signing_status, send_status, token, rejection_reason, signed_at, created_at)
VALUES (:id, :document_id, :email, :name, :role, :signing_order, :signing_status, :send_status, :token, :rejection_reason, :signed_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rcpt); err != nil {
		return fmt.Errorf("create recipient: %w", err)
	}
	return nil
}

// GetByID returns a recipient by its identifier.
func (r *RecipientRepository) GetByID(ctx context.Context, id string) (*models.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE id = $1`
	var rcpt models.Recipient
	if err := r.db.GetContext(ctx, &rcpt, query, id); err != nil {
		return nil, fmt.Errorf("get recipient: %w", err)
	}
	return &rcpt, nil
}

// GetByToken resolves a recipient from their signing token.
func (r *RecipientRepository) GetByToken(ctx context.Context, token string) (*models.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE token = $1`
	var rcpt models.Recipient
	if err := r.db.GetContext(ctx, &rcpt, query, token); err != nil {
		return nil, fmt.Errorf("get recipient by token: %w", err)
	}
	return &rcpt, nil
}

// ListByDocument returns the document's recipients in signing order.
func (r *RecipientRepository) ListByDocument(ctx context.Context, documentID string) ([]models.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE document_id = $1 ORDER BY signing_order ASC NULLS LAST, created_at ASC`
	var rcpts []models.Recipient
	if err := r.db.SelectContext(ctx, &rcpts, query, documentID); err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	return rcpts, nil
}

// ListByDocumentForUpdate locks the document's recipient rows within
// the transaction, in signing order.
func (r *RecipientRepository) ListByDocumentForUpdate(ctx context.Context, tx *sqlx.Tx, documentID string) ([]models.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE document_id = $1 ORDER BY signing_order ASC NULLS LAST, created_at ASC FOR UPDATE`
	var rcpts []models.Recipient
	if err := tx.SelectContext(ctx, &rcpts, query, documentID); err != nil {
		return nil, fmt.Errorf("lock recipients: %w", err)
	}
	return rcpts, nil
}

// UpdateSigningStatus records the outcome of a recipient's turn.
func (r *RecipientRepository) UpdateSigningStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SigningStatus, signedAt *time.Time, rejectionReason *string) error {
	const query = `UPDATE recipients SET signing_status = $1, signed_at = $2, rejection_reason = $3 WHERE id = $4`
	if _, err := exec.ExecContext(ctx, query, status, signedAt, rejectionReason, id); err != nil {
		return fmt.Errorf("update recipient signing status: %w", err)
	}
	return nil
}

// UpdateSendStatus records that the recipient's invitation went out.
func (r *RecipientRepository) UpdateSendStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SendStatus) error {
	const query = `UPDATE recipients SET send_status = $1 WHERE id = $2`
	if _, err := exec.ExecContext(ctx, query, status, id); err != nil {
		return fmt.Errorf("update recipient send status: %w", err)
	}
	return nil
}
