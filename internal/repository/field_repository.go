package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Caring-data/documenso-sub000/internal/models"
)

const fieldColumns = `id, document_id, recipient_id, type, page, position_x, position_y, width, height, inserted, custom_text, meta, created_at`

// FieldRepository persists the fields placed on documents.
type FieldRepository struct {
	db *sqlx.DB
}

// NewFieldRepository constructs the repository.
func NewFieldRepository(db *sqlx.DB) *FieldRepository {
	return &FieldRepository{db: db}
}

// Create inserts a field row with generated defaults.
func (r *FieldRepository) Create(ctx context.Context, field *models.Field) error {
	if field.ID == "" {
		field.ID = uuid.NewString()
	}
	if field.CreatedAt.IsZero() {
		field.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO fields (id, document_id, recipient_id, type, page, position_x, position_y, width, height, inserted, custom_text, meta, created_at)
VALUES (:id, :document_id, :recipient_id, :type, :page, :position_x, :position_y, :width, :height, :inserted, :custom_text, :meta, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, field); err != nil {
		return fmt.Errorf("create field: %w", err)
	}
	return nil
}

// GetByID returns a field by its identifier.
func (r *FieldRepository) GetByID(ctx context.Context, id string) (*models.Field, error) {
	query := `SELECT ` + fieldColumns + ` FROM fields WHERE id = $1`
	var field models.Field
	if err := r.db.GetContext(ctx, &field, query, id); err != nil {
		return nil, fmt.Errorf("get field: %w", err)
	}
	return &field, nil
}

// ListByDocument returns every field of the document.
func (r *FieldRepository) ListByDocument(ctx context.Context, documentID string) ([]models.Field, error) {
	query := `SELECT ` + fieldColumns + ` FROM fields WHERE document_id = $1 ORDER BY page ASC, created_at ASC`
	var fields []models.Field
	if err := r.db.SelectContext(ctx, &fields, query, documentID); err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	return fields, nil
}

// ListByRecipient returns the fields assigned to one recipient.
func (r *FieldRepository) ListByRecipient(ctx context.Context, recipientID string) ([]models.Field, error) {
	query := `SELECT ` + fieldColumns + ` FROM fields WHERE recipient_id = $1 ORDER BY page ASC, created_at ASC`
	var fields []models.Field
	if err := r.db.SelectContext(ctx, &fields, query, recipientID); err != nil {
		return nil, fmt.Errorf("list recipient fields: %w", err)
	}
	return fields, nil
}

// SetSigned stores the signed value and marks the field inserted.
func (r *FieldRepository) SetSigned(ctx context.Context, exec sqlx.ExtContext, id, customText string) error {
	const query = `UPDATE fields SET inserted = TRUE, custom_text = $1 WHERE id = $2`
	if _, err := exec.ExecContext(ctx, query, customText, id); err != nil {
		return fmt.Errorf("mark field signed: %w", err)
	}
	return nil
}

// ClearSigned reverts a signed field back to its empty state.
func (r *FieldRepository) ClearSigned(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `UPDATE fields SET inserted = FALSE, custom_text = '' WHERE id = $1`
	if _, err := exec.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("clear field: %w", err)
	}
	return nil
}

// CountPendingForSigners counts fields still unsigned for recipients
// whose role acts on fields. The completion check runs this inside the
// locking transaction.
func (r *FieldRepository) CountPendingForSigners(ctx context.Context, exec sqlx.ExtContext, documentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM fields f
JOIN recipients r ON r.id = f.recipient_id
WHERE f.document_id = $1 AND f.inserted = FALSE AND r.role IN ('SIGNER', 'APPROVER', 'ASSISTANT')`
	var count int
	if err := sqlx.GetContext(ctx, exec, &count, query, documentID); err != nil {
		return 0, fmt.Errorf("count pending fields: %w", err)
	}
	return count, nil
}
