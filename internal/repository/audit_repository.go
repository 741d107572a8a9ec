package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Caring-data/documenso-sub000/internal/models"
)

const auditColumns = `id, document_id, type, recipient_id, recipient_email, message, created_at`

// AuditRepository persists the append-only document audit trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an audit entry. Entries are never updated or deleted.
func (r *AuditRepository) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO document_audit_logs (id, document_id, type, recipient_id, recipient_email, message, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := exec.ExecContext(ctx, query, entry.ID, entry.DocumentID, entry.Type, entry.RecipientID, entry.RecipientEmail, entry.Message, entry.CreatedAt); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// ListByDocument returns the document's audit trail oldest first.
func (r *AuditRepository) ListByDocument(ctx context.Context, documentID string) ([]models.AuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM document_audit_logs WHERE document_id = $1 ORDER BY created_at ASC`
	var entries []models.AuditLog
	if err := r.db.SelectContext(ctx, &entries, query, documentID); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return entries, nil
}
