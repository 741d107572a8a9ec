package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Caring-data/documenso-sub000/internal/models"
)

const documentColumns = `id, title, status, signing_order, document_data_id, owner_email, owner_name, meta, completed_at, deleted_at, created_at, updated_at`

// DocumentRepository persists document envelopes.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a document row with generated defaults.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = models.DocumentStatusDraft
	}
	if doc.SigningOrder == "" {
		doc.SigningOrder = models.SigningOrderParallel
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	const query = `INSERT INTO documents (id, title, status, signing_order, document_data_id, owner_email, owner_name, meta, completed_at, deleted_at, created_at, updated_at)
VALUES (:id, :title, :status, :signing_order, :document_data_id, :owner_email, :owner_name, :meta, :completed_at, :deleted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID returns a document by its identifier.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// GetByIDForUpdate locks the document row for the rest of the
// transaction. Completion checks run against this snapshot so two
// concurrent signers cannot both observe "one field left".
func (r *DocumentRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 FOR UPDATE`
	var doc models.Document
	if err := tx.GetContext(ctx, &doc, query, id); err != nil {
		return nil, fmt.Errorf("lock document: %w", err)
	}
	return &doc, nil
}

// UpdateStatus moves the document through its lifecycle, stamping
// completed_at when the new status is COMPLETED.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.DocumentStatus, completedAt *time.Time) error {
	const query = `UPDATE documents SET status = $1, completed_at = $2, updated_at = $3 WHERE id = $4`
	if _, err := exec.ExecContext(ctx, query, status, completedAt, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

// SoftDelete marks the document deleted without discarding its rows.
func (r *DocumentRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE documents SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("soft delete document: %w", err)
	}
	return nil
}

// List returns the owner's documents, newest first.
func (r *DocumentRepository) List(ctx context.Context, ownerEmail string, limit, offset int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + documentColumns + ` FROM documents WHERE owner_email = $1 AND deleted_at IS NULL ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, ownerEmail, limit, offset); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// CountByOwner returns the owner's document count for pagination.
func (r *DocumentRepository) CountByOwner(ctx context.Context, ownerEmail string) (int, error) {
	const query = `SELECT COUNT(*) FROM documents WHERE owner_email = $1 AND deleted_at IS NULL`
	var count int
	if err := r.db.GetContext(ctx, &count, query, ownerEmail); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}
