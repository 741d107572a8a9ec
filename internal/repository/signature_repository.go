package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Caring-data/documenso-sub000/internal/models"
)

const signatureColumns = `id, field_id, recipient_id, image_base64, typed_signature, font_name, color_name, created_at`

// SignatureRepository persists the signature payloads attached to
// signature fields.
type SignatureRepository struct {
	db *sqlx.DB
}

// NewSignatureRepository constructs the repository.
func NewSignatureRepository(db *sqlx.DB) *SignatureRepository {
	return &SignatureRepository{db: db}
}

// Upsert replaces the signature stored for a field. Signing a field
// twice keeps only the latest payload.
func (r *SignatureRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, sig *models.Signature) error {
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO signatures (id, field_id, recipient_id, image_base64, typed_signature, font_name, color_name, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (field_id) DO UPDATE SET recipient_id = EXCLUDED.recipient_id, image_base64 = EXCLUDED.image_base64, typed_signature = EXCLUDED.typed_signature, font_name = EXCLUDED.font_name, color_name = EXCLUDED.color_name, created_at = EXCLUDED.created_at`
	if _, err := exec.ExecContext(ctx, query, sig.ID, sig.FieldID, sig.RecipientID, sig.ImageBase64, sig.TypedSignature, sig.FontName, sig.ColorName, sig.CreatedAt); err != nil {
		return fmt.Errorf("upsert signature: %w", err)
	}
	return nil
}

// GetByFieldID returns the signature for a field, or nil when none was
// stored.
func (r *SignatureRepository) GetByFieldID(ctx context.Context, fieldID string) (*models.Signature, error) {
	query := `SELECT ` + signatureColumns + ` FROM signatures WHERE field_id = $1`
	var sig models.Signature
	if err := r.db.GetContext(ctx, &sig, query, fieldID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get signature: %w", err)
	}
	return &sig, nil
}

// ListByDocument returns every stored signature of the document, keyed
// for sealing to the fields they belong to.
func (r *SignatureRepository) ListByDocument(ctx context.Context, documentID string) ([]models.Signature, error) {
	const query = `SELECT s.id, s.field_id, s.recipient_id, s.image_base64, s.typed_signature, s.font_name, s.color_name, s.created_at
FROM signatures s JOIN fields f ON f.id = s.field_id WHERE f.document_id = $1`
	var sigs []models.Signature
	if err := r.db.SelectContext(ctx, &sigs, query, documentID); err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	return sigs, nil
}

// DeleteByFieldID removes the signature when a field is unsigned.
func (r *SignatureRepository) DeleteByFieldID(ctx context.Context, exec sqlx.ExtContext, fieldID string) error {
	const query = `DELETE FROM signatures WHERE field_id = $1`
	if _, err := exec.ExecContext(ctx, query, fieldID); err != nil {
		return fmt.Errorf("delete signature: %w", err)
	}
	return nil
}
