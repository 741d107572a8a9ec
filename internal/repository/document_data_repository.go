package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Caring-data/documenso-sub000/internal/models"
)

// DocumentDataRepository persists the payload indirection rows that
// point at document bytes, inline or in object storage.
type DocumentDataRepository struct {
	db *sqlx.DB
}

// NewDocumentDataRepository constructs the repository.
func NewDocumentDataRepository(db *sqlx.DB) *DocumentDataRepository {
	return &DocumentDataRepository{db: db}
}

// Create inserts a payload row. InitialData defaults to Data so the
// original upload stays addressable after sealing overwrites Data.
func (r *DocumentDataRepository) Create(ctx context.Context, data *models.DocumentData) error {
	if data.ID == "" {
		data.ID = uuid.NewString()
	}
	if data.InitialData == "" {
		data.InitialData = data.Data
	}
	const query = `INSERT INTO document_data (id, type, data, initial_data) VALUES (:id, :type, :data, :initial_data)`
	if _, err := r.db.NamedExecContext(ctx, query, data); err != nil {
		return fmt.Errorf("create document data: %w", err)
	}
	return nil
}

// GetByID returns a payload row by its identifier.
func (r *DocumentDataRepository) GetByID(ctx context.Context, id string) (*models.DocumentData, error) {
	const query = `SELECT id, type, data, initial_data FROM document_data WHERE id = $1`
	var data models.DocumentData
	if err := r.db.GetContext(ctx, &data, query, id); err != nil {
		return nil, fmt.Errorf("get document data: %w", err)
	}
	return &data, nil
}

// UpdateData points the row at new current bytes, leaving initial_data
// untouched.
func (r *DocumentDataRepository) UpdateData(ctx context.Context, exec sqlx.ExtContext, id, data string) error {
	const query = `UPDATE document_data SET data = $1 WHERE id = $2`
	if _, err := exec.ExecContext(ctx, query, data, id); err != nil {
		return fmt.Errorf("update document data: %w", err)
	}
	return nil
}
