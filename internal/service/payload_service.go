package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Caring-data/documenso-sub000/internal/models"
	appErrors "github.com/Caring-data/documenso-sub000/pkg/errors"
	"github.com/Caring-data/documenso-sub000/pkg/storage"
)

type documentDataStore interface {
	Create(ctx context.Context, data *models.DocumentData) error
	GetByID(ctx context.Context, id string) (*models.DocumentData, error)
	UpdateData(ctx context.Context, exec sqlx.ExtContext, id, data string) error
}

// PayloadService persists and resolves document payload bytes. With an
// object store configured rows carry S3_PATH references; without one the
// bytes live base64-inline as BYTES_64.
type PayloadService struct {
	repo   documentDataStore
	store  storage.Store
	logger *zap.Logger
}

// NewPayloadService constructs the payload service. store may be nil.
func NewPayloadService(repo documentDataStore, store storage.Store, logger *zap.Logger) *PayloadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PayloadService{repo: repo, store: store, logger: logger}
}

// Create stores the uploaded bytes and inserts the payload row. The
// initial payload doubles as the current one until sealing replaces it.
func (s *PayloadService) Create(ctx context.Context, documentID string, data []byte) (*models.DocumentData, error) {
	dd := &models.DocumentData{ID: uuid.NewString()}
	if s.store != nil {
		ref := path.Join("documents", documentID, "original.pdf")
		stored, err := s.store.Put(ctx, ref, data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store document payload")
		}
		dd.Type = models.DocumentDataTypeS3Path
		dd.Data = stored
		dd.InitialData = stored
	} else {
		encoded := base64.StdEncoding.EncodeToString(data)
		dd.Type = models.DocumentDataTypeBytes64
		dd.Data = encoded
		dd.InitialData = encoded
	}
	if err := s.repo.Create(ctx, dd); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create document data")
	}
	return dd, nil
}

// Load resolves the current payload bytes.
func (s *PayloadService) Load(ctx context.Context, dd *models.DocumentData) ([]byte, error) {
	return s.resolve(ctx, dd, dd.Data)
}

// LoadInitial resolves the originally-uploaded bytes. Sealing always
// starts here so a re-seal never signs already-sealed output.
func (s *PayloadService) LoadInitial(ctx context.Context, dd *models.DocumentData) ([]byte, error) {
	return s.resolve(ctx, dd, dd.InitialData)
}

func (s *PayloadService) resolve(ctx context.Context, dd *models.DocumentData, ref string) ([]byte, error) {
	switch dd.Type {
	case models.DocumentDataTypeBytes64:
		data, err := base64.StdEncoding.DecodeString(ref)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "decode document payload")
		}
		return data, nil
	case models.DocumentDataTypeS3Path:
		if s.store == nil {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, "document references object storage but no store is configured")
		}
		data, err := s.store.Get(ctx, ref)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "fetch document payload")
		}
		return data, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("unknown document data type %q", dd.Type))
	}
}

// StoreSealed persists sealed bytes as the new current payload, leaving
// initial_data untouched. Returns the storage reference for download URLs,
// empty for inline payloads.
func (s *PayloadService) StoreSealed(ctx context.Context, exec sqlx.ExtContext, dd *models.DocumentData, documentID string, sealed []byte) (string, error) {
	var current, ref string
	if dd.Type == models.DocumentDataTypeS3Path {
		if s.store == nil {
			return "", appErrors.Clone(appErrors.ErrConfiguration, "document references object storage but no store is configured")
		}
		target := path.Join("documents", documentID, "sealed.pdf")
		stored, err := s.store.Put(ctx, target, sealed)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store sealed payload")
		}
		current, ref = stored, stored
	} else {
		current = base64.StdEncoding.EncodeToString(sealed)
	}
	if err := s.repo.UpdateData(ctx, exec, dd.ID, current); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update document data")
	}
	dd.Data = current
	return ref, nil
}

// Get loads the payload row by id.
func (s *PayloadService) Get(ctx context.Context, id string) (*models.DocumentData, error) {
	dd, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document data not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load document data")
	}
	return dd, nil
}
