package service

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Caring-data/documenso-sub000/internal/models"
	appErrors "github.com/Caring-data/documenso-sub000/pkg/errors"
)

type memStore struct {
	objects map[string][]byte
}

func (s *memStore) Put(ctx context.Context, ref string, data []byte) (string, error) {
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[ref] = cp
	return ref, nil
}

func (s *memStore) Get(ctx context.Context, ref string) ([]byte, error) {
	data, ok := s.objects[ref]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "object not found")
	}
	return data, nil
}

func (s *memStore) Delete(ctx context.Context, ref string) error {
	delete(s.objects, ref)
	return nil
}

func TestPayloadInlineRoundTrip(t *testing.T) {
	repo := &stubPayloadStore{}
	svc := NewPayloadService(repo, nil, zap.NewNop())

	original := []byte("%PDF-1.7 inline")
	dd, err := svc.Create(context.Background(), "doc-1", original)
	require.NoError(t, err)
	require.Equal(t, models.DocumentDataTypeBytes64, dd.Type)
	require.Equal(t, dd.Data, dd.InitialData)

	data, err := svc.Load(context.Background(), dd)
	require.NoError(t, err)
	require.Equal(t, original, data)
}

func TestPayloadObjectStoreRoundTrip(t *testing.T) {
	repo := &stubPayloadStore{}
	store := &memStore{}
	svc := NewPayloadService(repo, store, zap.NewNop())

	original := []byte("%PDF-1.7 stored")
	dd, err := svc.Create(context.Background(), "doc-1", original)
	require.NoError(t, err)
	require.Equal(t, models.DocumentDataTypeS3Path, dd.Type)
	require.Equal(t, "documents/doc-1/original.pdf", dd.Data)

	data, err := svc.Load(context.Background(), dd)
	require.NoError(t, err)
	require.Equal(t, original, data)
}

func TestStoreSealedPreservesInitialData(t *testing.T) {
	repo := &stubPayloadStore{}
	svc := NewPayloadService(repo, nil, zap.NewNop())

	dd, err := svc.Create(context.Background(), "doc-1", []byte("%PDF-original"))
	require.NoError(t, err)
	initial := dd.InitialData

	ref, err := svc.StoreSealed(context.Background(), nil, dd, "doc-1", []byte("%PDF-sealed"))
	require.NoError(t, err)
	require.Empty(t, ref)
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-sealed")), dd.Data)
	require.Equal(t, initial, dd.InitialData)
	require.Equal(t, 1, repo.updates)

	fresh, err := svc.LoadInitial(context.Background(), dd)
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-original"), fresh)
}

func TestStoreSealedWritesSeparateObject(t *testing.T) {
	repo := &stubPayloadStore{}
	store := &memStore{}
	svc := NewPayloadService(repo, store, zap.NewNop())

	dd, err := svc.Create(context.Background(), "doc-1", []byte("%PDF-original"))
	require.NoError(t, err)

	ref, err := svc.StoreSealed(context.Background(), nil, dd, "doc-1", []byte("%PDF-sealed"))
	require.NoError(t, err)
	require.Equal(t, "documents/doc-1/sealed.pdf", ref)
	require.Equal(t, "documents/doc-1/original.pdf", dd.InitialData)

	data, err := svc.LoadInitial(context.Background(), dd)
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-original"), data)
}

func TestPayloadGetNotFound(t *testing.T) {
	svc := NewPayloadService(&stubPayloadStore{}, nil, zap.NewNop())

	_, err := svc.Get(context.Background(), "missing")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestPayloadS3PathWithoutStoreFails(t *testing.T) {
	svc := NewPayloadService(&stubPayloadStore{}, nil, zap.NewNop())

	dd := &models.DocumentData{Type: models.DocumentDataTypeS3Path, Data: "documents/doc-1/original.pdf"}
	_, err := svc.Load(context.Background(), dd)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrConfiguration.Code, appErr.Code)
}
