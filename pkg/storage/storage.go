package storage

import "context"

// Store abstracts document payload persistence: bytes in, reference out.
// Implementations are LocalStorage (disk) and S3Store.
type Store interface {
	Put(ctx context.Context, ref string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}
