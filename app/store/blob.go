package store

import (
	"context"
	"fmt"
)

const blobPrefix = "blob/"

// BlobStore keeps content documents addressed by key, for example
// "content/<item-id>.json". Writes overwrite.
type BlobStore struct {
	backend *Backend
}

func NewBlobStore(backend *Backend) *BlobStore {
	return &BlobStore{backend: backend}
}

func (s *BlobStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.backend.set([]byte(blobPrefix+key), data); err != nil {
		return fmt.Errorf("failed to put blob %s: %w", key, err)
	}
	return nil
}

// Get reports false when the key is absent.
func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	data, ok, err := s.backend.get([]byte(blobPrefix + key))
	if err != nil {
		return nil, false, fmt.Errorf("failed to get blob %s: %w", key, err)
	}
	return data, ok, nil
}
