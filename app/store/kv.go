package store

import (
	"context"
	"fmt"
)

const kvPrefix = "kv/"

// KV is a small key/value namespace for singleton documents such as the AI
// provider settings.
type KV struct {
	backend *Backend
}

func NewKV(backend *Backend) *KV {
	return &KV{backend: backend}
}

func (kv *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	value, ok, err := kv.backend.get([]byte(kvPrefix + key))
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, ok, nil
}

func (kv *KV) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := kv.backend.set([]byte(kvPrefix+key), value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}
