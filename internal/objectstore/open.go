package objectstore

import (
	"context"
	"fmt"
	"io"

	"proofbuild/internal/config"
)

// Open builds the configured backend. The returned closer releases client
// resources and is never nil.
func Open(ctx context.Context, cfg config.Store) (Store, io.Closer, error) {
	switch cfg.Backend {
	case config.StoreFilesystem:
		store, err := NewFilesystem(cfg.Root)
		if err != nil {
			return nil, nil, err
		}
		return store, io.NopCloser(nil), nil
	case config.StoreGCS:
		store, err := NewGCS(ctx, cfg.Bucket)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case config.StoreMemory:
		return NewMemory(), io.NopCloser(nil), nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}
}
