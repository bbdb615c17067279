package storage

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 256

// CachedStore keeps the most recently fetched blobs in memory, keyed by url.
// Entries are never invalidated.
type CachedStore struct {
	store BlobStore
	cache *lru.Cache[string, []byte]
}

func NewCachedStore(store BlobStore, size int) (*CachedStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}

	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("init blob cache: %w", err)
	}

	return &CachedStore{store: store, cache: cache}, nil
}

func (s *CachedStore) Get(ctx context.Context, blobURL string) ([]byte, error) {
	if data, ok := s.cache.Get(blobURL); ok {
		return data, nil
	}

	data, err := s.store.Get(ctx, blobURL)
	if err != nil {
		return nil, err
	}

	s.cache.Add(blobURL, data)

	return data, nil
}

func (s *CachedStore) Len() int {
	return s.cache.Len()
}
