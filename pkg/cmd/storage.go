package cmd

import (
	"github.com/dukex/flytestate/pkg/storage"
)

type BlobStoreConfig struct {
	FileRoot  string
	S3        storage.S3Config
	CacheSize int
}

// NewBlobStore serves file:// urls, and s3:// urls when an S3 endpoint is
// configured, behind an LRU cache.
func NewBlobStore(cfg BlobStoreConfig) (storage.BlobStore, error) {
	mux := storage.Mux{"file": storage.NewFileStore(cfg.FileRoot)}

	if cfg.S3.Endpoint != "" {
		s3, err := storage.NewS3Store(cfg.S3)
		if err != nil {
			return nil, err
		}

		mux["s3"] = s3
	}

	cached, err := storage.NewCachedStore(mux, cfg.CacheSize)
	if err != nil {
		return nil, err
	}

	return cached, nil
}
