package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
)

// FileStore reads file:// urls, optionally confined to a root directory.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) Get(_ context.Context, blobURL string) ([]byte, error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return nil, fmt.Errorf("invalid blob url %q: %w", blobURL, err)
	}

	if u.Scheme != "file" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	path := filepath.Clean(u.Path)
	if s.root != "" {
		path = filepath.Join(s.root, filepath.Clean("/"+u.Path))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, blobURL)
		}

		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return content, nil
}
