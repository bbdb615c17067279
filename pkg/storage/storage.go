// Package storage fetches the offloaded blobs referenced by data responses.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dukex/flytestate/pkg/models"
)

var (
	ErrBlobNotFound      = errors.New("blob not found")
	ErrUnsupportedScheme = errors.New("unsupported blob url scheme")
)

// BlobStore returns the raw bytes stored at a blob url.
type BlobStore interface {
	Get(ctx context.Context, blobURL string) ([]byte, error)
}

// Mux dispatches on the url scheme.
type Mux map[string]BlobStore

func (m Mux) Get(ctx context.Context, blobURL string) ([]byte, error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return nil, fmt.Errorf("invalid blob url %q: %w", blobURL, err)
	}

	store, ok := m[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	return store.Get(ctx, blobURL)
}

// Materialize fills the empty full literal maps of resp by fetching and
// decoding the blobs its url pointers name. Populated maps are left alone.
func Materialize(ctx context.Context, store BlobStore, resp *models.DataResponse) error {
	inputs, err := fetchLiteralMap(ctx, store, resp.Inputs, resp.FullInputs)
	if err != nil {
		return fmt.Errorf("inputs: %w", err)
	}

	outputs, err := fetchLiteralMap(ctx, store, resp.Outputs, resp.FullOutputs)
	if err != nil {
		return fmt.Errorf("outputs: %w", err)
	}

	resp.FullInputs = inputs
	resp.FullOutputs = outputs

	return nil
}

func fetchLiteralMap(ctx context.Context, store BlobStore, blob models.UrlBlob, full models.LiteralMap) (models.LiteralMap, error) {
	if !full.IsEmpty() || blob.URL == "" {
		return full, nil
	}

	payload, err := store.Get(ctx, blob.URL)
	if err != nil {
		return models.LiteralMap{}, err
	}

	var literals models.LiteralMap

	err = literals.UnmarshalBinary(payload)
	if err != nil {
		return models.LiteralMap{}, fmt.Errorf("decode %s: %w", blob.URL, err)
	}

	return literals, nil
}
