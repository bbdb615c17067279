package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/flytestate/pkg/mocks"
	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func literalMapBytes(t *testing.T, values map[string]any) (models.LiteralMap, []byte) {
	t.Helper()

	literals, err := models.LiteralMapFromValues(values)
	require.NoError(t, err)

	payload, err := literals.MarshalBinary()
	require.NoError(t, err)

	return literals, payload
}

func TestMaterialize(t *testing.T) {
	inputs, inputsPayload := literalMapBytes(t, map[string]any{"min_id": int64(2)})
	outputs, outputsPayload := literalMapBytes(t, map[string]any{"count": int64(7)})

	store := &mocks.MockBlobStore{}
	store.On("Get", mock.Anything, "s3://bucket/inputs.pb").Return(inputsPayload, nil).Once()
	store.On("Get", mock.Anything, "s3://bucket/outputs.pb").Return(outputsPayload, nil).Once()

	resp := models.DataResponse{
		Inputs:      models.UrlBlob{URL: "s3://bucket/inputs.pb", Bytes: int64(len(inputsPayload))},
		Outputs:     models.UrlBlob{URL: "s3://bucket/outputs.pb", Bytes: int64(len(outputsPayload))},
		FullInputs:  models.NewLiteralMap(nil),
		FullOutputs: models.NewLiteralMap(nil),
	}

	require.NoError(t, storage.Materialize(context.Background(), store, &resp))
	assert.True(t, inputs.Equal(resp.FullInputs))
	assert.True(t, outputs.Equal(resp.FullOutputs))

	// already materialized: no further fetches
	require.NoError(t, storage.Materialize(context.Background(), store, &resp))
	store.AssertExpectations(t)
}

func TestMaterialize_SkipsMissingURLs(t *testing.T) {
	store := &mocks.MockBlobStore{}

	resp := models.DataResponse{FullInputs: models.NewLiteralMap(nil), FullOutputs: models.NewLiteralMap(nil)}

	require.NoError(t, storage.Materialize(context.Background(), store, &resp))
	assert.True(t, resp.FullInputs.IsEmpty())
	store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestMaterialize_Errors(t *testing.T) {
	store := &mocks.MockBlobStore{}
	store.On("Get", mock.Anything, "s3://bucket/missing").Return(nil, storage.ErrBlobNotFound)
	store.On("Get", mock.Anything, "s3://bucket/garbage").Return([]byte{0xff, 0xff}, nil)

	resp := models.DataResponse{Inputs: models.UrlBlob{URL: "s3://bucket/missing"}}
	err := storage.Materialize(context.Background(), store, &resp)
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)
	assert.ErrorContains(t, err, "inputs")

	resp = models.DataResponse{Outputs: models.UrlBlob{URL: "s3://bucket/garbage"}}
	err = storage.Materialize(context.Background(), store, &resp)
	assert.True(t, models.IsMalformedMessage(err))
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "outputs.pb"), []byte("payload"), 0o600))

	data, err := storage.NewFileStore("").Get(context.Background(), "file://"+filepath.Join(dir, "outputs.pb"))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	confined := storage.NewFileStore(dir)

	data, err = confined.Get(context.Background(), "file:///outputs.pb")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	_, err = confined.Get(context.Background(), "file:///../../etc/passwd")
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)

	_, err = confined.Get(context.Background(), "s3://bucket/key")
	assert.ErrorIs(t, err, storage.ErrUnsupportedScheme)
}

func TestMux(t *testing.T) {
	s3 := &mocks.MockBlobStore{}
	s3.On("Get", mock.Anything, "s3://bucket/key").Return([]byte("s3"), nil)

	mux := storage.Mux{"s3": s3}

	data, err := mux.Get(context.Background(), "S3://bucket/key")
	require.NoError(t, err)
	assert.Equal(t, []byte("s3"), data)

	_, err = mux.Get(context.Background(), "gs://bucket/key")
	assert.ErrorIs(t, err, storage.ErrUnsupportedScheme)
}

func TestCachedStore(t *testing.T) {
	backend := &mocks.MockBlobStore{}
	backend.On("Get", mock.Anything, "s3://bucket/a").Return([]byte("a"), nil).Once()
	backend.On("Get", mock.Anything, "s3://bucket/b").Return([]byte("b"), nil).Twice()
	backend.On("Get", mock.Anything, "s3://bucket/c").Return([]byte("c"), nil).Once()
	backend.On("Get", mock.Anything, "s3://bucket/err").Return(nil, errors.New("boom"))

	cached, err := storage.NewCachedStore(backend, 2)
	require.NoError(t, err)

	ctx := context.Background()

	for _, key := range []string{"a", "b", "a", "c", "b"} {
		data, err := cached.Get(ctx, "s3://bucket/"+key)
		require.NoError(t, err)
		assert.Equal(t, []byte(key), data)
	}

	_, err = cached.Get(ctx, "s3://bucket/err")
	require.Error(t, err)
	assert.Equal(t, 2, cached.Len())

	backend.AssertExpectations(t)
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := storage.ParseS3URL("s3://my-bucket/metadata/run/outputs.pb")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "metadata/run/outputs.pb", key)

	for _, bad := range []string{"s3://bucket", "s3:///key", "file:///tmp/x"} {
		_, _, err := storage.ParseS3URL(bad)
		assert.Error(t, err, bad)
	}
}
