package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// newTestBlobStore points a GCS client at a test server.
func newTestBlobStore(t *testing.T, handler http.Handler, cfg Config) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, cfg)
	require.NoError(t, err)
	return store
}

func TestBlobStorePutObject(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"files":1}`)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/test-bucket/o")
		assert.Equal(t, "runs/r1/manifest.json", r.URL.Query().Get("name"))
		assert.Equal(t, "multipart", r.URL.Query().Get("uploadType"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), string(payload))

		fmt.Fprintln(w, `{ "name": "runs/r1/manifest.json", "bucket": "test-bucket" }`)
	})

	store := newTestBlobStore(t, handler, Config{Bucket: "test-bucket", Prefix: "/runs/"})
	uri, err := store.PutObject(context.Background(), "r1/manifest.json", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "gs://test-bucket/runs/r1/manifest.json", uri)
}

func TestBlobStorePutObjectError(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	store := newTestBlobStore(t, handler, Config{Bucket: "test-bucket"})
	_, err := store.PutObject(context.Background(), "manifest.json", "application/json", bytes.NewReader([]byte("x")))
	require.Error(t, err)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)
}

func TestParseURI(t *testing.T) {
	t.Parallel()

	cfg, err := ParseURI("gs://bucket/a/b")
	require.NoError(t, err)
	require.Equal(t, Config{Bucket: "bucket", Prefix: "a/b"}, cfg)

	cfg, err = ParseURI("gs://bucket")
	require.NoError(t, err)
	require.Equal(t, Config{Bucket: "bucket"}, cfg)

	_, err = ParseURI("gs:///nobucket")
	require.Error(t, err)
	_, err = ParseURI("s3://bucket")
	require.Error(t, err)
}
