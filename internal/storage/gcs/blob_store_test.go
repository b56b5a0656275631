package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

// newTestBlobStore points a real client at a fake JSON API.
func newTestBlobStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "test-bucket"})
	require.NoError(t, err)
	return store
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	assert.Error(t, err)
}

func TestHeadNotFound(t *testing.T) {
	t.Parallel()

	store := newTestBlobStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":404,"message":"No such object"}}`)
	}))

	_, err := store.Head(context.Background(), "webs/abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, crawler.ErrBlobNotFound))
}

func TestHeadFound(t *testing.T) {
	t.Parallel()

	store := newTestBlobStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/b/test-bucket/o/")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"bucket":"test-bucket","name":"webs/abc","etag":"CNiJ"}`)
	}))

	info, err := store.Head(context.Background(), "webs/abc")
	require.NoError(t, err)
	assert.Equal(t, "CNiJ", info.ETag)
}

func TestHeadServerError(t *testing.T) {
	t.Parallel()

	store := newTestBlobStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := store.Head(context.Background(), "webs/abc")
	require.Error(t, err)
	assert.False(t, errors.Is(err, crawler.ErrBlobNotFound))
}

func TestPut(t *testing.T) {
	t.Parallel()

	store := newTestBlobStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/test-bucket/o")
		assert.Equal(t, "multipart", r.URL.Query().Get("uploadType"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), "<html>archived</html>")
		assert.True(t, strings.Contains(string(body), `"sha256"`), "expected sha256 metadata in %s", body)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"bucket":"test-bucket","name":"webs/abc","etag":"CAE="}`)
	}))

	info, err := store.Put(context.Background(), crawler.Blob{
		Key:         "webs/abc",
		Body:        []byte("<html>archived</html>"),
		ContentType: "text/html",
		SHA256:      []byte{1, 2, 3},
	})
	require.NoError(t, err)
	assert.Equal(t, "CAE=", info.ETag)
	assert.Equal(t, "test-bucket", store.Bucket())
}

func TestPutError(t *testing.T) {
	t.Parallel()

	store := newTestBlobStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := store.Put(context.Background(), crawler.Blob{Key: "webs/abc", Body: []byte("x")})
	assert.Error(t, err)

	_, err = store.Put(context.Background(), crawler.Blob{})
	assert.Error(t, err)
}
