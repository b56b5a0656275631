package archive

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/govscout-crawler/internal/clock/system"
	"github.com/JakeFAU/govscout-crawler/internal/crawler"
	"github.com/JakeFAU/govscout-crawler/internal/hash/digest"
	"github.com/JakeFAU/govscout-crawler/internal/id/uuid"
	"github.com/JakeFAU/govscout-crawler/internal/storage/memory"
)

func exchange(crawlID, url string, body string) Exchange {
	return Exchange{
		CrawlID:     crawlID,
		Method:      "get",
		OriginalURL: url,
		FinalURL:    url,
		StatusCode:  http.StatusOK,
		Header: http.Header{
			"Content-Type":     {"text/html; charset=utf-8"},
			"Content-Language": {"en-US"},
		},
		Body: []byte(body),
		Sum:  digest.Bytes([]byte(body)),
	}
}

func TestArchiveDeduplicatesBlobs(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore("webs-archive")
	records := memory.NewRecordStore()
	clk := system.NewFixed(time.Unix(1700000000, 123).UTC())
	a, err := New(blobs, records, uuid.New(), clk, Config{Prefix: "webs/"}, zap.NewNop())
	require.NoError(t, err)

	first, err := a.Archive(context.Background(), exchange("crawl-1", "https://example.com/a", "<html>same</html>"))
	require.NoError(t, err)
	clk.Advance(time.Second)
	second, err := a.Archive(context.Background(), exchange("crawl-2", "https://example.com/b", "<html>same</html>"))
	require.NoError(t, err)

	assert.Equal(t, 1, blobs.Puts())
	require.Len(t, records.Records(), 2)
	assert.Equal(t, first.BlobKey, second.BlobKey)
	assert.Equal(t, first.ETag, second.ETag)
	assert.NotEqual(t, first.RequestID, second.RequestID)
	assert.Equal(t, "crawl-1", first.CrawlID)
	assert.Equal(t, "crawl-2", second.CrawlID)

	sum := digest.Bytes([]byte("<html>same</html>"))
	assert.Equal(t, "webs/"+sum.SHA256Hex(), first.BlobKey)
	assert.Equal(t, "webs-archive", first.BlobBucket)
	assert.Equal(t, sum.SHA256Hex(), first.SHA256)
	assert.Equal(t, sum.MD5Base64(), first.MD5)
	assert.Equal(t, "GET", first.Method)
	assert.Equal(t, "text/html; charset=utf-8", first.ContentType)
	assert.Equal(t, "en-US", first.ContentLanguage)
	assert.Equal(t, int64(len("<html>same</html>")), first.ContentLength)
	assert.Equal(t, "1700000000.000000123", crawler.FormatTimestamp(first.Timestamp))
	assert.True(t, second.Timestamp.After(first.Timestamp))

	stored, ok := blobs.Get(first.BlobKey)
	require.True(t, ok)
	assert.Equal(t, sum.MD5[:], stored.MD5)
	assert.Equal(t, sum.SHA256[:], stored.SHA256)
}

func TestArchiveDistinctBodiesUploadSeparately(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore("b")
	a, err := New(blobs, memory.NewRecordStore(), uuid.New(), system.New(), Config{}, nil)
	require.NoError(t, err)

	r1, err := a.Archive(context.Background(), exchange("c", "https://example.com/", "one"))
	require.NoError(t, err)
	r2, err := a.Archive(context.Background(), exchange("c", "https://example.com/", "two"))
	require.NoError(t, err)
	assert.Equal(t, 2, blobs.Puts())
	assert.NotEqual(t, r1.BlobKey, r2.BlobKey)
}

type failingBlobStore struct {
	headErr error
	putErr  error
	puts    int
}

func (f *failingBlobStore) Head(context.Context, string) (crawler.BlobInfo, error) {
	return crawler.BlobInfo{}, f.headErr
}

func (f *failingBlobStore) Put(_ context.Context, b crawler.Blob) (crawler.BlobInfo, error) {
	f.puts++
	if f.putErr != nil {
		return crawler.BlobInfo{}, f.putErr
	}
	return crawler.BlobInfo{Key: b.Key, ETag: "etag"}, nil
}

func (f *failingBlobStore) Bucket() string { return "failing" }

type failingRecordStore struct{ err error }

func (f failingRecordStore) PutRecord(context.Context, crawler.ArchivedResponseRecord) error {
	return f.err
}

func TestArchiveFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tests := []struct {
		name     string
		blobs    *failingBlobStore
		records  crawler.RecordStore
		wantPuts int
	}{
		{
			name:     "probe error other than not found",
			blobs:    &failingBlobStore{headErr: boom},
			records:  memory.NewRecordStore(),
			wantPuts: 0,
		},
		{
			name:     "upload error",
			blobs:    &failingBlobStore{headErr: crawler.ErrBlobNotFound, putErr: boom},
			records:  memory.NewRecordStore(),
			wantPuts: 1,
		},
		{
			name:     "record error",
			blobs:    &failingBlobStore{headErr: crawler.ErrBlobNotFound},
			records:  failingRecordStore{err: boom},
			wantPuts: 1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a, err := New(tc.blobs, tc.records, uuid.New(), system.New(), Config{}, zap.NewNop())
			require.NoError(t, err)

			_, err = a.Archive(context.Background(), exchange("c", "https://example.com/", "x"))
			require.Error(t, err)
			assert.ErrorIs(t, err, crawler.ErrArchiveStore)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, tc.wantPuts, tc.blobs.puts)
		})
	}
}

func TestNewValidatesDependencies(t *testing.T) {
	t.Parallel()

	_, err := New(nil, memory.NewRecordStore(), uuid.New(), system.New(), Config{}, nil)
	assert.Error(t, err)
	_, err = New(memory.NewBlobStore(""), nil, uuid.New(), system.New(), Config{}, nil)
	assert.Error(t, err)
	_, err = New(memory.NewBlobStore(""), memory.NewRecordStore(), nil, system.New(), Config{}, nil)
	assert.Error(t, err)
}
