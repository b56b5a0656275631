// Package archive records every fetched response: the body is stored once per
// SHA-256 digest and a metadata record is written per fetch.
package archive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
	"github.com/JakeFAU/govscout-crawler/internal/hash/digest"
	"github.com/JakeFAU/govscout-crawler/internal/metrics"
)

// Exchange is one completed fetch whose body has already been read and hashed.
type Exchange struct {
	CrawlID     string
	Method      string
	OriginalURL string
	FinalURL    string
	StatusCode  int
	Header      http.Header
	Body        []byte
	Sum         digest.Sum
}

// Config controls blob key derivation.
type Config struct {
	Prefix string
}

// Archiver writes blobs and metadata records.
type Archiver struct {
	blobs   crawler.BlobStore
	records crawler.RecordStore
	ids     crawler.IDGenerator
	clock   crawler.Clock
	prefix  string
	logger  *zap.Logger
}

// New constructs an Archiver.
func New(
	blobs crawler.BlobStore,
	records crawler.RecordStore,
	ids crawler.IDGenerator,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) (*Archiver, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if ids == nil || clock == nil {
		return nil, fmt.Errorf("id generator and clock are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		blobs:   blobs,
		records: records,
		ids:     ids,
		clock:   clock,
		prefix:  cfg.Prefix,
		logger:  logger,
	}, nil
}

// Key returns the blob key for a body digest.
func (a *Archiver) Key(sum digest.Sum) string {
	return a.prefix + sum.SHA256Hex()
}

// Archive stores the body if no blob with the same digest exists, then writes
// the per-fetch metadata record.
func (a *Archiver) Archive(ctx context.Context, ex Exchange) (crawler.ArchivedResponseRecord, error) {
	key := a.Key(ex.Sum)
	logger := a.logger.With(
		zap.String("crawl_id", ex.CrawlID),
		zap.String("url", ex.FinalURL),
		zap.String("key", key),
	)

	info, err := a.blobs.Head(ctx, key)
	switch {
	case err == nil:
		logger.Debug("reusing archived blob", zap.String("etag", info.ETag))
		metrics.ObserveArchiveBlob("reused")
	case errors.Is(err, crawler.ErrBlobNotFound):
		info, err = a.blobs.Put(ctx, crawler.Blob{
			Key:         key,
			Body:        ex.Body,
			ContentType: ex.Header.Get("Content-Type"),
			MD5:         ex.Sum.MD5[:],
			SHA256:      ex.Sum.SHA256[:],
		})
		if err != nil {
			return crawler.ArchivedResponseRecord{}, fmt.Errorf("%w: upload %s: %w", crawler.ErrArchiveStore, key, err)
		}
		logger.Debug("uploaded blob", zap.String("etag", info.ETag), zap.Int64("bytes", ex.Sum.Size))
		metrics.ObserveArchiveBlob("uploaded")
	default:
		return crawler.ArchivedResponseRecord{}, fmt.Errorf("%w: probe %s: %w", crawler.ErrArchiveStore, key, err)
	}

	requestID, err := a.ids.NewID()
	if err != nil {
		return crawler.ArchivedResponseRecord{}, fmt.Errorf("%w: %w", crawler.ErrArchiveStore, err)
	}
	record := crawler.ArchivedResponseRecord{
		CrawlID:         ex.CrawlID,
		RequestID:       requestID,
		OriginalURL:     ex.OriginalURL,
		FinalURL:        ex.FinalURL,
		Timestamp:       a.clock.Now(),
		Method:          strings.ToUpper(ex.Method),
		StatusCode:      ex.StatusCode,
		ContentType:     ex.Header.Get("Content-Type"),
		ContentLanguage: ex.Header.Get("Content-Language"),
		ContentLength:   ex.Sum.Size,
		ETag:            info.ETag,
		MD5:             ex.Sum.MD5Base64(),
		SHA256:          ex.Sum.SHA256Hex(),
		BlobBucket:      a.blobs.Bucket(),
		BlobKey:         key,
	}
	if err := a.records.PutRecord(ctx, record); err != nil {
		return crawler.ArchivedResponseRecord{}, fmt.Errorf("%w: write record: %w", crawler.ErrArchiveStore, err)
	}
	logger.Info("archived response",
		zap.String("request_id", record.RequestID),
		zap.Int("status", record.StatusCode),
	)
	return record, nil
}
