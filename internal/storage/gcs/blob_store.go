// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

// sha256MetadataKey carries the body digest in object metadata, since GCS
// only verifies MD5 and CRC32C natively.
const sha256MetadataKey = "sha256"

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
}

// BlobStore writes archived bodies to a configured GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Bucket returns the configured bucket.
func (s *BlobStore) Bucket() string {
	return s.bucket
}

// Head returns the object's ETag, or crawler.ErrBlobNotFound.
func (s *BlobStore) Head(ctx context.Context, key string) (crawler.BlobInfo, error) {
	attrs, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return crawler.BlobInfo{}, fmt.Errorf("%w: gs://%s/%s", crawler.ErrBlobNotFound, s.bucket, key)
		}
		return crawler.BlobInfo{}, fmt.Errorf("stat gs://%s/%s: %w", s.bucket, key, err)
	}
	return crawler.BlobInfo{Key: key, ETag: attrs.Etag}, nil
}

// Put uploads the blob. GCS rejects the upload when the MD5 does not match.
func (s *BlobStore) Put(ctx context.Context, blob crawler.Blob) (crawler.BlobInfo, error) {
	if strings.TrimSpace(blob.Key) == "" {
		return crawler.BlobInfo{}, fmt.Errorf("path is required")
	}
	writer := s.client.Bucket(s.bucket).Object(blob.Key).NewWriter(ctx)
	if blob.ContentType != "" {
		writer.ContentType = blob.ContentType
	}
	if len(blob.MD5) > 0 {
		writer.MD5 = append([]byte(nil), blob.MD5...)
	}
	if len(blob.SHA256) > 0 {
		writer.Metadata = map[string]string{
			sha256MetadataKey: base64.StdEncoding.EncodeToString(blob.SHA256),
		}
	}
	if _, err := io.Copy(writer, bytes.NewReader(blob.Body)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return crawler.BlobInfo{}, fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return crawler.BlobInfo{}, fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return crawler.BlobInfo{}, fmt.Errorf("close writer: %w", err)
	}
	info := crawler.BlobInfo{Key: blob.Key}
	if attrs := writer.Attrs(); attrs != nil {
		info.ETag = attrs.Etag
	}
	return info, nil
}
