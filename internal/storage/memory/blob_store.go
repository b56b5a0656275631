// Package memory provides in-memory blob and record stores for development
// and tests.
package memory

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

// BlobStore keeps archived bodies in a map keyed by blob key.
type BlobStore struct {
	mu     sync.RWMutex
	bucket string
	data   map[string]crawler.Blob
	etags  map[string]string
	puts   int
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore(bucket string) *BlobStore {
	if bucket == "" {
		bucket = "memory"
	}
	return &BlobStore{
		bucket: bucket,
		data:   make(map[string]crawler.Blob),
		etags:  make(map[string]string),
	}
}

// Bucket returns the pseudo bucket name.
func (s *BlobStore) Bucket() string {
	return s.bucket
}

// Head returns the stored blob's ETag or crawler.ErrBlobNotFound.
func (s *BlobStore) Head(_ context.Context, key string) (crawler.BlobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	etag, ok := s.etags[key]
	if !ok {
		return crawler.BlobInfo{}, fmt.Errorf("%w: memory://%s/%s", crawler.ErrBlobNotFound, s.bucket, key)
	}
	return crawler.BlobInfo{Key: key, ETag: etag}, nil
}

// Put stores a copy of the blob. The ETag is the quoted hex MD5, as S3 reports
// it for single part uploads.
func (s *BlobStore) Put(_ context.Context, blob crawler.Blob) (crawler.BlobInfo, error) {
	if blob.Key == "" {
		return crawler.BlobInfo{}, fmt.Errorf("blob key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := blob
	stored.Body = append([]byte(nil), blob.Body...)
	stored.MD5 = append([]byte(nil), blob.MD5...)
	stored.SHA256 = append([]byte(nil), blob.SHA256...)
	s.data[blob.Key] = stored

	etag := `"` + hex.EncodeToString(blob.MD5) + `"`
	s.etags[blob.Key] = etag
	s.puts++
	return crawler.BlobInfo{Key: blob.Key, ETag: etag}, nil
}

// Get returns a stored blob.
func (s *BlobStore) Get(key string) (crawler.Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[key]
	return b, ok
}

// Puts returns how many uploads were performed.
func (s *BlobStore) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}
