package crawler

import (
	"context"
	"time"
)

// Blob is a content-addressed object ready for upload.
type Blob struct {
	Key         string
	Body        []byte
	ContentType string
	// MD5 and SHA256 are raw digests of Body.
	MD5    []byte
	SHA256 []byte
}

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Key  string
	ETag string
}

// BlobStore holds response bodies keyed by digest.
type BlobStore interface {
	// Head returns an error wrapping ErrBlobNotFound when key is absent.
	Head(ctx context.Context, key string) (BlobInfo, error)
	Put(ctx context.Context, blob Blob) (BlobInfo, error)
	Bucket() string
}

// RecordStore persists per-fetch metadata records.
type RecordStore interface {
	PutRecord(ctx context.Context, record ArchivedResponseRecord) error
}

// SecretStore resolves named secrets under a configured prefix.
type SecretStore interface {
	Get(ctx context.Context, name string) (string, error)
}

// MaxBatchSize is the largest number of messages sent in one queue batch.
const MaxBatchSize = 10

// Message attribute names attached to every outbound step.
const (
	AttributeSubsystem = "Subsystem"
	AttributeOperation = "Operation"
	// AttributeTraceHeader carries the trace id on transports without a
	// native trace header.
	AttributeTraceHeader = "AWSTraceHeader"
)

// OutboundMessage is one queued crawl step.
type OutboundMessage struct {
	ID         string
	Body       []byte
	Attributes map[string]string
	TraceID    string
}

// Publisher sends batches of at most ten messages to the crawl queue.
type Publisher interface {
	PublishBatch(ctx context.Context, msgs []OutboundMessage) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces time-ordered unique ids.
type IDGenerator interface {
	NewID() (string, error)
}
