// Package s3store provides a BlobStore backed by Amazon S3.
package s3store

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

// API is the subset of the S3 client used by BlobStore.
type API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config captures the bucket archived bodies are written to.
type Config struct {
	Bucket string
}

// BlobStore writes archived bodies to a single bucket.
type BlobStore struct {
	client API
	bucket string
}

// New creates an S3-backed blob store.
func New(client API, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{client: client, bucket: cfg.Bucket}, nil
}

// Bucket returns the configured bucket.
func (s *BlobStore) Bucket() string {
	return s.bucket
}

// Head probes for key. A missing object is reported as crawler.ErrBlobNotFound.
func (s *BlobStore) Head(ctx context.Context, key string) (crawler.BlobInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return crawler.BlobInfo{}, fmt.Errorf("%w: s3://%s/%s", crawler.ErrBlobNotFound, s.bucket, key)
		}
		return crawler.BlobInfo{}, fmt.Errorf("head s3://%s/%s: %w", s.bucket, key, err)
	}
	return crawler.BlobInfo{Key: key, ETag: aws.ToString(out.ETag)}, nil
}

// Put uploads the blob with MD5 and SHA-256 integrity checks.
func (s *BlobStore) Put(ctx context.Context, blob crawler.Blob) (crawler.BlobInfo, error) {
	if strings.TrimSpace(blob.Key) == "" {
		return crawler.BlobInfo{}, fmt.Errorf("blob key is required")
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(blob.Key),
		Body:          bytes.NewReader(blob.Body),
		ContentLength: aws.Int64(int64(len(blob.Body))),
	}
	if blob.ContentType != "" {
		input.ContentType = aws.String(blob.ContentType)
	}
	if len(blob.MD5) > 0 {
		input.ContentMD5 = aws.String(base64.StdEncoding.EncodeToString(blob.MD5))
	}
	if len(blob.SHA256) > 0 {
		input.ChecksumSHA256 = aws.String(base64.StdEncoding.EncodeToString(blob.SHA256))
	}
	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return crawler.BlobInfo{}, fmt.Errorf("put s3://%s/%s: %w", s.bucket, blob.Key, err)
	}
	return crawler.BlobInfo{Key: blob.Key, ETag: aws.ToString(out.ETag)}, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
