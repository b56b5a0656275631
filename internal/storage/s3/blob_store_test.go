package s3store

import (
	"context"
	"crypto/md5" //nolint:gosec // matches the upload integrity check
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

type MockS3 struct {
	mock.Mock
}

func (m *MockS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.HeadObjectOutput), args.Error(1)
}

func (m *MockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	assert.Error(t, err)
	_, err = New(new(MockS3), Config{})
	assert.Error(t, err)
}

func TestHeadFound(t *testing.T) {
	t.Parallel()

	api := new(MockS3)
	api.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
		return aws.ToString(in.Bucket) == "archive" && aws.ToString(in.Key) == "webs/abc"
	})).Return(&s3.HeadObjectOutput{ETag: aws.String(`"etag"`)}, nil)

	store, err := New(api, Config{Bucket: "archive"})
	require.NoError(t, err)
	info, err := store.Head(context.Background(), "webs/abc")
	require.NoError(t, err)
	assert.Equal(t, `"etag"`, info.ETag)
	assert.Equal(t, "archive", store.Bucket())
	api.AssertExpectations(t)
}

func TestHeadNotFoundVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{name: "modeled not found", err: &types.NotFound{}, notFound: true},
		{name: "no such key", err: &types.NoSuchKey{}, notFound: true},
		{name: "generic api error", err: &smithy.GenericAPIError{Code: "NotFound"}, notFound: true},
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}},
		{name: "network", err: errors.New("connection reset")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			api := new(MockS3)
			api.On("HeadObject", mock.Anything, mock.Anything).Return(nil, tc.err)
			store, err := New(api, Config{Bucket: "archive"})
			require.NoError(t, err)

			_, err = store.Head(context.Background(), "k")
			require.Error(t, err)
			assert.Equal(t, tc.notFound, errors.Is(err, crawler.ErrBlobNotFound))
		})
	}
}

func TestPutSendsChecksums(t *testing.T) {
	t.Parallel()

	body := []byte("<html></html>")
	md5sum := md5.Sum(body) //nolint:gosec // test fixture
	shasum := sha256.Sum256(body)

	api := new(MockS3)
	api.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		data, err := io.ReadAll(in.Body)
		if err != nil {
			return false
		}
		return aws.ToString(in.Key) == "webs/k" &&
			string(data) == string(body) &&
			aws.ToInt64(in.ContentLength) == int64(len(body)) &&
			aws.ToString(in.ContentType) == "text/html" &&
			aws.ToString(in.ContentMD5) == base64.StdEncoding.EncodeToString(md5sum[:]) &&
			aws.ToString(in.ChecksumSHA256) == base64.StdEncoding.EncodeToString(shasum[:])
	})).Return(&s3.PutObjectOutput{ETag: aws.String(`"new"`)}, nil).Once()

	store, err := New(api, Config{Bucket: "archive"})
	require.NoError(t, err)
	info, err := store.Put(context.Background(), crawler.Blob{
		Key:         "webs/k",
		Body:        body,
		ContentType: "text/html",
		MD5:         md5sum[:],
		SHA256:      shasum[:],
	})
	require.NoError(t, err)
	assert.Equal(t, `"new"`, info.ETag)
	api.AssertExpectations(t)
}

func TestPutError(t *testing.T) {
	t.Parallel()

	api := new(MockS3)
	api.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("slow down"))
	store, err := New(api, Config{Bucket: "archive"})
	require.NoError(t, err)

	_, err = store.Put(context.Background(), crawler.Blob{Key: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put s3://archive/k")

	_, err = store.Put(context.Background(), crawler.Blob{})
	assert.Error(t, err)
}
