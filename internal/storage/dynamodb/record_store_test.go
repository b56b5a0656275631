package dynamostore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

type MockDynamoDB struct {
	mock.Mock
}

func (m *MockDynamoDB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.PutItemOutput), args.Error(1)
}

func record() crawler.ArchivedResponseRecord {
	return crawler.ArchivedResponseRecord{
		CrawlID:       "crawl-1",
		RequestID:     "req-1",
		OriginalURL:   "https://example.com/a",
		FinalURL:      "https://example.com/b",
		Timestamp:     time.Unix(1700000000, 42).UTC(),
		Method:        "GET",
		StatusCode:    200,
		ContentType:   "text/html",
		ContentLength: 10,
		ETag:          `"e"`,
		MD5:           "bWQ1",
		SHA256:        "abcd",
		BlobBucket:    "archive",
		BlobKey:       "webs/abcd",
	}
}

func TestItemAttributeTypes(t *testing.T) {
	t.Parallel()

	av, err := Item(record())
	require.NoError(t, err)

	strings := map[string]string{
		"CrawlId":     "crawl-1",
		"RequestId":   "req-1",
		"OriginalUrl": "https://example.com/a",
		"FinalUrl":    "https://example.com/b",
		"Method":      "GET",
		"ContentType": "text/html",
		"Etag":        `"e"`,
		"Md5":         "bWQ1",
		"Sha256":      "abcd",
		"BlobBucket":  "archive",
		"BlobKey":     "webs/abcd",
	}
	for name, want := range strings {
		got, ok := av[name].(*types.AttributeValueMemberS)
		require.True(t, ok, "%s should be a string attribute", name)
		assert.Equal(t, want, got.Value, name)
	}
	numbers := map[string]string{
		"Timestamp":     "1700000000.000000042",
		"StatusCode":    "200",
		"ContentLength": "10",
	}
	for name, want := range numbers {
		got, ok := av[name].(*types.AttributeValueMemberN)
		require.True(t, ok, "%s should be a number attribute", name)
		assert.Equal(t, want, got.Value, name)
	}
	_, hasLanguage := av["ContentLanguage"]
	assert.False(t, hasLanguage, "empty optional attributes are omitted")
}

func TestPutRecord(t *testing.T) {
	t.Parallel()

	api := new(MockDynamoDB)
	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return *in.TableName == "records" && in.Item["RequestId"] != nil
	})).Return(&dynamodb.PutItemOutput{}, nil)

	store, err := New(api, "records")
	require.NoError(t, err)
	require.NoError(t, store.PutRecord(context.Background(), record()))
	api.AssertExpectations(t)
}

func TestPutRecordError(t *testing.T) {
	t.Parallel()

	api := new(MockDynamoDB)
	api.On("PutItem", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	store, err := New(api, "records")
	require.NoError(t, err)
	err = store.PutRecord(context.Background(), record())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put archived response req-1 into records")
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, "t")
	assert.Error(t, err)
	_, err = New(new(MockDynamoDB), "")
	assert.Error(t, err)
}
