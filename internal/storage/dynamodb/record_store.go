// Package dynamostore writes archived response records to DynamoDB.
package dynamostore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

// API is the subset of the DynamoDB client used by RecordStore.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// RecordStore puts one item per archived response.
type RecordStore struct {
	client API
	table  string
}

// New creates a DynamoDB-backed record store.
func New(client API, table string) (*RecordStore, error) {
	if client == nil {
		return nil, fmt.Errorf("dynamodb client is required")
	}
	if table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	return &RecordStore{client: client, table: table}, nil
}

type timestamp string

// MarshalDynamoDBAttributeValue stores the timestamp as a number so that
// sub-second precision survives.
func (t timestamp) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: string(t)}, nil
}

type item struct {
	CrawlID         string    `dynamodbav:"CrawlId"`
	RequestID       string    `dynamodbav:"RequestId"`
	OriginalURL     string    `dynamodbav:"OriginalUrl"`
	FinalURL        string    `dynamodbav:"FinalUrl"`
	Timestamp       timestamp `dynamodbav:"Timestamp"`
	Method          string    `dynamodbav:"Method"`
	StatusCode      int       `dynamodbav:"StatusCode"`
	ContentType     string    `dynamodbav:"ContentType,omitempty"`
	ContentLanguage string    `dynamodbav:"ContentLanguage,omitempty"`
	ContentLength   int64     `dynamodbav:"ContentLength"`
	ETag            string    `dynamodbav:"Etag"`
	MD5             string    `dynamodbav:"Md5"`
	SHA256          string    `dynamodbav:"Sha256"`
	BlobBucket      string    `dynamodbav:"BlobBucket"`
	BlobKey         string    `dynamodbav:"BlobKey"`
}

// Item converts a record to its DynamoDB attribute map.
func Item(record crawler.ArchivedResponseRecord) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.MarshalMap(item{
		CrawlID:         record.CrawlID,
		RequestID:       record.RequestID,
		OriginalURL:     record.OriginalURL,
		FinalURL:        record.FinalURL,
		Timestamp:       timestamp(crawler.FormatTimestamp(record.Timestamp)),
		Method:          record.Method,
		StatusCode:      record.StatusCode,
		ContentType:     record.ContentType,
		ContentLanguage: record.ContentLanguage,
		ContentLength:   record.ContentLength,
		ETag:            record.ETag,
		MD5:             record.MD5,
		SHA256:          record.SHA256,
		BlobBucket:      record.BlobBucket,
		BlobKey:         record.BlobKey,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal archived response: %w", err)
	}
	return av, nil
}

// PutRecord writes the record item.
func (s *RecordStore) PutRecord(ctx context.Context, record crawler.ArchivedResponseRecord) error {
	av, err := Item(record)
	if err != nil {
		return err
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("put archived response %s into %s: %w", record.RequestID, s.table, err)
	}
	return nil
}
