// Package sqsqueue long-polls crawl steps from SQS.
package sqsqueue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/JakeFAU/govscout-crawler/internal/awsutil"
	"github.com/JakeFAU/govscout-crawler/internal/crawler"
	"github.com/JakeFAU/govscout-crawler/internal/queue"
)

// API is the subset of the SQS client used by Source.
type API interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

// Config controls long polling.
type Config struct {
	QueueURL    string
	WaitSeconds int32
}

// Source receives step batches from one queue.
type Source struct {
	client API
	cfg    Config
	logger *zap.Logger
}

var _ queue.Source = (*Source)(nil)

// New creates an SQS source.
func New(client API, cfg Config, logger *zap.Logger) (*Source, error) {
	if client == nil {
		return nil, fmt.Errorf("sqs client is required")
	}
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("queue url is required")
	}
	if cfg.WaitSeconds < 0 || cfg.WaitSeconds > 20 {
		return nil, fmt.Errorf("wait seconds must be between 0 and 20, got %d", cfg.WaitSeconds)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{client: client, cfg: cfg, logger: logger}, nil
}

// Receive long-polls for up to ten messages.
func (s *Source) Receive(ctx context.Context) ([]queue.Message, error) {
	out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(s.cfg.QueueURL),
		MaxNumberOfMessages: crawler.MaxBatchSize,
		WaitTimeSeconds:     s.cfg.WaitSeconds,
		AttributeNames:      []types.QueueAttributeName{types.QueueAttributeNameAll},
	})
	if err != nil {
		awsutil.LogError(s.logger, "failed to receive messages", err, zap.String("queue_url", s.cfg.QueueURL))
		return nil, fmt.Errorf("receive messages: %w", err)
	}
	msgs := make([]queue.Message, 0, len(out.Messages))
	for i, m := range out.Messages {
		msgs = append(msgs, queue.Message{
			ID:      strconv.Itoa(i),
			Body:    []byte(aws.ToString(m.Body)),
			Receipt: aws.ToString(m.ReceiptHandle),
			TraceID: m.Attributes[crawler.AttributeTraceHeader],
		})
	}
	return msgs, nil
}

// Delete removes processed messages in batches of ten.
func (s *Source) Delete(ctx context.Context, msgs []queue.Message) error {
	for start := 0; start < len(msgs); start += crawler.MaxBatchSize {
		end := min(start+crawler.MaxBatchSize, len(msgs))
		entries := make([]types.DeleteMessageBatchRequestEntry, 0, end-start)
		for _, m := range msgs[start:end] {
			entries = append(entries, types.DeleteMessageBatchRequestEntry{
				Id:            aws.String(m.ID),
				ReceiptHandle: aws.String(m.Receipt),
			})
		}
		out, err := s.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
			QueueUrl: aws.String(s.cfg.QueueURL),
			Entries:  entries,
		})
		if err != nil {
			awsutil.LogError(s.logger, "failed to delete messages", err, zap.String("queue_url", s.cfg.QueueURL))
			return fmt.Errorf("delete messages: %w", err)
		}
		if len(out.Failed) > 0 {
			return fmt.Errorf("delete messages: %d of %d entries failed", len(out.Failed), len(entries))
		}
	}
	return nil
}
