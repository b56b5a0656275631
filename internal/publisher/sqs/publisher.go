// Package sqspub publishes crawl steps to an SQS queue.
package sqspub

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/JakeFAU/govscout-crawler/internal/awsutil"
	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

// API is the subset of the SQS client used by Publisher.
type API interface {
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
}

// Publisher sends step batches to one queue.
type Publisher struct {
	client   API
	queueURL string
	logger   *zap.Logger
}

// New creates an SQS publisher.
func New(client API, queueURL string, logger *zap.Logger) (*Publisher, error) {
	if client == nil {
		return nil, fmt.Errorf("sqs client is required")
	}
	if queueURL == "" {
		return nil, fmt.Errorf("queue url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, queueURL: queueURL, logger: logger}, nil
}

// PublishBatch sends up to crawler.MaxBatchSize messages in one call. Any
// entry the service rejects fails the whole batch.
func (p *Publisher) PublishBatch(ctx context.Context, msgs []crawler.OutboundMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	if len(msgs) > crawler.MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds limit of %d", len(msgs), crawler.MaxBatchSize)
	}

	entries := make([]types.SendMessageBatchRequestEntry, 0, len(msgs))
	for _, m := range msgs {
		entry := types.SendMessageBatchRequestEntry{
			Id:                aws.String(m.ID),
			MessageBody:       aws.String(string(m.Body)),
			MessageAttributes: make(map[string]types.MessageAttributeValue, len(m.Attributes)),
		}
		for k, v := range m.Attributes {
			entry.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
		if m.TraceID != "" {
			entry.MessageSystemAttributes = map[string]types.MessageSystemAttributeValue{
				crawler.AttributeTraceHeader: {
					DataType:    aws.String("String"),
					StringValue: aws.String(m.TraceID),
				},
			}
		}
		entries = append(entries, entry)
	}

	out, err := p.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
		QueueUrl: aws.String(p.queueURL),
		Entries:  entries,
	})
	if err != nil {
		awsutil.LogError(p.logger, "failed to send message batch", err, zap.String("queue_url", p.queueURL))
		return fmt.Errorf("send message batch: %w", err)
	}
	if len(out.Failed) > 0 {
		failed := make([]string, 0, len(out.Failed))
		for _, f := range out.Failed {
			failed = append(failed, fmt.Sprintf("%s (%s: %s)", aws.ToString(f.Id), aws.ToString(f.Code), aws.ToString(f.Message)))
		}
		sort.Strings(failed)
		return fmt.Errorf("send message batch: %d of %d entries failed: %s", len(failed), len(entries), strings.Join(failed, ", "))
	}
	p.logger.Debug("sent message batch", zap.Int("count", len(entries)))
	return nil
}
