// Package pubsubqueue pulls crawl steps from a Pub/Sub subscription.
package pubsubqueue

import (
	"context"
	"fmt"
	"strconv"

	pubsubapi "cloud.google.com/go/pubsub/apiv1"
	"cloud.google.com/go/pubsub/apiv1/pubsubpb"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
	"github.com/JakeFAU/govscout-crawler/internal/queue"
)

// API is the subset of the subscriber client used by Source.
type API interface {
	Pull(ctx context.Context, req *pubsubpb.PullRequest) (*pubsubpb.PullResponse, error)
	Acknowledge(ctx context.Context, req *pubsubpb.AcknowledgeRequest) error
}

type subscriberClient struct {
	client *pubsubapi.SubscriberClient
}

func (c subscriberClient) Pull(ctx context.Context, req *pubsubpb.PullRequest) (*pubsubpb.PullResponse, error) {
	return c.client.Pull(ctx, req)
}

func (c subscriberClient) Acknowledge(ctx context.Context, req *pubsubpb.AcknowledgeRequest) error {
	return c.client.Acknowledge(ctx, req)
}

// Source pulls synchronously so a batch can be acknowledged after dispatch.
type Source struct {
	client       API
	subscription string
}

var _ queue.Source = (*Source)(nil)

// New wraps a subscriber client. subscription is the full resource name,
// projects/{project}/subscriptions/{id}.
func New(client *pubsubapi.SubscriberClient, subscription string) (*Source, error) {
	if client == nil {
		return nil, fmt.Errorf("subscriber client is required")
	}
	return NewWithAPI(subscriberClient{client: client}, subscription)
}

// NewWithAPI builds a Source from any API implementation.
func NewWithAPI(client API, subscription string) (*Source, error) {
	if client == nil {
		return nil, fmt.Errorf("subscriber client is required")
	}
	if subscription == "" {
		return nil, fmt.Errorf("subscription is required")
	}
	return &Source{client: client, subscription: subscription}, nil
}

// SubscriptionName returns the full subscription resource name.
func SubscriptionName(projectID, subscriptionID string) string {
	return fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subscriptionID)
}

// Receive pulls up to ten messages.
func (s *Source) Receive(ctx context.Context) ([]queue.Message, error) {
	resp, err := s.client.Pull(ctx, &pubsubpb.PullRequest{
		Subscription: s.subscription,
		MaxMessages:  crawler.MaxBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("pull %s: %w", s.subscription, err)
	}
	msgs := make([]queue.Message, 0, len(resp.GetReceivedMessages()))
	for i, rm := range resp.GetReceivedMessages() {
		m := rm.GetMessage()
		msgs = append(msgs, queue.Message{
			ID:      strconv.Itoa(i),
			Body:    m.GetData(),
			Receipt: rm.GetAckId(),
			TraceID: m.GetAttributes()[crawler.AttributeTraceHeader],
		})
	}
	return msgs, nil
}

// Delete acknowledges the messages.
func (s *Source) Delete(ctx context.Context, msgs []queue.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.Receipt)
	}
	if err := s.client.Acknowledge(ctx, &pubsubpb.AcknowledgeRequest{
		Subscription: s.subscription,
		AckIds:       ids,
	}); err != nil {
		return fmt.Errorf("acknowledge %d messages: %w", len(ids), err)
	}
	return nil
}
