// Package pubsub publishes crawl steps to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

// Publisher wraps a Pub/Sub topic handle.
type Publisher struct {
	topic *pubsub.Topic
}

// New creates a Publisher for the provided topic.
func New(topic *pubsub.Topic) *Publisher {
	return &Publisher{topic: topic}
}

// PublishBatch publishes every message and waits for all of them to be
// acknowledged. Pub/Sub has no trace header, so the trace id travels as a
// message attribute alongside the propagated otel context.
func (p *Publisher) PublishBatch(ctx context.Context, msgs []crawler.OutboundMessage) error {
	if p.topic == nil {
		return fmt.Errorf("pubsub topic is not configured")
	}
	if len(msgs) > crawler.MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds limit of %d", len(msgs), crawler.MaxBatchSize)
	}

	results := make([]*pubsub.PublishResult, 0, len(msgs))
	for _, m := range msgs {
		attrs := make(map[string]string, len(m.Attributes)+1)
		for k, v := range m.Attributes {
			attrs[k] = v
		}
		if m.TraceID != "" {
			attrs[crawler.AttributeTraceHeader] = m.TraceID
		}
		otel.GetTextMapPropagator().Inject(ctx, &pubsubCarrier{attrs: attrs})
		results = append(results, p.topic.Publish(ctx, &pubsub.Message{Data: m.Body, Attributes: attrs}))
	}

	var errs []error
	for i, res := range results {
		if _, err := res.Get(ctx); err != nil {
			errs = append(errs, fmt.Errorf("publish message %s: %w", msgs[i].ID, err))
		}
	}
	return errors.Join(errs...)
}

// Stop flushes pending publishes.
func (p *Publisher) Stop() {
	if p.topic != nil {
		p.topic.Stop()
	}
}

// pubsubCarrier implements propagation.TextMapCarrier for Pub/Sub attributes.
type pubsubCarrier struct {
	attrs map[string]string
}

func (c *pubsubCarrier) Get(key string) string {
	return c.attrs[key]
}

func (c *pubsubCarrier) Set(key, value string) {
	c.attrs[key] = value
}

func (c *pubsubCarrier) Keys() []string {
	keys := make([]string, 0, len(c.attrs))
	for k := range c.attrs {
		keys = append(keys, k)
	}
	return keys
}
