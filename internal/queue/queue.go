// Package queue defines the inbound side of the crawl step queue.
// This abstraction allows the poll worker to be independent of a specific
// message queue implementation (SQS, Pub/Sub, or memory).
package queue

import (
	"context"
	"errors"
)

// ErrClosed is returned by Receive once a source is shut down for good.
var ErrClosed = errors.New("queue closed")

// Message is one received crawl step.
type Message struct {
	// ID is unique within the receive batch and is used as the step id.
	ID   string
	Body []byte
	// Receipt acknowledges the message on Delete.
	Receipt string
	// TraceID is the trace header carried by the message, if any.
	TraceID string
}

// Source receives crawl steps.
type Source interface {
	// Receive blocks until at least one message is available, the source's
	// wait time passes, or ctx ends. It returns at most ten messages.
	Receive(ctx context.Context) ([]Message, error)

	// Delete acknowledges processed messages so they are not redelivered.
	Delete(ctx context.Context, msgs []Message) error
}
