// Package memory provides a queue for local development that is both the
// step publisher and the poll worker's source.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
	"github.com/JakeFAU/govscout-crawler/internal/queue"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan queue.Message
	closeMu sync.Mutex
	closed  bool

	mu      sync.Mutex
	seq     int
	deleted []string
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan queue.Message, capacity),
	}
}

// Enqueue pushes a message into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, msg queue.Message) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- msg:
		return nil
	}
}

// PublishBatch implements crawler.Publisher.
func (q *Queue) PublishBatch(ctx context.Context, msgs []crawler.OutboundMessage) error {
	if len(msgs) > crawler.MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds limit of %d", len(msgs), crawler.MaxBatchSize)
	}
	for _, m := range msgs {
		q.mu.Lock()
		q.seq++
		receipt := "memory-" + strconv.Itoa(q.seq)
		q.mu.Unlock()
		if err := q.Enqueue(ctx, queue.Message{ID: m.ID, Body: m.Body, Receipt: receipt, TraceID: m.TraceID}); err != nil {
			return err
		}
	}
	return nil
}

// Receive waits for one message, then drains up to nine more without blocking.
// Step ids are reassigned by position so they are unique within the batch.
func (q *Queue) Receive(ctx context.Context) ([]queue.Message, error) {
	var out []queue.Message
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case msg, ok := <-q.ch:
		if !ok {
			return nil, queue.ErrClosed
		}
		out = append(out, msg)
	}
	for len(out) < crawler.MaxBatchSize {
		select {
		case msg, ok := <-q.ch:
			if !ok {
				return renumber(out), nil
			}
			out = append(out, msg)
		default:
			return renumber(out), nil
		}
	}
	return renumber(out), nil
}

func renumber(msgs []queue.Message) []queue.Message {
	for i := range msgs {
		msgs[i].ID = strconv.Itoa(i)
	}
	return msgs
}

// Delete records the acknowledged receipts.
func (q *Queue) Delete(_ context.Context, msgs []queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range msgs {
		q.deleted = append(q.deleted, m.Receipt)
	}
	return nil
}

// Deleted returns the acknowledged receipts in order.
func (q *Queue) Deleted() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.deleted...)
}

// Len reports the number of queued messages.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
