// Package memory contains an in-memory publisher for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

// Publisher stores published batches for inspection.
type Publisher struct {
	mu      sync.RWMutex
	batches [][]crawler.OutboundMessage
	err     error
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// FailWith makes every subsequent publish return err.
func (p *Publisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// PublishBatch records a copy of the batch.
func (p *Publisher) PublishBatch(_ context.Context, msgs []crawler.OutboundMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if len(msgs) > crawler.MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds limit of %d", len(msgs), crawler.MaxBatchSize)
	}
	p.batches = append(p.batches, append([]crawler.OutboundMessage(nil), msgs...))
	return nil
}

// Batches returns the recorded batches.
func (p *Publisher) Batches() [][]crawler.OutboundMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([][]crawler.OutboundMessage, len(p.batches))
	copy(out, p.batches)
	return out
}

// Messages returns every recorded message in publish order.
func (p *Publisher) Messages() []crawler.OutboundMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []crawler.OutboundMessage
	for _, b := range p.batches {
		out = append(out, b...)
	}
	return out
}
