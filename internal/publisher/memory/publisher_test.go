package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

func TestPublisherStoresBatches(t *testing.T) {
	t.Parallel()

	pub := New()
	if err := pub.PublishBatch(context.Background(), []crawler.OutboundMessage{{ID: "0"}, {ID: "1"}}); err != nil {
		t.Fatalf("PublishBatch() error = %v", err)
	}
	if err := pub.PublishBatch(context.Background(), []crawler.OutboundMessage{{ID: "2"}}); err != nil {
		t.Fatalf("PublishBatch() error = %v", err)
	}

	if got := len(pub.Batches()); got != 2 {
		t.Fatalf("expected 2 batches, got %d", got)
	}
	msgs := pub.Messages()
	if len(msgs) != 3 || msgs[2].ID != "2" {
		t.Fatalf("messages not recorded in order: %+v", msgs)
	}

	msgs[0].ID = "modified"
	if pub.Messages()[0].ID == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}
}

func TestPublisherRejectsOversizedBatch(t *testing.T) {
	t.Parallel()

	pub := New()
	if err := pub.PublishBatch(context.Background(), make([]crawler.OutboundMessage, 11)); err == nil {
		t.Fatal("expected error for 11 entries")
	}
}

func TestPublisherFailWith(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	pub := New()
	pub.FailWith(boom)
	if err := pub.PublishBatch(context.Background(), []crawler.OutboundMessage{{ID: "0"}}); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if len(pub.Batches()) != 0 {
		t.Fatal("failed publish should not be recorded")
	}
}
