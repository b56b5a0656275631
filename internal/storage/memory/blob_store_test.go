package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

func TestBlobStorePutCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore("archive")
	payload := []byte("content")
	info, err := store.Put(context.Background(), crawler.Blob{Key: "pages/abc", Body: payload, MD5: []byte{0xde, 0xad}})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if info.ETag != `"dead"` {
		t.Fatalf("unexpected etag %s", info.ETag)
	}
	payload[0] = 'C'
	stored, ok := store.Get("pages/abc")
	if !ok || string(stored.Body) != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored.Body)
	}
}

func TestBlobStoreHead(t *testing.T) {
	t.Parallel()

	store := NewBlobStore("")
	if store.Bucket() != "memory" {
		t.Fatalf("expected default bucket, got %s", store.Bucket())
	}
	if _, err := store.Head(context.Background(), "missing"); !errors.Is(err, crawler.ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound, got %v", err)
	}
	if _, err := store.Put(context.Background(), crawler.Blob{Key: "k", MD5: []byte{1}}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	info, err := store.Head(context.Background(), "k")
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if info.ETag != `"01"` || store.Puts() != 1 {
		t.Fatalf("unexpected head result %+v after %d puts", info, store.Puts())
	}
	if _, err := store.Put(context.Background(), crawler.Blob{}); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestRecordStoreKeepsOrder(t *testing.T) {
	t.Parallel()

	store := NewRecordStore()
	for _, id := range []string{"a", "b"} {
		if err := store.PutRecord(context.Background(), crawler.ArchivedResponseRecord{RequestID: id}); err != nil {
			t.Fatalf("PutRecord() error = %v", err)
		}
	}
	got := store.Records()
	if len(got) != 2 || got[0].RequestID != "a" || got[1].RequestID != "b" {
		t.Fatalf("unexpected records %+v", got)
	}
}
