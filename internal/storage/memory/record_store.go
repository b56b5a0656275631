package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

// RecordStore appends archived response records to a slice.
type RecordStore struct {
	mu      sync.RWMutex
	records []crawler.ArchivedResponseRecord
}

// NewRecordStore constructs a RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{}
}

// PutRecord stores the record.
func (s *RecordStore) PutRecord(_ context.Context, record crawler.ArchivedResponseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// Records returns the stored records in write order.
func (s *RecordStore) Records() []crawler.ArchivedResponseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.ArchivedResponseRecord, len(s.records))
	copy(out, s.records)
	return out
}
