package memory

import (
	"context"
	"sync"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

// RawRecordStore keeps immutable provenance records in memory.
type RawRecordStore struct {
	mu      sync.RWMutex
	records []leads.RawRecord
}

// NewRawRecordStore constructs a RawRecordStore.
func NewRawRecordStore() *RawRecordStore {
	return &RawRecordStore{}
}

// FindByPlaceAndJob returns the first record matching the pair.
func (s *RawRecordStore) FindByPlaceAndJob(_ context.Context, placeID, jobID string) (leads.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.PlaceID == placeID && r.JobID == jobID {
			return r, nil
		}
	}
	return leads.RawRecord{}, leads.ErrNotFound
}

// Insert appends a record.
func (s *RawRecordStore) Insert(_ context.Context, r leads.RawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}
