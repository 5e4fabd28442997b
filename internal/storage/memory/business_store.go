package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

// BusinessStore keeps canonical businesses in memory, keyed by place ID.
type BusinessStore struct {
	mu      sync.RWMutex
	byPlace map[string]leads.Business
	seq     map[string]int
	next    int
}

// NewBusinessStore constructs a BusinessStore.
func NewBusinessStore() *BusinessStore {
	return &BusinessStore{
		byPlace: make(map[string]leads.Business),
		seq:     make(map[string]int),
	}
}

// GetByPlaceID fetches a business by its provider place ID.
func (s *BusinessStore) GetByPlaceID(_ context.Context, placeID string) (leads.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.byPlace[placeID]
	if !ok {
		return leads.Business{}, leads.ErrNotFound
	}
	return b, nil
}

// Insert stores a new business.
func (s *BusinessStore) Insert(_ context.Context, b leads.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byPlace[b.PlaceID]; exists {
		return errors.New("business already exists")
	}
	s.byPlace[b.PlaceID] = b
	s.seq[b.PlaceID] = s.next
	s.next++
	return nil
}

// Update replaces an existing business.
func (s *BusinessStore) Update(_ context.Context, b leads.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPlace[b.PlaceID]; !ok {
		return leads.ErrNotFound
	}
	s.byPlace[b.PlaceID] = b
	return nil
}

// List returns businesses in insertion order with limit/offset paging.
func (s *BusinessStore) List(_ context.Context, limit, offset int) ([]leads.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]leads.Business, 0, len(s.byPlace))
	for _, b := range s.byPlace {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return s.seq[out[i].PlaceID] < s.seq[out[j].PlaceID]
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
