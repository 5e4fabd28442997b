package memory

import (
	"context"
	"sync"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

// SettingsStore keeps the single settings record in memory.
type SettingsStore struct {
	mu       sync.RWMutex
	settings leads.Settings
}

// NewSettingsStore constructs a SettingsStore seeded with the given settings.
func NewSettingsStore(initial leads.Settings) *SettingsStore {
	return &SettingsStore{settings: initial}
}

// Get returns the current settings.
func (s *SettingsStore) Get(_ context.Context) (leads.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

// Update replaces the settings record.
func (s *SettingsStore) Update(_ context.Context, settings leads.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

// UpdateQuota persists call-count and reset-date in one step.
func (s *SettingsStore) UpdateQuota(_ context.Context, q leads.QuotaCounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Quota = q
	return nil
}
