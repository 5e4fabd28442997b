package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

// ScheduleStore keeps schedules in memory.
type ScheduleStore struct {
	mu        sync.RWMutex
	schedules map[string]leads.Schedule
}

// NewScheduleStore constructs a ScheduleStore.
func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{schedules: make(map[string]leads.Schedule)}
}

// CreateSchedule stores a new schedule.
func (s *ScheduleStore) CreateSchedule(_ context.Context, sched leads.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.schedules[sched.ID]; exists {
		return errors.New("schedule already exists")
	}
	s.schedules[sched.ID] = sched
	return nil
}

// GetSchedule fetches a schedule by ID.
func (s *ScheduleStore) GetSchedule(_ context.Context, id string) (leads.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sched, ok := s.schedules[id]
	if !ok {
		return leads.Schedule{}, leads.ErrNotFound
	}
	return sched, nil
}

// ListSchedules returns schedules ordered by creation time.
func (s *ScheduleStore) ListSchedules(_ context.Context, activeOnly bool) ([]leads.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]leads.Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		if activeOnly && !sched.Active {
			continue
		}
		out = append(out, sched)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateSchedule replaces an existing schedule.
func (s *ScheduleStore) UpdateSchedule(_ context.Context, sched leads.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[sched.ID]; !ok {
		return leads.ErrNotFound
	}
	s.schedules[sched.ID] = sched
	return nil
}

// DeleteSchedule removes a schedule.
func (s *ScheduleStore) DeleteSchedule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return leads.ErrNotFound
	}
	delete(s.schedules, id)
	return nil
}

// SetActive flips the active flag.
func (s *ScheduleStore) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[id]
	if !ok {
		return leads.ErrNotFound
	}
	sched.Active = active
	sched.UpdatedAt = time.Now().UTC()
	s.schedules[id] = sched
	return nil
}

// TouchLastRun records the last fire time.
func (s *ScheduleStore) TouchLastRun(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[id]
	if !ok {
		return leads.ErrNotFound
	}
	sched.LastRunAt = pointerTime(at)
	s.schedules[id] = sched
	return nil
}
