// Package memory provides in-memory store implementations for development and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

// JobStore keeps jobs in a map guarded by a RWMutex.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]leads.Job
	seq  map[string]int
	next int
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]leads.Job),
		seq:  make(map[string]int),
	}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job leads.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	s.seq[job.ID] = s.next
	s.next++
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (leads.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return leads.Job{}, leads.ErrNotFound
	}
	return job, nil
}

// ListJobs returns jobs matching the filter, newest first.
func (s *JobStore) ListJobs(_ context.Context, filter leads.JobFilter) ([]leads.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]leads.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if !matchesFilter(job, filter) {
			continue
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ListPending returns pending jobs in creation order, oldest first.
func (s *JobStore) ListPending(_ context.Context, limit int) ([]leads.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]leads.Job, 0, limit)
	for _, job := range s.jobs {
		if job.Status == leads.JobStatusPending {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.seq[out[i].ID] < s.seq[out[j].ID]
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountByStatus counts jobs currently in the given status.
func (s *JobStore) CountByStatus(_ context.Context, status leads.JobStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, job := range s.jobs {
		if job.Status == status {
			count++
		}
	}
	return count, nil
}

// MarkRunning transitions a job from pending to running. It reports false
// without error when the job is no longer pending, so two admitters cannot
// both claim the same job.
func (s *JobStore) MarkRunning(_ context.Context, jobID string, startedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return false, leads.ErrNotFound
	}
	if job.Status != leads.JobStatusPending {
		return false, nil
	}
	job.Status = leads.JobStatusRunning
	job.StartedAt = pointerTime(startedAt)
	s.jobs[jobID] = job
	return true, nil
}

// FinishJob transitions a running job to a terminal status.
func (s *JobStore) FinishJob(
	_ context.Context,
	jobID string,
	status leads.JobStatus,
	errText string,
	counters leads.JobCounters,
	finishedAt time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return leads.ErrNotFound
	}
	if job.Status != leads.JobStatusRunning {
		return errors.New("job is not running")
	}
	if !status.Terminal() {
		return errors.New("finish requires a terminal status")
	}
	job.Status = status
	job.ErrorText = errText
	job.Counters = counters
	job.FinishedAt = pointerTime(finishedAt)
	s.jobs[jobID] = job
	return nil
}

// FailRunning marks every running job failed with the given reason. It is used
// on startup to clear jobs orphaned by a crash, and returns their IDs.
func (s *JobStore) FailRunning(_ context.Context, reason string, at time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, job := range s.jobs {
		if job.Status != leads.JobStatusRunning {
			continue
		}
		job.Status = leads.JobStatusFailed
		job.ErrorText = reason
		job.FinishedAt = pointerTime(at)
		s.jobs[id] = job
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func matchesFilter(job leads.Job, filter leads.JobFilter) bool {
	if filter.Provider != "" && job.Provider != filter.Provider {
		return false
	}
	if len(filter.Statuses) == 0 {
		return true
	}
	for _, status := range filter.Statuses {
		if job.Status == status {
			return true
		}
	}
	return false
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
