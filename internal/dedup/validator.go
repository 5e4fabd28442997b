// Package dedup filters submitted queries against prior and in-flight work.
// Both checks are advisory filters applied before admission, not database
// constraints: submissions racing past them concurrently cause at worst a
// redundant scrape, never corruption, since merging is idempotent.
package dedup

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

// Validator runs the historical and active-conflict query checks.
type Validator struct {
	log       *zap.Logger
	jobs      leads.JobStore
	schedules leads.ScheduleStore
}

// NewValidator constructs a Validator.
func NewValidator(log *zap.Logger, jobs leads.JobStore, schedules leads.ScheduleStore) *Validator {
	return &Validator{log: log, jobs: jobs, schedules: schedules}
}

// NormalizeQueries lower-cases and trims each query and drops duplicates
// within the input itself, preserving first-seen order.
func NormalizeQueries(queries []string) []string {
	seen := make(map[string]struct{}, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.ToLower(strings.TrimSpace(q))
		if q == "" {
			continue
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}

// FilterHistorical drops queries already covered by a completed or running
// job for the same provider. Returns the surviving subset and skip count.
func (v *Validator) FilterHistorical(ctx context.Context, queries []string, provider leads.ProviderType) ([]string, int, error) {
	queries = NormalizeQueries(queries)

	prior, err := v.jobs.ListJobs(ctx, leads.JobFilter{
		Statuses: []leads.JobStatus{leads.JobStatusCompleted, leads.JobStatusRunning},
		Provider: provider,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list prior jobs: %w", err)
	}

	covered := make(map[string]struct{})
	for _, job := range prior {
		for _, q := range job.Queries {
			covered[strings.ToLower(strings.TrimSpace(q))] = struct{}{}
		}
	}

	out := make([]string, 0, len(queries))
	skipped := 0
	for _, q := range queries {
		if _, dup := covered[q]; dup {
			skipped++
			continue
		}
		out = append(out, q)
	}
	if skipped > 0 {
		v.log.Info("historical dedup dropped queries",
			zap.Int("skipped", skipped),
			zap.String("provider", string(provider)))
	}
	return out, skipped, nil
}

// FilterActiveConflicts drops queries currently claimed by a pending or
// running job, or by an active schedule other than excludeScheduleID (so a
// firing schedule does not conflict with its own registration). It returns
// the survivors, the conflict count, and the literal conflicting strings for
// user-facing messaging.
func (v *Validator) FilterActiveConflicts(ctx context.Context, queries []string, excludeScheduleID string) ([]string, int, []string, error) {
	queries = NormalizeQueries(queries)

	active, err := v.jobs.ListJobs(ctx, leads.JobFilter{
		Statuses: []leads.JobStatus{leads.JobStatusPending, leads.JobStatusRunning},
	})
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to list active jobs: %w", err)
	}
	claimed := make(map[string]struct{})
	for _, job := range active {
		for _, q := range job.Queries {
			claimed[strings.ToLower(strings.TrimSpace(q))] = struct{}{}
		}
	}

	scheds, err := v.schedules.ListSchedules(ctx, true)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to list active schedules: %w", err)
	}
	for _, s := range scheds {
		if s.ID == excludeScheduleID && excludeScheduleID != "" {
			continue
		}
		for _, q := range s.Queries {
			claimed[strings.ToLower(strings.TrimSpace(q))] = struct{}{}
		}
	}

	out := make([]string, 0, len(queries))
	var conflicts []string
	for _, q := range queries {
		if _, dup := claimed[q]; dup {
			conflicts = append(conflicts, q)
			continue
		}
		out = append(out, q)
	}
	if len(conflicts) > 0 {
		v.log.Info("active-conflict dedup dropped queries", zap.Strings("conflicts", conflicts))
	}
	return out, len(conflicts), conflicts, nil
}
