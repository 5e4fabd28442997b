package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/storage/memory"
)

func TestNormalizeQueries(t *testing.T) {
	t.Parallel()

	out := NormalizeQueries([]string{"  Plumbers in Austin ", "plumbers in austin", "", "Cafes"})
	require.Equal(t, []string{"plumbers in austin", "cafes"}, out)
}

func newValidator(t *testing.T) (*Validator, *memory.JobStore, *memory.ScheduleStore) {
	t.Helper()
	jobs := memory.NewJobStore()
	schedules := memory.NewScheduleStore()
	return NewValidator(zap.NewNop(), jobs, schedules), jobs, schedules
}

func TestFilterHistorical(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	v, jobs, _ := newValidator(t)
	require.NoError(t, jobs.CreateJob(ctx, leads.Job{
		ID:       "done",
		Status:   leads.JobStatusCompleted,
		Queries:  []string{"Plumbers in Austin"},
		Provider: leads.ProviderBrowser,
	}))
	require.NoError(t, jobs.CreateJob(ctx, leads.Job{
		ID:       "failed",
		Status:   leads.JobStatusFailed,
		Queries:  []string{"cafes in portland"},
		Provider: leads.ProviderBrowser,
	}))

	out, skipped, err := v.FilterHistorical(ctx, []string{"plumbers in AUSTIN", "cafes in portland", "dentists"}, leads.ProviderBrowser)
	require.NoError(t, err)
	require.Equal(t, 1, skipped, "failed jobs do not count as historical coverage")
	require.Equal(t, []string{"cafes in portland", "dentists"}, out)
}

func TestFilterHistorical_ScopedToProvider(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	v, jobs, _ := newValidator(t)
	require.NoError(t, jobs.CreateJob(ctx, leads.Job{
		ID:       "done",
		Status:   leads.JobStatusCompleted,
		Queries:  []string{"plumbers in austin"},
		Provider: leads.ProviderPlaces,
	}))

	out, skipped, err := v.FilterHistorical(ctx, []string{"plumbers in austin"}, leads.ProviderBrowser)
	require.NoError(t, err)
	require.Zero(t, skipped, "other provider's history does not apply")
	require.Len(t, out, 1)
}

func TestFilterActiveConflicts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	v, jobs, schedules := newValidator(t)
	require.NoError(t, jobs.CreateJob(ctx, leads.Job{
		ID:       "inflight",
		Status:   leads.JobStatusPending,
		Queries:  []string{"plumbers in austin"},
		Provider: leads.ProviderBrowser,
	}))
	require.NoError(t, schedules.CreateSchedule(ctx, leads.Schedule{
		ID:        "s1",
		Kind:      leads.ScheduleRecurring,
		Active:    true,
		Queries:   []string{"Cafes in Portland"},
		CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, schedules.CreateSchedule(ctx, leads.Schedule{
		ID:        "s2",
		Kind:      leads.ScheduleRecurring,
		Active:    false,
		Queries:   []string{"dentists in denver"},
		CreatedAt: time.Now().UTC(),
	}))

	out, count, conflicts, err := v.FilterActiveConflicts(ctx, []string{
		"plumbers in austin", "cafes in portland", "dentists in denver",
	}, "")
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, []string{"plumbers in austin", "cafes in portland"}, conflicts)
	require.Equal(t, []string{"dentists in denver"}, out, "inactive schedules do not conflict")
}

func TestFilterActiveConflicts_ExcludesOwnSchedule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	v, _, schedules := newValidator(t)
	require.NoError(t, schedules.CreateSchedule(ctx, leads.Schedule{
		ID:        "self",
		Kind:      leads.ScheduleRecurring,
		Active:    true,
		Queries:   []string{"plumbers in austin"},
		CreatedAt: time.Now().UTC(),
	}))

	out, count, _, err := v.FilterActiveConflicts(ctx, []string{"plumbers in austin"}, "self")
	require.NoError(t, err)
	require.Zero(t, count, "a schedule does not conflict with itself")
	require.Len(t, out, 1)
}

func TestFilterActiveConflicts_AllFiltered(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	v, jobs, _ := newValidator(t)
	require.NoError(t, jobs.CreateJob(ctx, leads.Job{
		ID:       "inflight",
		Status:   leads.JobStatusRunning,
		Queries:  []string{"plumbers in austin"},
		Provider: leads.ProviderBrowser,
	}))

	out, count, conflicts, err := v.FilterActiveConflicts(ctx, []string{"PLUMBERS IN AUSTIN", "plumbers in austin"}, "")
	require.NoError(t, err)
	require.Empty(t, out)
	require.Equal(t, 1, count, "input self-dedups before checking")
	require.Len(t, conflicts, 1)
}
