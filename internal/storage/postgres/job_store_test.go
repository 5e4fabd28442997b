package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

func newMockStore(t *testing.T) (*JobStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewJobStore(mock), mock
}

func TestJobStoreCreateJob(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs(pgxmock.AnyArg(), "pending", pgxmock.AnyArg(), "places", pgxmock.AnyArg(),
			"manual", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	job := leads.Job{
		ID:        "job-1",
		Status:    leads.JobStatusPending,
		Queries:   []string{"plumbers in austin"},
		Provider:  leads.ProviderPlaces,
		Trigger:   leads.TriggerManual,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.CreateJob(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreMarkRunningClaimed(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Now()
	mock.ExpectExec(`UPDATE jobs SET status = 'running'`).
		WithArgs("job-1", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	claimed, err := store.MarkRunning(context.Background(), "job-1", now)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreMarkRunningNotPending(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Now()
	mock.ExpectExec(`UPDATE jobs SET status = 'running'`).
		WithArgs("job-1", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	claimed, err := store.MarkRunning(context.Background(), "job-1", now)
	require.NoError(t, err)
	require.False(t, claimed, "a job that is not pending must not be claimed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreFinishJobNotRunning(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Now()
	mock.ExpectExec(`UPDATE jobs SET status = \$2`).
		WithArgs("job-1", "completed", "", pgxmock.AnyArg(), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.FinishJob(context.Background(), "job-1", leads.JobStatusCompleted, "", leads.JobCounters{}, now)
	require.ErrorContains(t, err, "is not running")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreFinishJobRejectsNonTerminal(t *testing.T) {
	t.Parallel()

	store, _ := newMockStore(t)
	err := store.FinishJob(context.Background(), "job-1", leads.JobStatusRunning, "", leads.JobCounters{}, time.Now())
	require.ErrorContains(t, err, "terminal")
}

func TestJobStoreListPending(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "status", "queries", "provider", "config", "trigger_source", "schedule_id",
		"owner_id", "skipped_queries", "created_at", "started_at", "finished_at", "error_text", "counters",
	}).
		AddRow("job-1", "pending", []string{"a"}, "places", []byte(`{}`), "manual", "",
			"", 0, now, (*time.Time)(nil), (*time.Time)(nil), "", []byte(`{}`)).
		AddRow("job-2", "pending", []string{"b"}, "browser", []byte(`{}`), "scheduled", "sched-1",
			"", 2, now.Add(time.Second), (*time.Time)(nil), (*time.Time)(nil), "", []byte(`{}`))
	mock.ExpectQuery(`FROM jobs WHERE status = 'pending' ORDER BY created_at ASC`).
		WithArgs(5).
		WillReturnRows(rows)

	jobs, err := store.ListPending(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, "job-1", jobs[0].ID)
	require.Equal(t, leads.ProviderBrowser, jobs[1].Provider)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreFailRunning(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Now()
	rows := pgxmock.NewRows([]string{"id"}).AddRow("job-1").AddRow("job-2")
	mock.ExpectQuery(`UPDATE jobs SET status = 'failed'`).
		WithArgs("restart", now).
		WillReturnRows(rows)

	ids, err := store.FailRunning(context.Background(), "restart", now)
	require.NoError(t, err)
	require.Equal(t, []string{"job-1", "job-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreGetJobNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM jobs WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(errNoRows())

	_, err := store.GetJob(context.Background(), "missing")
	require.ErrorIs(t, err, leads.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
