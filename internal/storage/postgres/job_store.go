package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

const jobColumns = `id, status, queries, provider, config, trigger_source, schedule_id,
owner_id, skipped_queries, created_at, started_at, finished_at, error_text, counters`

// JobStore persists jobs in the jobs table. Lifecycle transitions are
// conditional updates so a transition can happen at most once even with
// concurrent claimers.
type JobStore struct {
	db dbConn
}

// NewJobStore creates a Postgres-backed JobStore.
func NewJobStore(db dbConn) *JobStore {
	return &JobStore{db: db}
}

// Close releases the underlying pool.
func (s *JobStore) Close() {
	if s != nil && s.db != nil {
		s.db.Close()
	}
}

// CreateJob inserts a job row.
func (s *JobStore) CreateJob(ctx context.Context, job leads.Job) error {
	config, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("marshal job config: %w", err)
	}
	counters, err := json.Marshal(job.Counters)
	if err != nil {
		return fmt.Errorf("marshal job counters: %w", err)
	}
	query := `
INSERT INTO jobs (` + jobColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err = s.db.Exec(ctx, query,
		job.ID, string(job.Status), job.Queries, string(job.Provider), config,
		string(job.Trigger), job.ScheduleID, job.OwnerID, job.SkippedQueries,
		job.CreatedAt, job.StartedAt, job.FinishedAt, job.ErrorText, counters,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (leads.Job, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	return scanJob(row)
}

// ListJobs returns jobs matching the filter, newest first.
func (s *JobStore) ListJobs(ctx context.Context, filter leads.JobFilter) ([]leads.Job, error) {
	var clauses []string
	var args []any
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Provider != "" {
		args = append(args, string(filter.Provider))
		clauses = append(clauses, fmt.Sprintf("provider = $%d", len(args)))
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ListPending returns up to limit pending jobs in strict creation order.
func (s *JobStore) ListPending(ctx context.Context, limit int) ([]leads.Job, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+jobColumns+` FROM jobs WHERE status = 'pending' ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// CountByStatus counts jobs currently in the given status.
func (s *JobStore) CountByStatus(ctx context.Context, status leads.JobStatus) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM jobs WHERE status = $1`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return count, nil
}

// MarkRunning claims a pending job. The WHERE clause makes the transition
// conditional; zero affected rows means another claimer won or the job is
// not pending.
func (s *JobStore) MarkRunning(ctx context.Context, jobID string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE jobs SET status = 'running', started_at = $2 WHERE id = $1 AND status = 'pending'`, jobID, at)
	if err != nil {
		return false, fmt.Errorf("mark job running: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FinishJob transitions a running job to a terminal status.
func (s *JobStore) FinishJob(
	ctx context.Context,
	jobID string,
	status leads.JobStatus,
	errText string,
	counters leads.JobCounters,
	at time.Time,
) error {
	if !status.Terminal() {
		return fmt.Errorf("finish requires a terminal status, got %q", status)
	}
	countersJSON, err := json.Marshal(counters)
	if err != nil {
		return fmt.Errorf("marshal job counters: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
UPDATE jobs SET status = $2, error_text = $3, counters = $4, finished_at = $5
WHERE id = $1 AND status = 'running'`, jobID, string(status), errText, countersJSON, at)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not running", jobID)
	}
	return nil
}

// FailRunning marks every running job failed and returns their IDs.
func (s *JobStore) FailRunning(ctx context.Context, reason string, at time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, `
UPDATE jobs SET status = 'failed', error_text = $1, finished_at = $2
WHERE status = 'running' RETURNING id`, reason, at)
	if err != nil {
		return nil, fmt.Errorf("fail running jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan failed job id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fail running jobs: %w", err)
	}
	return ids, nil
}

func scanJobs(rows pgx.Rows) ([]leads.Job, error) {
	var jobs []leads.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (leads.Job, error) {
	var (
		job          leads.Job
		status       string
		provider     string
		trigger      string
		configJSON   []byte
		countersJSON []byte
	)
	err := row.Scan(
		&job.ID, &status, &job.Queries, &provider, &configJSON,
		&trigger, &job.ScheduleID, &job.OwnerID, &job.SkippedQueries,
		&job.CreatedAt, &job.StartedAt, &job.FinishedAt, &job.ErrorText, &countersJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return leads.Job{}, leads.ErrNotFound
	}
	if err != nil {
		return leads.Job{}, fmt.Errorf("scan job: %w", err)
	}
	job.Status = leads.JobStatus(status)
	job.Provider = leads.ProviderType(provider)
	job.Trigger = leads.TriggerSource(trigger)
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &job.Config); err != nil {
			return leads.Job{}, fmt.Errorf("unmarshal job config: %w", err)
		}
	}
	if len(countersJSON) > 0 {
		if err := json.Unmarshal(countersJSON, &job.Counters); err != nil {
			return leads.Job{}, fmt.Errorf("unmarshal job counters: %w", err)
		}
	}
	return job, nil
}
