package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

const scheduleColumns = `id, name, kind, cron_expr, run_at, active, queries, provider,
config, last_run_at, owner_id, created_at, updated_at`

// ScheduleStore persists schedules in the schedules table.
type ScheduleStore struct {
	db dbConn
}

// NewScheduleStore creates a Postgres-backed ScheduleStore.
func NewScheduleStore(db dbConn) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// CreateSchedule inserts a schedule row.
func (s *ScheduleStore) CreateSchedule(ctx context.Context, sched leads.Schedule) error {
	config, err := json.Marshal(sched.Config)
	if err != nil {
		return fmt.Errorf("marshal schedule config: %w", err)
	}
	_, err = s.db.Exec(ctx, `
INSERT INTO schedules (`+scheduleColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		sched.ID, sched.Name, string(sched.Kind), sched.CronExpr, sched.RunAt,
		sched.Active, sched.Queries, string(sched.Provider), config,
		sched.LastRunAt, sched.OwnerID, sched.CreatedAt, sched.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// GetSchedule fetches a schedule by ID.
func (s *ScheduleStore) GetSchedule(ctx context.Context, id string) (leads.Schedule, error) {
	row := s.db.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id)
	return scanSchedule(row)
}

// ListSchedules returns schedules in creation order.
func (s *ScheduleStore) ListSchedules(ctx context.Context, activeOnly bool) ([]leads.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var out []leads.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sched)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return out, nil
}

// UpdateSchedule replaces an existing schedule row.
func (s *ScheduleStore) UpdateSchedule(ctx context.Context, sched leads.Schedule) error {
	config, err := json.Marshal(sched.Config)
	if err != nil {
		return fmt.Errorf("marshal schedule config: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
UPDATE schedules SET name = $2, kind = $3, cron_expr = $4, run_at = $5, active = $6,
queries = $7, provider = $8, config = $9, updated_at = $10
WHERE id = $1`,
		sched.ID, sched.Name, string(sched.Kind), sched.CronExpr, sched.RunAt,
		sched.Active, sched.Queries, string(sched.Provider), config, sched.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return leads.ErrNotFound
	}
	return nil
}

// DeleteSchedule removes a schedule row.
func (s *ScheduleStore) DeleteSchedule(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return leads.ErrNotFound
	}
	return nil
}

// SetActive flips the active flag.
func (s *ScheduleStore) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := s.db.Exec(ctx, `
UPDATE schedules SET active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set schedule active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return leads.ErrNotFound
	}
	return nil
}

// TouchLastRun records the last fire time.
func (s *ScheduleStore) TouchLastRun(ctx context.Context, id string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE schedules SET last_run_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch schedule last run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return leads.ErrNotFound
	}
	return nil
}

func scanSchedule(row pgx.Row) (leads.Schedule, error) {
	var (
		sched      leads.Schedule
		kind       string
		provider   string
		configJSON []byte
	)
	err := row.Scan(
		&sched.ID, &sched.Name, &kind, &sched.CronExpr, &sched.RunAt,
		&sched.Active, &sched.Queries, &provider, &configJSON,
		&sched.LastRunAt, &sched.OwnerID, &sched.CreatedAt, &sched.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return leads.Schedule{}, leads.ErrNotFound
	}
	if err != nil {
		return leads.Schedule{}, fmt.Errorf("scan schedule: %w", err)
	}
	sched.Kind = leads.ScheduleKind(kind)
	sched.Provider = leads.ProviderType(provider)
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &sched.Config); err != nil {
			return leads.Schedule{}, fmt.Errorf("unmarshal schedule config: %w", err)
		}
	}
	return sched, nil
}
