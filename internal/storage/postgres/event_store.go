package postgres

import (
	"context"
	"fmt"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/progress/sinks"
)

// JobEventStore appends progress events into the job_events table for the
// store sink.
type JobEventStore struct {
	db dbConn
}

// NewJobEventStore creates a Postgres-backed JobEventStore.
func NewJobEventStore(db dbConn) *JobEventStore {
	return &JobEventStore{db: db}
}

// AppendJobEvents inserts one row per event.
func (s *JobEventStore) AppendJobEvents(ctx context.Context, events []sinks.JobEventRecord) error {
	for _, evt := range events {
		_, err := s.db.Exec(ctx, `
INSERT INTO job_events (job_id, stage, provider, query, items, note, at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			evt.JobID, evt.Stage, evt.Provider, evt.Query, evt.Items, evt.Note, evt.At,
		)
		if err != nil {
			return fmt.Errorf("insert job event: %w", err)
		}
	}
	return nil
}
