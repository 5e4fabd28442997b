package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

// RawRecordStore persists immutable provenance rows in the raw_records
// table. Rows are never updated or deleted.
type RawRecordStore struct {
	db dbConn
}

// NewRawRecordStore creates a Postgres-backed RawRecordStore.
func NewRawRecordStore(db dbConn) *RawRecordStore {
	return &RawRecordStore{db: db}
}

// FindByPlaceAndJob returns the first record for the (place, job) pair.
func (s *RawRecordStore) FindByPlaceAndJob(ctx context.Context, placeID, jobID string) (leads.RawRecord, error) {
	var (
		r        leads.RawRecord
		provider string
	)
	err := s.db.QueryRow(ctx, `
SELECT id, place_id, provider, job_id, query, payload, hash, created_at
FROM raw_records WHERE place_id = $1 AND job_id = $2 LIMIT 1`, placeID, jobID).Scan(
		&r.ID, &r.PlaceID, &provider, &r.JobID, &r.Query, &r.Payload, &r.Hash, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return leads.RawRecord{}, leads.ErrNotFound
	}
	if err != nil {
		return leads.RawRecord{}, fmt.Errorf("find raw record: %w", err)
	}
	r.Provider = leads.ProviderType(provider)
	return r, nil
}

// Insert appends a raw record row.
func (s *RawRecordStore) Insert(ctx context.Context, r leads.RawRecord) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO raw_records (id, place_id, provider, job_id, query, payload, hash, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		r.ID, r.PlaceID, string(r.Provider), r.JobID, r.Query, []byte(r.Payload), r.Hash, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert raw record: %w", err)
	}
	return nil
}
