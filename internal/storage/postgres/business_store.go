package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

const businessColumns = `id, place_id, name, category, phone, website, emails, address,
street, city, state, postal_code, country, latitude, longitude, rating, review_count,
images, status, lineage, provenance, owner_id, first_seen, updated_at`

// BusinessStore persists canonical entities in the businesses table, keyed
// by the provider place ID.
type BusinessStore struct {
	db dbConn
}

// NewBusinessStore creates a Postgres-backed BusinessStore.
func NewBusinessStore(db dbConn) *BusinessStore {
	return &BusinessStore{db: db}
}

// GetByPlaceID fetches a business by its place ID.
func (s *BusinessStore) GetByPlaceID(ctx context.Context, placeID string) (leads.Business, error) {
	row := s.db.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE place_id = $1`, placeID)
	return scanBusiness(row)
}

// Insert stores a new business.
func (s *BusinessStore) Insert(ctx context.Context, b leads.Business) error {
	lineage, provenance, err := marshalBusinessJSON(b)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
INSERT INTO businesses (`+businessColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
		b.ID, b.PlaceID, b.Name, b.Category, b.Phone, b.Website, b.Emails, b.Address,
		b.Street, b.City, b.State, b.PostalCode, b.Country, b.Latitude, b.Longitude,
		b.Rating, b.ReviewCount, b.Images, b.Status, lineage, provenance,
		b.OwnerID, b.FirstSeen, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert business: %w", err)
	}
	return nil
}

// Update replaces an existing business row.
func (s *BusinessStore) Update(ctx context.Context, b leads.Business) error {
	lineage, provenance, err := marshalBusinessJSON(b)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
UPDATE businesses SET name = $2, category = $3, phone = $4, website = $5, emails = $6,
address = $7, street = $8, city = $9, state = $10, postal_code = $11, country = $12,
latitude = $13, longitude = $14, rating = $15, review_count = $16, images = $17,
status = $18, lineage = $19, provenance = $20, updated_at = $21
WHERE place_id = $1`,
		b.PlaceID, b.Name, b.Category, b.Phone, b.Website, b.Emails,
		b.Address, b.Street, b.City, b.State, b.PostalCode, b.Country,
		b.Latitude, b.Longitude, b.Rating, b.ReviewCount, b.Images,
		b.Status, lineage, provenance, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update business: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return leads.ErrNotFound
	}
	return nil
}

// List returns businesses in first-seen order with limit/offset paging.
func (s *BusinessStore) List(ctx context.Context, limit, offset int) ([]leads.Business, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+businessColumns+` FROM businesses ORDER BY first_seen ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	defer rows.Close()

	var out []leads.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate businesses: %w", err)
	}
	return out, nil
}

func marshalBusinessJSON(b leads.Business) ([]byte, []byte, error) {
	lineage, err := json.Marshal(b.Lineage)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal lineage: %w", err)
	}
	provenance, err := json.Marshal(b.Provenance)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal provenance: %w", err)
	}
	return lineage, provenance, nil
}

func scanBusiness(row pgx.Row) (leads.Business, error) {
	var (
		b              leads.Business
		lineageJSON    []byte
		provenanceJSON []byte
	)
	err := row.Scan(
		&b.ID, &b.PlaceID, &b.Name, &b.Category, &b.Phone, &b.Website, &b.Emails,
		&b.Address, &b.Street, &b.City, &b.State, &b.PostalCode, &b.Country,
		&b.Latitude, &b.Longitude, &b.Rating, &b.ReviewCount, &b.Images,
		&b.Status, &lineageJSON, &provenanceJSON, &b.OwnerID, &b.FirstSeen, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return leads.Business{}, leads.ErrNotFound
	}
	if err != nil {
		return leads.Business{}, fmt.Errorf("scan business: %w", err)
	}
	if len(lineageJSON) > 0 {
		if err := json.Unmarshal(lineageJSON, &b.Lineage); err != nil {
			return leads.Business{}, fmt.Errorf("unmarshal lineage: %w", err)
		}
	}
	if len(provenanceJSON) > 0 {
		if err := json.Unmarshal(provenanceJSON, &b.Provenance); err != nil {
			return leads.Business{}, fmt.Errorf("unmarshal provenance: %w", err)
		}
	}
	return b, nil
}
