package merge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

// Outcome classifies the result of one item upsert.
type Outcome string

// Upsert outcomes aggregated into job counters.
const (
	OutcomeNew     Outcome = "new"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
)

// Hasher fingerprints raw payloads for the provenance store.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// BatchMeta tags every item in a batch with its originating job.
type BatchMeta struct {
	JobID    string
	Provider leads.ProviderType
	Query    string
	OwnerID  string
}

// Engine merges provider-raw items into the canonical business store.
type Engine struct {
	log        *zap.Logger
	businesses leads.BusinessStore
	raws       leads.RawRecordStore
	ids        leads.IDGenerator
	clock      leads.Clock
	hasher     Hasher
}

// NewEngine constructs a merge engine.
func NewEngine(
	log *zap.Logger,
	businesses leads.BusinessStore,
	raws leads.RawRecordStore,
	ids leads.IDGenerator,
	clock leads.Clock,
	hasher Hasher,
) *Engine {
	return &Engine{
		log:        log,
		businesses: businesses,
		raws:       raws,
		ids:        ids,
		clock:      clock,
		hasher:     hasher,
	}
}

// ProcessFile parses a raw output artifact and upserts every item. A failure
// on one item is logged and counted; it never aborts the rest of the batch.
// Only a missing or undecodable artifact fails the whole call. Sections that
// name their originating query override meta.Query for the items they hold,
// so provenance records the exact query even on multi-query jobs.
func (e *Engine) ProcessFile(ctx context.Context, path string, meta BatchMeta) (leads.JobCounters, error) {
	sections, err := ParseFile(path)
	if err != nil {
		return leads.JobCounters{}, err
	}
	var counters leads.JobCounters
	for _, sec := range sections {
		secMeta := meta
		if sec.Query != "" {
			secMeta.Query = sec.Query
		}
		counters.Add(e.ProcessBatch(ctx, sec.Items, secMeta))
	}
	return counters, nil
}

// ProcessBatch upserts every item and returns aggregate counters.
func (e *Engine) ProcessBatch(ctx context.Context, items []json.RawMessage, meta BatchMeta) leads.JobCounters {
	counters := leads.JobCounters{Total: len(items)}
	for i, item := range items {
		outcome, _, err := e.upsertRecovering(ctx, item, meta)
		if err != nil {
			counters.Errors++
			e.log.Warn("merge item failed",
				zap.String("job_id", meta.JobID),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		switch outcome {
		case OutcomeNew:
			counters.New++
		case OutcomeUpdated:
			counters.Updated++
		case OutcomeSkipped:
			counters.Skipped++
		}
	}
	return counters
}

// upsertRecovering shields the batch loop from panics in a single item.
func (e *Engine) upsertRecovering(ctx context.Context, item json.RawMessage, meta BatchMeta) (outcome Outcome, placeID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while merging item: %v", r)
		}
	}()
	return e.UpsertItem(ctx, item, meta)
}

// UpsertItem merges one raw item into the canonical store.
//
// Items without an identifier, and items that carry none of phone, website,
// or emails after normalization, are skipped and never persisted. Viable
// items are recorded verbatim in the provenance store (lookup-then-create,
// duplicates are harmless), then either inserted as a new entity or merged
// into the existing one under the fill-gaps rule.
func (e *Engine) UpsertItem(ctx context.Context, item json.RawMessage, meta BatchMeta) (Outcome, string, error) {
	var decoded map[string]any
	if err := json.Unmarshal(item, &decoded); err != nil {
		return "", "", fmt.Errorf("failed to decode raw item: %w", err)
	}

	placeID := ExtractPlaceID(decoded)
	if placeID == "" {
		e.log.Debug("raw item has no identifier, skipping", zap.String("job_id", meta.JobID))
		return OutcomeSkipped, "", nil
	}

	incoming := Normalize(decoded)
	if !incoming.Contactable() {
		e.log.Debug("raw item has no contact signal, skipping",
			zap.String("place_id", placeID),
			zap.String("job_id", meta.JobID))
		return OutcomeSkipped, placeID, nil
	}

	rawID, err := e.recordProvenance(ctx, placeID, item, meta)
	if err != nil {
		// Provenance writes are best-effort; the canonical merge proceeds.
		e.log.Warn("failed to persist raw record",
			zap.String("place_id", placeID),
			zap.String("job_id", meta.JobID),
			zap.Error(err))
	}
	ref := leads.ProvenanceRef{
		RawID:    rawID,
		JobID:    meta.JobID,
		Provider: meta.Provider,
		Query:    meta.Query,
		At:       e.clock.Now(),
	}

	existing, err := e.businesses.GetByPlaceID(ctx, placeID)
	switch {
	case errors.Is(err, leads.ErrNotFound):
		return e.insertNew(ctx, incoming, ref, meta)
	case err != nil:
		return "", placeID, fmt.Errorf("failed to look up business %s: %w", placeID, err)
	}
	return e.mergeExisting(ctx, existing, incoming, ref, meta)
}

func (e *Engine) insertNew(ctx context.Context, b leads.Business, ref leads.ProvenanceRef, meta BatchMeta) (Outcome, string, error) {
	id, err := e.ids.NewID()
	if err != nil {
		return "", b.PlaceID, fmt.Errorf("failed to generate business id: %w", err)
	}
	now := e.clock.Now()
	b.ID = id
	if b.Status == "" {
		b.Status = leads.BusinessStatusNew
	}
	b.Lineage = []leads.ProviderType{meta.Provider}
	b.Provenance = []leads.ProvenanceRef{ref}
	b.OwnerID = meta.OwnerID
	b.FirstSeen = now
	b.UpdatedAt = now
	if err := e.businesses.Insert(ctx, b); err != nil {
		return "", b.PlaceID, fmt.Errorf("failed to insert business %s: %w", b.PlaceID, err)
	}
	return OutcomeNew, b.PlaceID, nil
}

// mergeExisting applies the fill-gaps rule: scalar fields only adopt the
// incoming value when the existing one is empty, list fields union as
// deduplicated sets. Every contribution appends a provenance reference even
// when no visible field changes.
func (e *Engine) mergeExisting(ctx context.Context, existing, incoming leads.Business, ref leads.ProvenanceRef, meta BatchMeta) (Outcome, string, error) {
	changed := false

	fillString(&existing.Name, incoming.Name, &changed)
	fillString(&existing.Category, incoming.Category, &changed)
	fillString(&existing.Phone, incoming.Phone, &changed)
	fillString(&existing.Website, incoming.Website, &changed)
	fillString(&existing.Address, incoming.Address, &changed)
	fillString(&existing.Street, incoming.Street, &changed)
	fillString(&existing.City, incoming.City, &changed)
	fillString(&existing.State, incoming.State, &changed)
	fillString(&existing.PostalCode, incoming.PostalCode, &changed)
	fillString(&existing.Country, incoming.Country, &changed)
	fillFloat(&existing.Latitude, incoming.Latitude, &changed)
	fillFloat(&existing.Longitude, incoming.Longitude, &changed)
	fillFloat(&existing.Rating, incoming.Rating, &changed)
	if existing.ReviewCount == 0 && incoming.ReviewCount != 0 {
		existing.ReviewCount = incoming.ReviewCount
		changed = true
	}

	existing.Emails = unionStrings(existing.Emails, incoming.Emails, &changed)
	existing.Images = unionStrings(existing.Images, incoming.Images, &changed)

	if existing.Status == "" {
		existing.Status = leads.BusinessStatusNew
		changed = true
	}
	if !containsProvider(existing.Lineage, meta.Provider) {
		existing.Lineage = append(existing.Lineage, meta.Provider)
		changed = true
	}

	existing.Provenance = append(existing.Provenance, ref)
	if changed {
		existing.UpdatedAt = e.clock.Now()
	}
	if err := e.businesses.Update(ctx, existing); err != nil {
		return "", existing.PlaceID, fmt.Errorf("failed to update business %s: %w", existing.PlaceID, err)
	}
	if changed {
		return OutcomeUpdated, existing.PlaceID, nil
	}
	return OutcomeSkipped, existing.PlaceID, nil
}

// recordProvenance looks up an existing raw record for the (place, job) pair
// and creates one if absent. Returns the raw record ID.
func (e *Engine) recordProvenance(ctx context.Context, placeID string, payload json.RawMessage, meta BatchMeta) (string, error) {
	found, err := e.raws.FindByPlaceAndJob(ctx, placeID, meta.JobID)
	if err == nil {
		return found.ID, nil
	}
	if !errors.Is(err, leads.ErrNotFound) {
		return "", err
	}

	id, err := e.ids.NewID()
	if err != nil {
		return "", err
	}
	hash, err := e.hasher.Hash(payload)
	if err != nil {
		return "", err
	}
	record := leads.RawRecord{
		ID:        id,
		PlaceID:   placeID,
		Provider:  meta.Provider,
		JobID:     meta.JobID,
		Query:     meta.Query,
		Payload:   append(json.RawMessage(nil), payload...),
		Hash:      hash,
		CreatedAt: e.clock.Now(),
	}
	if err := e.raws.Insert(ctx, record); err != nil {
		return "", err
	}
	return id, nil
}

func fillString(dst *string, src string, changed *bool) {
	if *dst == "" && src != "" {
		*dst = src
		*changed = true
	}
}

func fillFloat(dst *float64, src float64, changed *bool) {
	if *dst == 0 && src != 0 {
		*dst = src
		*changed = true
	}
}

// unionStrings appends incoming values absent from existing, preserving
// existing order first. The result set is the same regardless of merge order.
func unionStrings(existing, incoming []string, changed *bool) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		seen[v] = struct{}{}
	}
	for _, v := range incoming {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		existing = append(existing, v)
		*changed = true
	}
	return existing
}

func containsProvider(lineage []leads.ProviderType, p leads.ProviderType) bool {
	for _, l := range lineage {
		if l == p {
			return true
		}
	}
	return false
}
