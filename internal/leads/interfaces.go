package leads

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound signals that a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// JobStore persists job metadata and lifecycle transitions.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]Job, error)
	// ListPending returns up to limit pending jobs in strict creation order.
	ListPending(ctx context.Context, limit int) ([]Job, error)
	CountByStatus(ctx context.Context, status JobStatus) (int, error)
	// MarkRunning transitions pending→running. It reports false when the job
	// is no longer pending, so the transition happens at most once.
	MarkRunning(ctx context.Context, jobID string, at time.Time) (bool, error)
	// FinishJob transitions running→completed/failed exactly once.
	FinishJob(ctx context.Context, jobID string, status JobStatus, errText string, counters JobCounters, at time.Time) error
	// FailRunning marks every running job failed. Called at startup to clear
	// jobs orphaned by a crash; returns the affected job IDs.
	FailRunning(ctx context.Context, reason string, at time.Time) ([]string, error)
}

// ScheduleStore persists schedule definitions.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, s Schedule) error
	GetSchedule(ctx context.Context, id string) (Schedule, error)
	ListSchedules(ctx context.Context, activeOnly bool) ([]Schedule, error)
	UpdateSchedule(ctx context.Context, s Schedule) error
	DeleteSchedule(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
	TouchLastRun(ctx context.Context, id string, at time.Time) error
}

// BusinessStore persists canonical entities.
type BusinessStore interface {
	GetByPlaceID(ctx context.Context, placeID string) (Business, error)
	Insert(ctx context.Context, b Business) error
	Update(ctx context.Context, b Business) error
	List(ctx context.Context, limit, offset int) ([]Business, error)
}

// RawRecordStore persists immutable provenance records.
type RawRecordStore interface {
	// FindByPlaceAndJob supports idempotent best-effort provenance writes:
	// lookup-then-create, not a hard uniqueness constraint.
	FindByPlaceAndJob(ctx context.Context, placeID, jobID string) (RawRecord, error)
	Insert(ctx context.Context, r RawRecord) error
}

// SettingsStore persists the global configuration record, including the
// embedded quota counter.
type SettingsStore interface {
	Get(ctx context.Context) (Settings, error)
	Update(ctx context.Context, s Settings) error
	// UpdateQuota persists call-count and reset-date atomically.
	UpdateQuota(ctx context.Context, q QuotaCounter) error
}

// Provider runs a set of queries and yields a raw output artifact.
type Provider interface {
	Type() ProviderType
	ExecuteScrape(ctx context.Context, req ScrapeRequest) (RawOutput, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes terminal job notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, event JobTermination) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
