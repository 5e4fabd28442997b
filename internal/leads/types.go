// Package leads defines core types shared across subsystems.
package leads

import (
	"encoding/json"
	"time"
)

// ProviderType identifies a lead-ingestion strategy.
type ProviderType string

// Provider values persisted on jobs, schedules, and business lineage.
const (
	// ProviderBrowser is the free headless-browser scraper, run as an
	// isolated subprocess.
	ProviderBrowser ProviderType = "browser"
	// ProviderPlaces is the metered structured-search API.
	ProviderPlaces ProviderType = "places"
)

// ValidProvider reports whether p names a known provider.
func ValidProvider(p ProviderType) bool {
	return p == ProviderBrowser || p == ProviderPlaces
}

// FieldsLevel selects which attributes a metered search requests.
// Levels are strictly additive: atmosphere ⊇ contact ⊇ basic.
type FieldsLevel string

// Supported field verbosity levels.
const (
	FieldsBasic      FieldsLevel = "basic"
	FieldsContact    FieldsLevel = "contact"
	FieldsAtmosphere FieldsLevel = "atmosphere"
)

// JobStatus represents the lifecycle state of an ingestion job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status ends the job lifecycle.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// TriggerSource records what created a job.
type TriggerSource string

// Trigger origins persisted on jobs.
const (
	TriggerManual    TriggerSource = "manual"
	TriggerScheduled TriggerSource = "scheduled"
)

// JobConfig captures per-job provider tunables. Recognized keys are
// enumerated here; anything else a caller sends is preserved opaquely in
// Extra and never interpreted.
type JobConfig struct {
	FieldsLevel FieldsLevel    `json:"fields_level,omitempty" mapstructure:"fields_level"`
	MaxPages    int            `json:"max_pages,omitempty" mapstructure:"max_pages"`
	MaxResults  int            `json:"max_results,omitempty" mapstructure:"max_results"`
	Depth       int            `json:"depth,omitempty" mapstructure:"depth"`
	Language    string         `json:"language,omitempty" mapstructure:"language"`
	ForceScrape bool           `json:"force_scrape,omitempty" mapstructure:"force_scrape"`
	Extra       map[string]any `json:"extra,omitempty" mapstructure:"extra"`
}

// JobCounters aggregates merge results for one job.
type JobCounters struct {
	Total   int `json:"total"`
	New     int `json:"new"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Add accumulates another batch's counters into c.
func (c *JobCounters) Add(o JobCounters) {
	c.Total += o.Total
	c.New += o.New
	c.Updated += o.Updated
	c.Skipped += o.Skipped
	c.Errors += o.Errors
}

// Job represents the metadata persisted for each ingestion request.
// Jobs are never deleted; terminal status supersedes them.
type Job struct {
	ID             string        `json:"id"`
	Status         JobStatus     `json:"status"`
	Queries        []string      `json:"queries"`
	Provider       ProviderType  `json:"provider"`
	Config         JobConfig     `json:"config"`
	Trigger        TriggerSource `json:"trigger"`
	ScheduleID     string        `json:"schedule_id,omitempty"`
	OwnerID        string        `json:"owner_id,omitempty"`
	SkippedQueries int           `json:"skipped_queries,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	FinishedAt     *time.Time    `json:"finished_at,omitempty"`
	ErrorText      string        `json:"error_text,omitempty"`
	Counters       JobCounters   `json:"counters"`
}

// Duration returns wall time from start to finish, or zero while the job
// has not finished.
func (j Job) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}

// JobTermination is the notification published when a job reaches a
// terminal state.
type JobTermination struct {
	JobID    string      `json:"job_id"`
	Status   JobStatus   `json:"status"`
	Counters JobCounters `json:"counters"`
	Error    string      `json:"error,omitempty"`
}

// JobSpec captures everything needed to enqueue a job.
type JobSpec struct {
	Queries        []string
	Provider       ProviderType
	Config         JobConfig
	Trigger        TriggerSource
	ScheduleID     string
	OwnerID        string
	SkippedQueries int
}

// JobFilter narrows job listings.
type JobFilter struct {
	Statuses []JobStatus
	Provider ProviderType
	Limit    int
}

// ScheduleKind distinguishes recurring from one-time schedules.
type ScheduleKind string

// Schedule kinds persisted in the schedule store.
const (
	ScheduleRecurring ScheduleKind = "recurring"
	ScheduleOneTime   ScheduleKind = "one_time"
)

// Schedule is a recurring or one-time trigger definition. The scheduler
// derives its in-memory timer/cron registrations from active schedules at
// process start.
type Schedule struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Kind      ScheduleKind `json:"kind"`
	CronExpr  string       `json:"cron_expr,omitempty"`
	RunAt     *time.Time   `json:"run_at,omitempty"`
	Active    bool         `json:"active"`
	Queries   []string     `json:"queries"`
	Provider  ProviderType `json:"provider,omitempty"`
	Config    JobConfig    `json:"config"`
	LastRunAt *time.Time   `json:"last_run_at,omitempty"`
	OwnerID   string       `json:"owner_id,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// QuotaCounter tracks metered-provider usage for the current day.
// LastReset holds a calendar date in YYYY-MM-DD form; the counter resets
// exactly once per day on first access after midnight.
type QuotaCounter struct {
	CallsToday int    `json:"calls_today"`
	LastReset  string `json:"last_reset"`
}

// Settings is the global configuration record. It is read fresh on each
// relevant operation rather than cached at startup.
type Settings struct {
	DefaultProvider    ProviderType `json:"default_provider"`
	ConcurrencyLimit   int          `json:"concurrency_limit"`
	DefaultMaxResults  int          `json:"default_max_results"`
	DefaultMaxPages    int          `json:"default_max_pages"`
	DefaultFieldsLevel FieldsLevel  `json:"default_fields_level"`
	PlacesAPIKey       string       `json:"places_api_key,omitempty"`
	PlacesDailyLimit   int          `json:"places_daily_limit"`
	Quota              QuotaCounter `json:"quota"`
}

// BusinessStatusNew is the default workflow status assigned at ingestion.
const BusinessStatusNew = "new"

// ProvenanceRef points one canonical entity at a raw record that
// contributed to it.
type ProvenanceRef struct {
	RawID    string       `json:"raw_id"`
	JobID    string       `json:"job_id"`
	Provider ProviderType `json:"provider"`
	Query    string       `json:"query,omitempty"`
	At       time.Time    `json:"at"`
}

// Business is the canonical deduplicated entity, keyed by the
// provider-issued place identifier. An entity must carry at least one of
// phone, website, or a non-empty email list or it is rejected at ingestion.
type Business struct {
	ID          string          `json:"id"`
	PlaceID     string          `json:"place_id"`
	Name        string          `json:"name,omitempty"`
	Category    string          `json:"category,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	Website     string          `json:"website,omitempty"`
	Emails      []string        `json:"emails,omitempty"`
	Address     string          `json:"address,omitempty"`
	Street      string          `json:"street,omitempty"`
	City        string          `json:"city,omitempty"`
	State       string          `json:"state,omitempty"`
	PostalCode  string          `json:"postal_code,omitempty"`
	Country     string          `json:"country,omitempty"`
	Latitude    float64         `json:"latitude,omitempty"`
	Longitude   float64         `json:"longitude,omitempty"`
	Rating      float64         `json:"rating,omitempty"`
	ReviewCount int             `json:"review_count,omitempty"`
	Images      []string        `json:"images,omitempty"`
	Status      string          `json:"status"`
	Lineage     []ProviderType  `json:"lineage"`
	Provenance  []ProvenanceRef `json:"provenance"`
	OwnerID     string          `json:"owner_id,omitempty"`
	FirstSeen   time.Time       `json:"first_seen"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Contactable reports whether the entity passes the minimal viability gate.
func (b Business) Contactable() bool {
	return b.Phone != "" || b.Website != "" || len(b.Emails) > 0
}

// RawRecord is an immutable, provider-tagged verbatim copy of one ingested
// item. Never mutated after creation.
type RawRecord struct {
	ID        string          `json:"id"`
	PlaceID   string          `json:"place_id"`
	Provider  ProviderType    `json:"provider"`
	JobID     string          `json:"job_id"`
	Query     string          `json:"query,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Hash      string          `json:"hash,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ScrapeRequest captures everything a provider needs to run one job.
type ScrapeRequest struct {
	JobID   string
	Queries []string
	Config  JobConfig
}

// RawOutput locates the artifact a provider produced: Path is a local file
// holding a JSON array of per-query sections, a flat JSON array, or
// newline-delimited JSON objects; URI optionally points at an audit copy in
// blob storage.
type RawOutput struct {
	Path     string
	URI      string
	Provider ProviderType
}
