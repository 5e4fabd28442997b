// Package progress provides the event primitives, non-blocking hub, and
// emitter interfaces used to report job lifecycle milestones. Events batch on
// a background goroutine and fan out to pluggable sinks such as Prometheus
// metrics or persistent storage.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageJobEnqueued  Stage = "JOB_ENQUEUED"
	StageJobStart     Stage = "JOB_START"
	StageJobDone      Stage = "JOB_DONE"
	StageJobError     Stage = "JOB_ERROR"
	StageProviderPage Stage = "PROVIDER_PAGE"
	StageMergeDone    Stage = "MERGE_DONE"
)

// Event captures a single milestone of an ingestion job.
type Event struct {
	// JobID identifies the owning job.
	JobID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Provider scopes provider-page and terminal events.
	Provider leads.ProviderType
	// Query optionally names the query a provider page served.
	Query string
	// Items carries the record count for provider pages and merges.
	Items int64
	// Counters holds aggregate merge results on MERGE_DONE and JOB_DONE.
	Counters leads.JobCounters
	// Dur captures wall time for terminal events.
	Dur time.Duration
	// Note lets emitters attach low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageJobEnqueued, StageJobStart, StageJobDone, StageJobError, StageMergeDone:
	case StageProviderPage:
		if e.Provider == "" {
			return errors.New("provider page requires a provider")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
