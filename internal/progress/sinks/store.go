package sinks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/progress"
)

// JobEventRecord is the durable form of one progress event.
type JobEventRecord struct {
	JobID    string
	Stage    string
	Provider string
	Query    string
	Items    int64
	Note     string
	At       time.Time
}

// JobEventRepository appends job event rows. Implementations live in the
// storage backends.
type JobEventRepository interface {
	AppendJobEvents(ctx context.Context, events []JobEventRecord) error
}

// StoreSink persists progress events via a JobEventRepository, one batched
// append per flush to reduce write amplification.
type StoreSink struct {
	repo   JobEventRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo JobEventRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume forwards the batch to the repository as event rows.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil || len(batch) == 0 {
		return nil
	}
	records := make([]JobEventRecord, 0, len(batch))
	for _, evt := range batch {
		records = append(records, JobEventRecord{
			JobID:    evt.JobID,
			Stage:    string(evt.Stage),
			Provider: string(evt.Provider),
			Query:    evt.Query,
			Items:    evt.Items,
			Note:     evt.Note,
			At:       evt.TS,
		})
	}
	if err := s.repo.AppendJobEvents(ctx, records); err != nil {
		return fmt.Errorf("append job events: %w", err)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
