// Package dispatcher resolves the provider for a job, executes the scrape,
// and routes the raw output through the merge engine.
package dispatcher

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/merge"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/progress"
)

// Dispatcher owns the provider registry and the scrape-then-merge pipeline.
type Dispatcher struct {
	log       *zap.Logger
	providers map[leads.ProviderType]leads.Provider
	settings  leads.SettingsStore
	engine    *merge.Engine
	hub       progress.Emitter
	clock     leads.Clock
}

// New constructs a Dispatcher over the given providers.
func New(
	log *zap.Logger,
	settings leads.SettingsStore,
	engine *merge.Engine,
	hub progress.Emitter,
	clock leads.Clock,
	providers ...leads.Provider,
) *Dispatcher {
	registry := make(map[leads.ProviderType]leads.Provider, len(providers))
	for _, p := range providers {
		registry[p.Type()] = p
	}
	return &Dispatcher{
		log:       log,
		providers: registry,
		settings:  settings,
		engine:    engine,
		hub:       hub,
		clock:     clock,
	}
}

// Resolve picks the provider for a job: the job's explicit choice wins, else
// the configured global default.
func (d *Dispatcher) Resolve(ctx context.Context, job leads.Job) (leads.Provider, error) {
	chosen := job.Provider
	if chosen == "" {
		settings, err := d.settings.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load settings: %w", err)
		}
		chosen = settings.DefaultProvider
	}
	provider, ok := d.providers[chosen]
	if !ok {
		return nil, fmt.Errorf("no provider registered for %q", chosen)
	}
	return provider, nil
}

// Dispatch runs one job end to end and returns the merge counters. Quota
// exhaustion and subprocess failures surface as errors for the queue to
// record on the job; there is no silent provider fallback.
func (d *Dispatcher) Dispatch(ctx context.Context, job leads.Job) (leads.JobCounters, error) {
	provider, err := d.Resolve(ctx, job)
	if err != nil {
		return leads.JobCounters{}, err
	}

	d.log.Info("dispatching job",
		zap.String("job_id", job.ID),
		zap.String("provider", string(provider.Type())),
		zap.Int("queries", len(job.Queries)))

	out, err := provider.ExecuteScrape(ctx, leads.ScrapeRequest{
		JobID:   job.ID,
		Queries: job.Queries,
		Config:  job.Config,
	})
	if err != nil {
		return leads.JobCounters{}, fmt.Errorf("provider %s failed: %w", provider.Type(), err)
	}

	counters, err := d.engine.ProcessFile(ctx, out.Path, merge.BatchMeta{
		JobID:    job.ID,
		Provider: out.Provider,
		Query:    fallbackQuery(job.Queries),
		OwnerID:  job.OwnerID,
	})
	if err != nil {
		return leads.JobCounters{}, fmt.Errorf("merge failed for job %s: %w", job.ID, err)
	}

	if d.hub != nil {
		d.hub.Emit(progress.Event{
			JobID:    job.ID,
			TS:       d.clock.Now(),
			Stage:    progress.StageMergeDone,
			Provider: out.Provider,
			Items:    int64(counters.Total),
			Counters: counters,
		})
	}
	return counters, nil
}

// fallbackQuery attributes items from artifacts that carry no per-query
// sections. It is exact for single-query jobs; sectioned artifacts override
// it item by item.
func fallbackQuery(queries []string) string {
	if len(queries) == 1 {
		return queries[0]
	}
	return strings.Join(queries, "; ")
}
