// Package scheduler materializes schedule definitions into work-queue
// admissions, at the right time, without duplicate submissions.
package scheduler

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/dedup"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

// Depth derived from a requested result count is clamped to this range.
const (
	minDepth          = 1
	maxDepth          = 10
	resultsPerPage    = 20
	defaultMaxResults = 20
)

// Enqueuer submits jobs to the work queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, spec leads.JobSpec) (leads.Job, error)
}

// Scheduler holds the in-memory index of live cron registrations and
// one-shot timers, rebuilt from persisted active schedules at start.
type Scheduler struct {
	log       *zap.Logger
	schedules leads.ScheduleStore
	settings  leads.SettingsStore
	queue     Enqueuer
	validator *dedup.Validator
	clock     leads.Clock

	cron    *cron.Cron
	mu      sync.Mutex
	entries map[string]cron.EntryID
	timers  map[string]*time.Timer
	stopped bool
}

// New constructs a Scheduler. Call Start to load persisted schedules.
func New(
	log *zap.Logger,
	schedules leads.ScheduleStore,
	settings leads.SettingsStore,
	queue Enqueuer,
	validator *dedup.Validator,
	clock leads.Clock,
) *Scheduler {
	return &Scheduler{
		log:       log,
		schedules: schedules,
		settings:  settings,
		queue:     queue,
		validator: validator,
		clock:     clock,
		cron:      cron.New(),
		entries:   make(map[string]cron.EntryID),
		timers:    make(map[string]*time.Timer),
	}
}

// Start registers every active schedule and begins dispatching.
func (s *Scheduler) Start(ctx context.Context) error {
	active, err := s.schedules.ListSchedules(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to load active schedules: %w", err)
	}
	for _, sched := range active {
		s.ScheduleJob(sched)
	}
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("schedules", len(active)))
	return nil
}

// ScheduleJob registers one schedule, replacing any prior registration for
// the same id. Misconfigured schedules are logged and left unregistered,
// inert until corrected.
func (s *Scheduler) ScheduleJob(sched leads.Schedule) {
	s.RemoveSchedule(sched.ID)

	switch sched.Kind {
	case leads.ScheduleRecurring:
		s.scheduleRecurring(sched)
	case leads.ScheduleOneTime:
		s.scheduleOneTime(sched)
	default:
		s.log.Warn("unknown schedule kind",
			zap.String("schedule_id", sched.ID),
			zap.String("kind", string(sched.Kind)))
	}
}

func (s *Scheduler) scheduleRecurring(sched leads.Schedule) {
	if _, err := cron.ParseStandard(sched.CronExpr); err != nil {
		s.log.Warn("invalid cron expression, schedule not registered",
			zap.String("schedule_id", sched.ID),
			zap.String("cron", sched.CronExpr),
			zap.Error(err))
		return
	}
	id := sched.ID
	entryID, err := s.cron.AddFunc(sched.CronExpr, func() { s.executeSchedule(id) })
	if err != nil {
		s.log.Warn("failed to register cron schedule", zap.String("schedule_id", id), zap.Error(err))
		return
	}
	s.mu.Lock()
	s.entries[id] = entryID
	s.mu.Unlock()
	s.log.Info("recurring schedule registered",
		zap.String("schedule_id", id),
		zap.String("cron", sched.CronExpr))
}

func (s *Scheduler) scheduleOneTime(sched leads.Schedule) {
	if sched.RunAt == nil {
		s.log.Warn("one-time schedule has no run time, not registered",
			zap.String("schedule_id", sched.ID))
		return
	}
	id := sched.ID
	delay := sched.RunAt.Sub(s.clock.Now())
	if delay <= 0 {
		s.log.Info("one-time schedule is due, executing now", zap.String("schedule_id", id))
		go s.executeSchedule(id)
		return
	}
	// Sub saturates at MaxInt64 for instants beyond the representable
	// delay; such schedules must be re-armed closer to the date.
	if delay == math.MaxInt64 {
		s.log.Warn("one-time schedule is too far in the future, not registered",
			zap.String("schedule_id", id),
			zap.Time("run_at", *sched.RunAt))
		return
	}
	timer := time.AfterFunc(delay, func() { s.executeSchedule(id) })
	s.mu.Lock()
	s.timers[id] = timer
	s.mu.Unlock()
	s.log.Info("one-time schedule armed",
		zap.String("schedule_id", id),
		zap.Duration("delay", delay))
}

// RemoveSchedule cancels the cron registration and/or one-shot timer for a
// schedule, idempotently.
func (s *Scheduler) RemoveSchedule(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

// RunScheduleNow triggers a schedule out of band. One-time schedules lose
// their timer registration so they cannot fire twice.
func (s *Scheduler) RunScheduleNow(ctx context.Context, id string) error {
	sched, err := s.schedules.GetSchedule(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load schedule %s: %w", id, err)
	}
	if sched.Kind == leads.ScheduleOneTime {
		s.RemoveSchedule(id)
	}
	s.executeSchedule(id)
	return nil
}

// Stop cancels every cron registration and pending timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	for id := range s.entries {
		delete(s.entries, id)
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// executeSchedule turns one schedule firing into at most one job. The
// schedule's queries pass the historical and active-conflict filters unless
// force-scrape is set; if nothing survives, the firing is skipped silently.
func (s *Scheduler) executeSchedule(id string) {
	ctx := context.Background()

	sched, err := s.schedules.GetSchedule(ctx, id)
	if err != nil {
		s.log.Error("scheduled firing could not load schedule", zap.String("schedule_id", id), zap.Error(err))
		return
	}
	if !sched.Active {
		s.log.Debug("schedule fired but is inactive, skipping", zap.String("schedule_id", id))
		return
	}

	now := s.clock.Now()
	if err := s.schedules.TouchLastRun(ctx, id, now); err != nil {
		s.log.Warn("failed to stamp last run", zap.String("schedule_id", id), zap.Error(err))
	}
	// A one-time schedule deactivates on attempted execution, exactly once,
	// even when every query is filtered out.
	if sched.Kind == leads.ScheduleOneTime {
		s.RemoveSchedule(id)
		if err := s.schedules.SetActive(ctx, id, false); err != nil {
			s.log.Warn("failed to deactivate one-time schedule", zap.String("schedule_id", id), zap.Error(err))
		}
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.log.Error("scheduled firing could not load settings", zap.String("schedule_id", id), zap.Error(err))
		return
	}
	provider := sched.Provider
	if provider == "" {
		provider = settings.DefaultProvider
	}
	config := resolveConfig(sched.Config, settings)

	queries := dedup.NormalizeQueries(sched.Queries)
	skipped := 0
	if !config.ForceScrape {
		var n int
		queries, n, err = s.validator.FilterHistorical(ctx, queries, provider)
		if err != nil {
			s.log.Error("historical filter failed", zap.String("schedule_id", id), zap.Error(err))
			return
		}
		skipped += n
		queries, n, _, err = s.validator.FilterActiveConflicts(ctx, queries, id)
		if err != nil {
			s.log.Error("conflict filter failed", zap.String("schedule_id", id), zap.Error(err))
			return
		}
		skipped += n
	}
	if len(queries) == 0 {
		s.log.Info("all scheduled queries were filtered, nothing to enqueue",
			zap.String("schedule_id", id),
			zap.Int("skipped", skipped))
		return
	}

	job, err := s.queue.Enqueue(ctx, leads.JobSpec{
		Queries:        queries,
		Provider:       provider,
		Config:         config,
		Trigger:        leads.TriggerScheduled,
		ScheduleID:     id,
		OwnerID:        sched.OwnerID,
		SkippedQueries: skipped,
	})
	if err != nil {
		s.log.Error("failed to enqueue scheduled job", zap.String("schedule_id", id), zap.Error(err))
		return
	}
	s.log.Info("scheduled job enqueued",
		zap.String("schedule_id", id),
		zap.String("job_id", job.ID),
		zap.Int("queries", len(queries)),
		zap.Int("skipped", skipped))
}

// resolveConfig merges schedule configuration with global defaults. Explicit
// schedule values win; crawl depth falls back to a value derived from the
// requested result count.
func resolveConfig(cfg leads.JobConfig, settings leads.Settings) leads.JobConfig {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = settings.DefaultMaxResults
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = settings.DefaultMaxPages
	}
	if cfg.FieldsLevel == "" {
		cfg.FieldsLevel = settings.DefaultFieldsLevel
	}
	if cfg.Depth <= 0 {
		depth := cfg.MaxResults / resultsPerPage
		if depth < minDepth {
			depth = minDepth
		}
		if depth > maxDepth {
			depth = maxDepth
		}
		cfg.Depth = depth
	}
	return cfg
}
