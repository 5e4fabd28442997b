// Package queue admits, runs, and tracks ingestion jobs under a global
// concurrency ceiling read fresh from settings on every admission pass.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/progress"
)

// DefaultConcurrency applies when settings carry no positive limit.
const DefaultConcurrency = 2

// defaultCooldown delays the follow-up admission pass after a completion so
// a momentarily inconsistent store cannot cause a busy loop.
const defaultCooldown = time.Second

// crashRecoveryReason marks jobs found running at process start.
const crashRecoveryReason = "job interrupted by process restart"

// Executor runs one job to completion. The dispatcher satisfies this.
type Executor interface {
	Dispatch(ctx context.Context, job leads.Job) (leads.JobCounters, error)
}

// WorkQueue coordinates job admission. Completion and enqueue both signal a
// single coordinator goroutine through a buffered wake channel; a signal
// arriving while one is already pending is dropped, which is safe because
// every completion raises a fresh one.
type WorkQueue struct {
	log       *zap.Logger
	jobs      leads.JobStore
	settings  leads.SettingsStore
	executor  Executor
	hub       progress.Emitter
	publisher leads.Publisher
	topic     string
	ids       leads.IDGenerator
	clock     leads.Clock
	cooldown  time.Duration

	baseCtx  context.Context
	wake     chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	inflight sync.WaitGroup
	stopOnce sync.Once
	started  bool
}

// Option tweaks queue construction.
type Option func(*WorkQueue)

// WithCooldown overrides the post-completion admission delay.
func WithCooldown(d time.Duration) Option {
	return func(q *WorkQueue) { q.cooldown = d }
}

// WithPublisher attaches a publisher for terminal job events.
func WithPublisher(p leads.Publisher, topic string) Option {
	return func(q *WorkQueue) {
		q.publisher = p
		q.topic = topic
	}
}

// New constructs a WorkQueue. Call Start before enqueueing.
func New(
	log *zap.Logger,
	jobs leads.JobStore,
	settings leads.SettingsStore,
	executor Executor,
	hub progress.Emitter,
	ids leads.IDGenerator,
	clock leads.Clock,
	opts ...Option,
) *WorkQueue {
	q := &WorkQueue{
		log:      log,
		jobs:     jobs,
		settings: settings,
		executor: executor,
		hub:      hub,
		ids:      ids,
		clock:    clock,
		cooldown: defaultCooldown,
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start performs crash recovery and launches the coordinator. Any job still
// running cannot have survived a restart, so it is marked failed with a
// distinguishing reason before pending work resumes.
func (q *WorkQueue) Start(ctx context.Context) error {
	if q.started {
		return fmt.Errorf("work queue already started")
	}
	q.started = true
	q.baseCtx = ctx

	failed, err := q.jobs.FailRunning(ctx, crashRecoveryReason, q.clock.Now())
	if err != nil {
		return fmt.Errorf("crash recovery failed: %w", err)
	}
	if len(failed) > 0 {
		q.log.Warn("recovered orphaned running jobs", zap.Strings("job_ids", failed))
	}

	go q.coordinate()
	q.requestAdmission()
	return nil
}

// Enqueue persists a new pending job and signals the coordinator. It never
// blocks waiting for execution.
func (q *WorkQueue) Enqueue(ctx context.Context, spec leads.JobSpec) (leads.Job, error) {
	if len(spec.Queries) == 0 {
		return leads.Job{}, fmt.Errorf("job has no queries")
	}
	id, err := q.ids.NewID()
	if err != nil {
		return leads.Job{}, fmt.Errorf("failed to generate job id: %w", err)
	}

	job := leads.Job{
		ID:             id,
		Status:         leads.JobStatusPending,
		Queries:        spec.Queries,
		Provider:       spec.Provider,
		Config:         spec.Config,
		Trigger:        spec.Trigger,
		ScheduleID:     spec.ScheduleID,
		OwnerID:        spec.OwnerID,
		SkippedQueries: spec.SkippedQueries,
		CreatedAt:      q.clock.Now(),
	}
	if err := q.jobs.CreateJob(ctx, job); err != nil {
		return leads.Job{}, fmt.Errorf("failed to persist job: %w", err)
	}

	q.emit(progress.Event{JobID: job.ID, TS: q.clock.Now(), Stage: progress.StageJobEnqueued, Provider: job.Provider})
	q.log.Info("job enqueued",
		zap.String("job_id", job.ID),
		zap.String("provider", string(job.Provider)),
		zap.Int("queries", len(job.Queries)),
		zap.String("trigger", string(job.Trigger)))
	q.requestAdmission()
	return job, nil
}

// Stop halts the coordinator and waits for in-flight jobs up to the context
// deadline. In-flight jobs are never aborted; anything still running when
// the process exits is reconciled by crash recovery on the next start.
func (q *WorkQueue) Stop(ctx context.Context) error {
	q.stopOnce.Do(func() { close(q.stopCh) })
	<-q.doneCh

	waitDone := make(chan struct{})
	go func() {
		q.inflight.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
		return nil
	case <-ctx.Done():
		q.log.Warn("shutdown proceeding with jobs still in flight")
		return ctx.Err()
	}
}

// requestAdmission raises the wake signal without blocking. A full channel
// means a pass is already pending, so the signal is dropped.
func (q *WorkQueue) requestAdmission() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *WorkQueue) coordinate() {
	defer close(q.doneCh)
	for {
		select {
		case <-q.wake:
			q.admit()
		case <-q.stopCh:
			return
		}
	}
}

// admit launches as many pending jobs as free slots allow, oldest first.
// Individual failures are logged and never stop the pass.
func (q *WorkQueue) admit() {
	ctx := q.baseCtx

	limit := DefaultConcurrency
	if settings, err := q.settings.Get(ctx); err != nil {
		q.log.Error("admission pass could not read settings", zap.Error(err))
	} else if settings.ConcurrencyLimit > 0 {
		limit = settings.ConcurrencyLimit
	}

	running, err := q.jobs.CountByStatus(ctx, leads.JobStatusRunning)
	if err != nil {
		q.log.Error("admission pass could not count running jobs", zap.Error(err))
		return
	}
	slots := limit - running
	if slots <= 0 {
		return
	}

	pending, err := q.jobs.ListPending(ctx, slots)
	if err != nil {
		q.log.Error("admission pass could not list pending jobs", zap.Error(err))
		return
	}

	for _, job := range pending {
		claimed, err := q.jobs.MarkRunning(ctx, job.ID, q.clock.Now())
		if err != nil {
			q.log.Error("failed to mark job running", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		q.emit(progress.Event{JobID: job.ID, TS: q.clock.Now(), Stage: progress.StageJobStart, Provider: job.Provider})
		q.inflight.Add(1)
		go q.execute(job)
	}
}

// execute runs one job to a terminal state. The job context is detached from
// the server's cancellation so shutdown does not abort in-flight work.
func (q *WorkQueue) execute(job leads.Job) {
	defer q.inflight.Done()

	ctx := context.WithoutCancel(q.baseCtx)
	started := q.clock.Now()

	counters, err := q.executor.Dispatch(ctx, job)
	finished := q.clock.Now()

	status := leads.JobStatusCompleted
	errText := ""
	if err != nil {
		status = leads.JobStatusFailed
		errText = err.Error()
		q.log.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
	} else {
		q.log.Info("job completed",
			zap.String("job_id", job.ID),
			zap.Int("total", counters.Total),
			zap.Int("new", counters.New),
			zap.Int("updated", counters.Updated))
	}

	if err := q.jobs.FinishJob(ctx, job.ID, status, errText, counters, finished); err != nil {
		q.log.Error("failed to persist job outcome", zap.String("job_id", job.ID), zap.Error(err))
	}

	stage := progress.StageJobDone
	if status == leads.JobStatusFailed {
		stage = progress.StageJobError
	}
	q.emit(progress.Event{
		JobID:    job.ID,
		TS:       finished,
		Stage:    stage,
		Provider: job.Provider,
		Counters: counters,
		Dur:      finished.Sub(started),
		Note:     errText,
	})
	q.publishTerminal(ctx, job.ID, status, counters, errText)

	// Deliberate backoff before the follow-up pass; the wake signal itself
	// is the primary re-admission mechanism.
	time.AfterFunc(q.cooldown, q.requestAdmission)
}

func (q *WorkQueue) publishTerminal(ctx context.Context, jobID string, status leads.JobStatus, counters leads.JobCounters, errText string) {
	if q.publisher == nil {
		return
	}
	event := leads.JobTermination{JobID: jobID, Status: status, Counters: counters, Error: errText}
	if _, err := q.publisher.Publish(ctx, q.topic, event); err != nil {
		q.log.Warn("failed to publish job event", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (q *WorkQueue) emit(evt progress.Event) {
	if q.hub != nil {
		q.hub.Emit(evt)
	}
}
