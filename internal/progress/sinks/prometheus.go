package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/progress"
)

// PrometheusSink exports ingestion progress metrics. It owns all collectors
// for job lifecycle, provider pagination, and merge outcomes.
type PrometheusSink struct {
	jobsEnqueued  prometheus.Counter
	jobsStarted   prometheus.Counter
	jobsCompleted *prometheus.CounterVec
	jobsRunning   prometheus.Gauge
	jobRuntime    *prometheus.HistogramVec

	providerPages *prometheus.CounterVec
	providerItems *prometheus.CounterVec
	mergeOutcomes *prometheus.CounterVec

	tracker *jobTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		jobsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadgen_jobs_enqueued_total",
			Help: "Total jobs accepted into the work queue.",
		}),
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadgen_jobs_started_total",
			Help: "Total jobs that have started.",
		}),
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadgen_jobs_completed_total",
			Help: "Total jobs finished partitioned by result.",
		}, []string{"result"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leadgen_jobs_running",
			Help: "Current number of running jobs.",
		}),
		jobRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leadgen_job_runtime_seconds",
			Help:    "Wall time per finished job.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"result"}),
		providerPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadgen_provider_pages_total",
			Help: "Provider result pages fetched, partitioned by provider.",
		}, []string{"provider"}),
		providerItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadgen_provider_items_total",
			Help: "Raw items collected, partitioned by provider.",
		}, []string{"provider"}),
		mergeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadgen_merge_outcomes_total",
			Help: "Merge results partitioned by outcome.",
		}, []string{"outcome"}),
		tracker: newJobTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.jobsEnqueued,
		s.jobsStarted,
		s.jobsCompleted,
		s.jobsRunning,
		s.jobRuntime,
		s.providerPages,
		s.providerItems,
		s.mergeOutcomes,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageJobEnqueued:
		s.jobsEnqueued.Inc()
	case progress.StageJobStart:
		s.jobsStarted.Inc()
		if s.tracker.start(evt.JobID) {
			s.jobsRunning.Inc()
		}
	case progress.StageJobDone:
		s.finishJob(evt, "success")
	case progress.StageJobError:
		s.finishJob(evt, "error")
	case progress.StageProviderPage:
		s.providerPages.WithLabelValues(string(evt.Provider)).Inc()
		if evt.Items > 0 {
			s.providerItems.WithLabelValues(string(evt.Provider)).Add(float64(evt.Items))
		}
	case progress.StageMergeDone:
		s.mergeOutcomes.WithLabelValues("new").Add(float64(evt.Counters.New))
		s.mergeOutcomes.WithLabelValues("updated").Add(float64(evt.Counters.Updated))
		s.mergeOutcomes.WithLabelValues("skipped").Add(float64(evt.Counters.Skipped))
		s.mergeOutcomes.WithLabelValues("error").Add(float64(evt.Counters.Errors))
	}
}

func (s *PrometheusSink) finishJob(evt progress.Event, result string) {
	s.jobsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.jobRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.JobID) {
		s.jobsRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

// jobTracker deduplicates start/finish pairs so the running gauge stays
// accurate when an event is emitted twice.
type jobTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newJobTracker() *jobTracker {
	return &jobTracker{running: make(map[string]struct{})}
}

func (t *jobTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *jobTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
