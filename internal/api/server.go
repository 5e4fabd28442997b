// Package api exposes the HTTP interface for the leads service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/config"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/dedup"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/telemetry"
)

// JobQueue is the admission surface the handlers enqueue through.
type JobQueue interface {
	Enqueue(ctx context.Context, spec leads.JobSpec) (leads.Job, error)
}

// ScheduleRunner is the scheduler surface the handlers register through.
type ScheduleRunner interface {
	ScheduleJob(sched leads.Schedule)
	RemoveSchedule(id string)
	RunScheduleNow(ctx context.Context, id string) error
}

// Server wires HTTP handlers to the queue, scheduler, and stores.
type Server struct {
	router     chi.Router
	log        *zap.Logger
	jobs       leads.JobStore
	schedules  leads.ScheduleStore
	businesses leads.BusinessStore
	settings   leads.SettingsStore
	queue      JobQueue
	sched      ScheduleRunner
	validator  *dedup.Validator
	ids        leads.IDGenerator
	clock      leads.Clock
	cfg        config.Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	log *zap.Logger,
	jobs leads.JobStore,
	schedules leads.ScheduleStore,
	businesses leads.BusinessStore,
	settings leads.SettingsStore,
	queue JobQueue,
	sched ScheduleRunner,
	validator *dedup.Validator,
	ids leads.IDGenerator,
	clock leads.Clock,
	cfg config.Config,
) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		log:        log,
		jobs:       jobs,
		schedules:  schedules,
		businesses: businesses,
		settings:   settings,
		queue:      queue,
		sched:      sched,
		validator:  validator,
		ids:        ids,
		clock:      clock,
		cfg:        cfg,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(telemetry.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Get("/", s.listJobs)
			r.Get("/{job_id}", s.getJob)
		})
		r.Route("/schedules", func(r chi.Router) {
			r.Post("/", s.createSchedule)
			r.Get("/", s.listSchedules)
			r.Route("/{schedule_id}", func(r chi.Router) {
				r.Get("/", s.getSchedule)
				r.Put("/", s.updateSchedule)
				r.Delete("/", s.deleteSchedule)
				r.Post("/run", s.runSchedule)
			})
		})
		r.Get("/businesses", s.listBusinesses)
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.getSettings)
			r.Put("/", s.updateSettings)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// Settings is the cheapest store round trip and exercises the backend.
	if _, err := s.settings.Get(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
