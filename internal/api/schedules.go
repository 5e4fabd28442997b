package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/robfig/cron/v3"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/dedup"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

type scheduleRequest struct {
	Name     string          `json:"name"`
	Kind     string          `json:"kind"`
	CronExpr string          `json:"cron_expr,omitempty"`
	RunAt    *time.Time      `json:"run_at,omitempty"`
	Active   *bool           `json:"active,omitempty"`
	Queries  []string        `json:"queries"`
	Provider string          `json:"provider,omitempty"`
	Config   leads.JobConfig `json:"config"`
}

func (req scheduleRequest) validate() error {
	if req.Name == "" {
		return errors.New("name required")
	}
	if len(dedup.NormalizeQueries(req.Queries)) == 0 {
		return errors.New("at least one query required")
	}
	if req.Provider != "" && !leads.ValidProvider(leads.ProviderType(req.Provider)) {
		return errors.New("unknown provider")
	}
	switch leads.ScheduleKind(req.Kind) {
	case leads.ScheduleRecurring:
		if req.CronExpr == "" {
			return errors.New("cron_expr required for recurring schedules")
		}
		if _, err := cron.ParseStandard(req.CronExpr); err != nil {
			return errors.New("invalid cron expression")
		}
	case leads.ScheduleOneTime:
		if req.RunAt == nil {
			return errors.New("run_at required for one-time schedules")
		}
	default:
		return errors.New("kind must be recurring or one_time")
	}
	return nil
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.ids.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate id")
		return
	}
	now := s.clock.Now()
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	sched := leads.Schedule{
		ID:        id,
		Name:      req.Name,
		Kind:      leads.ScheduleKind(req.Kind),
		CronExpr:  req.CronExpr,
		RunAt:     req.RunAt,
		Active:    active,
		Queries:   dedup.NormalizeQueries(req.Queries),
		Provider:  leads.ProviderType(req.Provider),
		Config:    req.Config,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.schedules.CreateSchedule(r.Context(), sched); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create schedule")
		return
	}
	if sched.Active {
		s.sched.ScheduleJob(sched)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"schedule": sched})
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	scheds, err := s.schedules.ListSchedules(r.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}
	if scheds == nil {
		scheds = []leads.Schedule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": scheds})
}

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := s.schedules.GetSchedule(r.Context(), chi.URLParam(r, "schedule_id"))
	if errors.Is(err, leads.ErrNotFound) {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch schedule")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedule": sched})
}

// updateSchedule replaces the definition and re-registers the timer or cron
// entry so the change takes effect without a restart.
func (s *Server) updateSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "schedule_id")
	existing, err := s.schedules.GetSchedule(r.Context(), id)
	if errors.Is(err, leads.ErrNotFound) {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch schedule")
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sched := existing
	sched.Name = req.Name
	sched.Kind = leads.ScheduleKind(req.Kind)
	sched.CronExpr = req.CronExpr
	sched.RunAt = req.RunAt
	sched.Queries = dedup.NormalizeQueries(req.Queries)
	sched.Provider = leads.ProviderType(req.Provider)
	sched.Config = req.Config
	if req.Active != nil {
		sched.Active = *req.Active
	}
	sched.UpdatedAt = s.clock.Now()

	if err := s.schedules.UpdateSchedule(r.Context(), sched); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update schedule")
		return
	}
	if sched.Active {
		s.sched.ScheduleJob(sched)
	} else {
		s.sched.RemoveSchedule(sched.ID)
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedule": sched})
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "schedule_id")
	if err := s.schedules.DeleteSchedule(r.Context(), id); err != nil {
		if errors.Is(err, leads.ErrNotFound) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete schedule")
		return
	}
	s.sched.RemoveSchedule(id)
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) runSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "schedule_id")
	if err := s.sched.RunScheduleNow(r.Context(), id); err != nil {
		if errors.Is(err, leads.ErrNotFound) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "triggered"})
}
