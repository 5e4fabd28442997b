package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/dedup"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 500
)

type submitJobRequest struct {
	Queries  []string        `json:"queries"`
	Provider string          `json:"provider,omitempty"`
	Config   leads.JobConfig `json:"config"`
}

type submitJobResponse struct {
	JobID           string   `json:"job_id,omitempty"`
	Status          string   `json:"status"`
	AcceptedQueries []string `json:"accepted_queries,omitempty"`
	SkippedCount    int      `json:"skipped_count"`
	Conflicts       []string `json:"conflicts,omitempty"`
}

// submitJob validates, deduplicates, and enqueues a manual job. When every
// query is filtered out, no job is created and the response says so.
func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	queries := dedup.NormalizeQueries(req.Queries)
	if len(queries) == 0 {
		writeError(w, http.StatusBadRequest, "at least one query required")
		return
	}

	provider := leads.ProviderType(req.Provider)
	if provider != "" && !leads.ValidProvider(provider) {
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}
	effective := provider
	if effective == "" {
		settings, err := s.settings.Get(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load settings")
			return
		}
		effective = settings.DefaultProvider
	}

	skipped := 0
	var conflicts []string
	if !req.Config.ForceScrape {
		var n int
		var err error
		queries, n, err = s.validator.FilterHistorical(r.Context(), queries, effective)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "dedup check failed")
			return
		}
		skipped += n
		queries, n, conflicts, err = s.validator.FilterActiveConflicts(r.Context(), queries, "")
		if err != nil {
			writeError(w, http.StatusInternalServerError, "dedup check failed")
			return
		}
		skipped += n
	}

	if len(queries) == 0 {
		writeJSON(w, http.StatusOK, submitJobResponse{
			Status:       "skipped",
			SkippedCount: skipped,
			Conflicts:    conflicts,
		})
		return
	}

	job, err := s.queue.Enqueue(r.Context(), leads.JobSpec{
		Queries:        queries,
		Provider:       provider,
		Config:         req.Config,
		Trigger:        leads.TriggerManual,
		SkippedQueries: skipped,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, submitJobResponse{
		JobID:           job.ID,
		Status:          string(job.Status),
		AcceptedQueries: queries,
		SkippedCount:    skipped,
		Conflicts:       conflicts,
	})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	filter := leads.JobFilter{Limit: defaultJobLimit}
	if raw := r.URL.Query().Get("status"); raw != "" {
		filter.Statuses = []leads.JobStatus{leads.JobStatus(raw)}
	}
	if raw := r.URL.Query().Get("provider"); raw != "" {
		filter.Provider = leads.ProviderType(raw)
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxJobLimit {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	jobs, err := s.jobs.ListJobs(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []leads.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetJob(r.Context(), chi.URLParam(r, "job_id"))
	if errors.Is(err, leads.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}
