package api

import (
	"encoding/json"
	"net/http"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	// Never echo the key back to clients.
	settings.PlacesAPIKey = ""
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

// updateSettings replaces the admin-tunable fields. The quota counter is
// owned by the metered provider and is preserved as-is.
func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	current, err := s.settings.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	var req struct {
		DefaultProvider    string  `json:"default_provider,omitempty"`
		ConcurrencyLimit   *int    `json:"concurrency_limit,omitempty"`
		DefaultMaxResults  *int    `json:"default_max_results,omitempty"`
		DefaultMaxPages    *int    `json:"default_max_pages,omitempty"`
		DefaultFieldsLevel string  `json:"default_fields_level,omitempty"`
		PlacesAPIKey       *string `json:"places_api_key,omitempty"`
		PlacesDailyLimit   *int    `json:"places_daily_limit,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	next := current
	if req.DefaultProvider != "" {
		if !leads.ValidProvider(leads.ProviderType(req.DefaultProvider)) {
			writeError(w, http.StatusBadRequest, "unknown provider")
			return
		}
		next.DefaultProvider = leads.ProviderType(req.DefaultProvider)
	}
	if req.ConcurrencyLimit != nil {
		if *req.ConcurrencyLimit <= 0 {
			writeError(w, http.StatusBadRequest, "concurrency_limit must be > 0")
			return
		}
		next.ConcurrencyLimit = *req.ConcurrencyLimit
	}
	if req.DefaultMaxResults != nil {
		next.DefaultMaxResults = *req.DefaultMaxResults
	}
	if req.DefaultMaxPages != nil {
		next.DefaultMaxPages = *req.DefaultMaxPages
	}
	if req.DefaultFieldsLevel != "" {
		next.DefaultFieldsLevel = leads.FieldsLevel(req.DefaultFieldsLevel)
	}
	if req.PlacesAPIKey != nil {
		next.PlacesAPIKey = *req.PlacesAPIKey
	}
	if req.PlacesDailyLimit != nil {
		next.PlacesDailyLimit = *req.PlacesDailyLimit
	}

	if err := s.settings.Update(r.Context(), next); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update settings")
		return
	}
	next.PlacesAPIKey = ""
	writeJSON(w, http.StatusOK, map[string]any{"settings": next})
}
