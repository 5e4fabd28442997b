package api

import (
	"net/http"
	"strconv"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

const (
	defaultBusinessLimit = 100
	maxBusinessLimit     = 1000
)

func (s *Server) listBusinesses(w http.ResponseWriter, r *http.Request) {
	limit := defaultBusinessLimit
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxBusinessLimit {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = n
	}

	businesses, err := s.businesses.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list businesses")
		return
	}
	if businesses == nil {
		businesses = []leads.Business{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"businesses": businesses})
}
