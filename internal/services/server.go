package services

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/veilscan/shielded-stats-pipeline/internal/db"
	"github.com/veilscan/shielded-stats-pipeline/internal/observability/metrics"
)

// RegisterHttpRoutes mounts the health and job status endpoints on the
// metrics router. This is operational glue, not a public API.
func (s *Service) RegisterHttpRoutes() {
	metrics.RegisterHandler("/healthz", s.handleHealthz)
	metrics.RegisterHandler("/jobs/{jobKey}", s.handleJobStatus)
}

func (s *Service) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobKey := chi.URLParam(r, "jobKey")
	status, err := s.jobs.GetStatus(r.Context(), jobKey)
	if err != nil {
		if db.IsNotFoundError(err) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Str("jobKey", jobKey).Msg("Failed to load job status")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}
