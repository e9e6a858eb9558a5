package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/store"
)

// enrichResponse flattens the pipeline result for the webhook caller: the
// nine projected fields sit at the top level next to the score.
type enrichResponse struct {
	EnrichmentStatus model.EnrichmentStatus `json:"enrichment_status"`
	FitScore         int                    `json:"fit_score"`
	ScoreBreakdown   *model.ScoreBreakdown  `json:"score_breakdown"`

	*model.CrmProjection

	CRMUpdateStatus     string    `json:"crm_update_status"`
	RequestID           string    `json:"request_id"`
	EnrichmentTimestamp time.Time `json:"enrichment_timestamp"`
	AuditPersisted      bool      `json:"audit_persisted"`
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var identity model.LeadIdentity
	if err := json.NewDecoder(r.Body).Decode(&identity); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := identity.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// When every source breaker is open there is nothing useful to do.
	if s.breakers != nil && s.breakers.AllOpen() {
		writeError(w, http.StatusServiceUnavailable, "all enrichment sources unavailable")
		return
	}

	res, err := s.enricher.Enrich(r.Context(), &identity)
	if err != nil {
		zap.L().Error("enrichment failed",
			zap.String("business_name", identity.BusinessName),
			zap.Error(err),
		)
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "enrichment timed out")
			return
		}
		writeError(w, http.StatusInternalServerError, "enrichment failed")
		return
	}

	writeJSON(w, http.StatusOK, enrichResponse{
		EnrichmentStatus:    res.Status,
		FitScore:            res.FitScore,
		ScoreBreakdown:      res.Breakdown,
		CrmProjection:       res.Projection,
		CRMUpdateStatus:     res.CRMUpdateStatus,
		RequestID:           res.JobID,
		EnrichmentTimestamp: res.EnrichedAt,
		AuditPersisted:      res.AuditPersisted,
	})
}

func (s *Server) handleGetEnrichment(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "audit store unavailable")
		return
	}

	id := chi.URLParam(r, "id")
	row, err := s.store.GetEnrichment(r.Context(), id)
	if err != nil {
		zap.L().Error("failed to read enrichment", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read enrichment")
		return
	}
	if row == nil {
		writeError(w, http.StatusNotFound, "enrichment not found")
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleListEnrichments(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "audit store unavailable")
		return
	}

	filter := store.EnrichmentFilter{
		SalesforceLeadID: r.URL.Query().Get("salesforce_lead_id"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		es := model.EnrichmentStatus(status)
		if !es.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = es
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	rows, err := s.store.ListEnrichments(r.Context(), filter)
	if err != nil {
		zap.L().Error("failed to list enrichments", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list enrichments")
		return
	}
	if rows == nil {
		rows = []model.AuditRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enrichments": rows,
		"count":       len(rows),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{"status": "ok"}
	if s.breakers != nil {
		health["circuit_breakers"] = s.breakers.States()
	}
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			health["status"] = "degraded"
			health["store"] = "unreachable"
		} else {
			health["store"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
