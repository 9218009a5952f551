package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/carprice/internal/artifact"
	"github.com/hyperjump/carprice/internal/comparables"
	"github.com/hyperjump/carprice/internal/inference"
	"github.com/hyperjump/carprice/internal/models"
	"github.com/hyperjump/carprice/internal/registry"
	"github.com/hyperjump/carprice/pkg/utils"
)

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req models.EstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.estimates.WithLabelValues(outcomeBadRequest).Inc()
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("estimate request", zap.String("brand", req.Brand), zap.String("model", req.Model))

	start := time.Now()
	est, err := s.estimator.Estimate(r.Context(), req)
	s.metrics.latency.Observe(time.Since(start).Seconds())
	if err != nil {
		var ue *inference.UnavailableError
		switch {
		case errors.As(err, &ue):
			s.metrics.estimates.WithLabelValues(outcomeUnavailable).Inc()
			s.respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"error":  "model unavailable",
				"status": ue.Status,
			})
		case errors.Is(err, inference.ErrModelUnavailable):
			s.metrics.estimates.WithLabelValues(outcomeUnavailable).Inc()
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, inference.ErrInvalidRequest):
			s.metrics.estimates.WithLabelValues(outcomeBadRequest).Inc()
			s.respondError(w, http.StatusBadRequest, err.Error())
		default:
			s.metrics.estimates.WithLabelValues(outcomeError).Inc()
			s.logger.Error("estimate failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.metrics.estimates.WithLabelValues(outcomeOK).Inc()
	s.metrics.price.Observe(est.Estimate)

	if s.store != nil && s.config.Inference.LogPredictions {
		body, _ := json.Marshal(req)
		p := &models.Prediction{
			ModelVersion: est.ModelVersion,
			Brand:        req.Brand,
			Model:        req.Model,
			Request:      string(body),
			Estimate:     est.Estimate,
		}
		if err := s.store.LogPrediction(r.Context(), p); err != nil {
			s.logger.Warn("failed to log prediction", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, est)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"model":  string(s.status.Status().Status),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := s.status.Status()
	resp := map[string]interface{}{
		"model":                 st,
		"inference_enabled":     st.Status == artifact.StatusLoaded,
		"reference_year":        s.config.Features.ReferenceYear,
		"display_margin":        s.config.Inference.DisplayMargin,
		"comparables_enabled":   s.comparables != nil,
		"predictions_logging":   s.config.Inference.LogPredictions,
		"registry_driver":       s.config.Registry.Driver,
		"allow_reference_drift": s.config.Inference.AllowReferenceYearDrift,
	}
	if s.store != nil {
		if n, err := s.store.CountPredictions(ctx); err == nil {
			resp["predictions"] = n
		} else {
			s.logger.Error("status: count predictions failed", zap.Error(err))
		}
		run, err := s.store.LatestRun(ctx)
		switch {
		case err == nil:
			resp["latest_run"] = run
		case !errors.Is(err, registry.ErrRunNotFound):
			s.logger.Error("status: latest run failed", zap.Error(err))
		}
	}
	if n, err := utils.SizeOnDisk(s.config.Model.ArtifactPath, s.config.Comparables.IndexPath); err == nil {
		resp["disk_usage_bytes"] = n
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleComparables(w http.ResponseWriter, r *http.Request) {
	if s.comparables == nil {
		s.respondError(w, http.StatusNotImplemented, "comparables not enabled")
		return
	}
	q := r.URL.Query()
	brand, model := q.Get("brand"), q.Get("model")
	if brand == "" && model == "" {
		s.respondError(w, http.StatusBadRequest, "brand or model is required")
		return
	}
	limit := s.config.Comparables.Limit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, 100)
	}
	var opts []comparables.SearchOption
	if v := q.Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid year")
			return
		}
		opts = append(opts, comparables.NearYear(year))
	}

	start := time.Now()
	results, err := s.comparables.Search(r.Context(), brand, model, limit, opts...)
	if err != nil {
		s.logger.Error("comparables search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, &models.ComparablesResponse{
		Brand:     brand,
		Model:     model,
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusNotImplemented, "registry not enabled")
		return
	}
	limit, offset := 20, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, 100)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = n
	}
	runs, err := s.store.ListRuns(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*models.Run{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusNotImplemented, "registry not enabled")
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, registry.ErrRunNotFound) {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
