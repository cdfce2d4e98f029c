// Package handler exposes the analytics reports over HTTP.
package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zyxiao/pocketledger/internal/api"
	"github.com/zyxiao/pocketledger/internal/domain/analytics"
)

type AnalyticsHandler struct {
	svc    *analytics.Service
	logger *slog.Logger
}

func NewAnalyticsHandler(svc *analytics.Service, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, logger: logger}
}

// Routes mounts the analytics endpoints.
func (h *AnalyticsHandler) Routes(r chi.Router) {
	r.Get("/analytics/overview", h.Overview)
	r.Get("/analytics/trend", h.Trend)
}

func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	overview, err := h.svc.Overview(r.Context(), rng)
	if err != nil {
		h.logger.Error("failed to build analytics overview", slog.Any("error", err))
		api.Error(w, http.StatusInternalServerError, "failed to build overview")
		api.Observe("analytics", http.StatusInternalServerError)
		return
	}
	api.JSON(w, http.StatusOK, overview)
	api.Observe("analytics", http.StatusOK)
}

func (h *AnalyticsHandler) Trend(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	granularity := r.URL.Query().Get("granularity")
	points, err := h.svc.Trend(r.Context(), rng, granularity)
	if err != nil {
		if strings.Contains(err.Error(), "granularity") {
			api.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to build spending trend", slog.Any("error", err))
		api.Error(w, http.StatusInternalServerError, "failed to build trend")
		api.Observe("analytics", http.StatusInternalServerError)
		return
	}
	api.JSON(w, http.StatusOK, points)
	api.Observe("analytics", http.StatusOK)
}

func parseRange(r *http.Request) (analytics.Range, error) {
	var rng analytics.Range
	q := r.URL.Query()

	if raw := q.Get("start_date"); raw != "" {
		t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			return rng, fmt.Errorf("start_date must be YYYY-MM-DD")
		}
		rng.Start = t
	}
	if raw := q.Get("end_date"); raw != "" {
		t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			return rng, fmt.Errorf("end_date must be YYYY-MM-DD")
		}
		rng.End = t.Add(24*time.Hour - time.Nanosecond)
	}
	return rng, nil
}
