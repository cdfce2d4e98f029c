// Package handler exposes the expense domain over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zyxiao/pocketledger/internal/api"
	"github.com/zyxiao/pocketledger/internal/domain/expense"
)

type ExpenseHandler struct {
	svc    *expense.Service
	logger *slog.Logger
}

func NewExpenseHandler(svc *expense.Service, logger *slog.Logger) *ExpenseHandler {
	return &ExpenseHandler{svc: svc, logger: logger}
}

// Routes mounts the expense endpoints.
func (h *ExpenseHandler) Routes(r chi.Router) {
	r.Get("/expenses", h.List)
	r.Get("/expenses/export", h.Export)
	r.Post("/expenses/visibility", h.SetVisibility)
	r.Post("/expenses/delete", h.DeleteBatch)
	r.Post("/expenses/categories/clear", h.ClearCategories)
	r.Get("/expenses/{id}", h.Get)
	r.Patch("/expenses/{id}", h.Update)
	r.Post("/expenses/{id}/confirm", h.Confirm)
	r.Delete("/expenses/{id}", h.Delete)
}

func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := expense.ListOptions{
		Page:      api.QueryInt(r, "page", 1),
		PerPage:   api.QueryInt(r, "per_page", 50),
		SortBy:    r.URL.Query().Get("sort_by"),
		SortOrder: r.URL.Query().Get("sort_order"),
	}

	page, err := h.svc.List(r.Context(), filter, opts)
	if err != nil {
		h.fail(w, "failed to list expenses", err)
		return
	}
	api.JSON(w, http.StatusOK, page)
	api.Observe("expenses", http.StatusOK)
}

func (h *ExpenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.failLookup(w, err)
		return
	}
	api.JSON(w, http.StatusOK, rec)
}

func (h *ExpenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var params expense.UpdateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.svc.Update(r.Context(), id, params)
	if err != nil {
		if errors.Is(err, expense.ErrValidation) {
			api.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.failLookup(w, err)
		return
	}
	api.JSON(w, http.StatusOK, rec)
}

func (h *ExpenseHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		CategoryL1 string `json:"category_l1"`
		CategoryL2 string `json:"category_l2"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.svc.Confirm(r.Context(), id, body.CategoryL1, body.CategoryL2)
	if err != nil {
		if errors.Is(err, expense.ErrValidation) {
			api.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.failLookup(w, err)
		return
	}
	api.JSON(w, http.StatusOK, rec)
}

func (h *ExpenseHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs    []uuid.UUID `json:"ids"`
		Hidden bool        `json:"hidden"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n, err := h.svc.SetHidden(r.Context(), body.IDs, body.Hidden)
	if err != nil {
		if errors.Is(err, expense.ErrValidation) {
			api.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.fail(w, "failed to update visibility", err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.failLookup(w, err)
		return
	}
	api.JSON(w, http.StatusNoContent, nil)
}

func (h *ExpenseHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	ids, ok := h.batchIDs(w, r)
	if !ok {
		return
	}
	n, err := h.svc.DeleteBatch(r.Context(), ids)
	if err != nil {
		if errors.Is(err, expense.ErrValidation) {
			api.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.fail(w, "failed to delete expenses", err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *ExpenseHandler) ClearCategories(w http.ResponseWriter, r *http.Request) {
	ids, ok := h.batchIDs(w, r)
	if !ok {
		return
	}
	n, err := h.svc.ClearCategories(r.Context(), ids)
	if err != nil {
		if errors.Is(err, expense.ErrValidation) {
			api.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.fail(w, "failed to clear categories", err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *ExpenseHandler) batchIDs(w http.ResponseWriter, r *http.Request) ([]uuid.UUID, bool) {
	var body struct {
		IDs []uuid.UUID `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return body.IDs, true
}

func (h *ExpenseHandler) Export(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="expenses.csv"`)
	if err := h.svc.ExportCSV(r.Context(), w, filter); err != nil {
		// Headers are out; all we can do is log.
		h.logger.Error("failed to export expenses", slog.Any("error", err))
	}
}

func (h *ExpenseHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid expense id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *ExpenseHandler) fail(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
	api.Error(w, http.StatusInternalServerError, msg)
	api.Observe("expenses", http.StatusInternalServerError)
}

func (h *ExpenseHandler) failLookup(w http.ResponseWriter, err error) {
	if errors.Is(err, expense.ErrNotFound) {
		api.Error(w, http.StatusNotFound, "expense not found")
		return
	}
	h.fail(w, "expense operation failed", err)
}

// parseFilter reads the shared listing filter from query parameters.
func parseFilter(r *http.Request) (expense.ListFilter, error) {
	var filter expense.ListFilter
	q := r.URL.Query()

	if ch := q.Get("channel"); ch != "" {
		filter.Channel = expense.Channel(ch)
	}
	if raw := q.Get("start_date"); raw != "" {
		t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			return filter, errors.New("start_date must be YYYY-MM-DD")
		}
		filter.StartDate = &t
	}
	if raw := q.Get("end_date"); raw != "" {
		t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			return filter, errors.New("end_date must be YYYY-MM-DD")
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndDate = &end
	}
	if raw := q.Get("hidden"); raw != "" {
		hidden := raw == "true" || raw == "1"
		filter.Hidden = &hidden
	}
	if q.Get("unclassified") == "true" {
		filter.Unclassified = true
	}
	return filter, nil
}
