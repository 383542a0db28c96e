// Package handlers exposes the diet job use cases over JSON.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/alchemorsel/dietgen/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/dietgen/internal/ports/inbound"
	apperrors "github.com/alchemorsel/dietgen/pkg/errors"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// DietJobHandlers serves the job and diet routes. Every route expects the
// caller set by middleware.AuthenticateAPI.
type DietJobHandlers struct {
	service inbound.DietJobService
	logger  *zap.Logger
}

// NewDietJobHandlers creates the job handlers
func NewDietJobHandlers(service inbound.DietJobService, logger *zap.Logger) *DietJobHandlers {
	return &DietJobHandlers{service: service, logger: logger.Named("diet-job-handlers")}
}

// Routes mounts the handlers under the current router.
func (h *DietJobHandlers) Routes(r chi.Router) {
	r.Post("/diet-jobs", h.CreateJob)
	r.Get("/diet-jobs/{id}", h.GetJob)
	r.Post("/diet-jobs/{id}/cancel", h.CancelJob)
	r.Get("/diets/{id}", h.GetDiet)
	r.Post("/diets/{id}/recalculate", h.RecalculateDiet)
}

// CreateJob handles POST /diet-jobs
func (h *DietJobHandlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, r, apperrors.NewForbiddenError(""))
		return
	}

	var cmd inbound.CreateJobCommand
	if err := decodeJSON(w, r, &cmd); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	cmd.UserID = userID

	result, err := h.service.CreateJob(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, "create job", err)
		return
	}
	w.Header().Set("Location", "/api/v1/diet-jobs/"+result.JobID)
	middleware.WriteJSON(w, http.StatusAccepted, result)
}

// GetJob handles GET /diet-jobs/{id}
func (h *DietJobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	dto, err := h.service.GetJob(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.fail(w, r, "get job", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto)
}

// CancelJob handles POST /diet-jobs/{id}/cancel
func (h *DietJobHandlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	if err := h.service.CancelJob(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		h.fail(w, r, "cancel job", err)
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, map[string]bool{"success": true})
}

// GetDiet handles GET /diets/{id}
func (h *DietJobHandlers) GetDiet(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	d, err := h.service.GetDiet(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.fail(w, r, "get diet", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, d)
}

// RecalculateDiet handles POST /diets/{id}/recalculate
func (h *DietJobHandlers) RecalculateDiet(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	d, err := h.service.RecalculateDiet(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.fail(w, r, "recalculate diet", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, d)
}

func (h *DietJobHandlers) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	appErr := apperrors.Wrap(err, op)
	if appErr.StatusCode() >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("operation", op),
			zap.String("code", string(appErr.Code)),
			zap.String("details", appErr.Details),
			zap.Error(appErr.Cause))
	}
	middleware.WriteError(w, r, appErr)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperrors.NewValidationError("request body is empty")
		case errors.As(err, &maxErr):
			return apperrors.NewValidationError("request body is too large")
		default:
			return apperrors.NewValidationError("malformed JSON body")
		}
	}
	return nil
}
