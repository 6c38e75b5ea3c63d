package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/LevelUp/pkg/httputil"
	"github.com/utafrali/LevelUp/pkg/validator"
	"github.com/utafrali/LevelUp/services/mission/internal/completion"
)

// Completer runs mission completions.
type Completer interface {
	CompleteRegular(ctx context.Context, executionID, userID, note string) (*completion.ExecutionResponse, error)
	CompletePinned(ctx context.Context, instanceID, userID, note string) (*completion.PinnedInstanceResponse, error)
}

// CompletionHandler handles HTTP requests for completing missions.
type CompletionHandler struct {
	service Completer
	logger  *slog.Logger
}

// NewCompletionHandler creates a new completion HTTP handler.
func NewCompletionHandler(svc Completer, logger *slog.Logger) *CompletionHandler {
	return &CompletionHandler{
		service: svc,
		logger:  logger,
	}
}

// CompleteRequest is the optional JSON body of both completion endpoints.
type CompleteRequest struct {
	Note string `json:"note" validate:"max=500"`
}

// CompleteExecution handles POST /api/v1/executions/{id}/complete
// @Summary Complete a mission execution
// @Tags missions
// @Accept json
// @Produce json
// @Param id path string true "Execution ID"
// @Param X-User-ID header string true "Authenticated user ID"
// @Param request body CompleteRequest false "Completion note"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/executions/{id}/complete [post]
func (h *CompletionHandler) CompleteExecution(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	resp, err := h.service.CompleteRegular(r.Context(), chi.URLParam(r, "id"), userIDFromContext(r.Context()), req.Note)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, resp)
}

// CompletePinnedInstance handles POST /api/v1/pinned-instances/{id}/complete
// @Summary Complete today's instance of a pinned mission
// @Tags missions
// @Accept json
// @Produce json
// @Param id path string true "Daily instance ID"
// @Param X-User-ID header string true "Authenticated user ID"
// @Param request body CompleteRequest false "Completion note"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/pinned-instances/{id}/complete [post]
func (h *CompletionHandler) CompletePinnedInstance(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	resp, err := h.service.CompletePinned(r.Context(), chi.URLParam(r, "id"), userIDFromContext(r.Context()), req.Note)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, resp)
}

// decode reads the optional request body. An empty body means no note.
func (h *CompletionHandler) decode(w http.ResponseWriter, r *http.Request) (CompleteRequest, bool) {
	var req CompleteRequest
	if err := validator.DecodeOptional(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return req, false
	}
	return req, true
}
