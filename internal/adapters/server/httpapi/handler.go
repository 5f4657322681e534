// Package httpapi provides the REST HTTP adapter for the board API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/hylla/taskflow/internal/adapters/server/common"
	"github.com/hylla/taskflow/internal/app"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the API subrouter mounted under `/api`.
type Handler struct {
	service common.BoardService
	auth    *Authenticator
	logger  *log.Logger
}

// APIError represents one structured API failure response.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// SuccessEnvelope wraps one successful API payload.
type SuccessEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// NewHandler constructs one HTTP API adapter.
func NewHandler(service common.BoardService, auth *Authenticator, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Handler{
		service: service,
		auth:    auth,
		logger:  logger,
	}
}

// ServeHTTP authenticates the caller and routes one API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.UserIDFromAuthHeader(r.Header.Get("Authorization"))
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	r = r.WithContext(app.WithActor(r.Context(), app.Actor{UserID: userID}))

	parts := strings.Split(normalizePath(r.URL.Path), "/")
	switch {
	case len(parts) == 1 && parts[0] == "projects":
		switch r.Method {
		case http.MethodGet:
			h.handleListProjects(w, r)
		case http.MethodPost:
			h.handleCreateProject(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(parts) == 2 && parts[0] == "projects" && parts[1] != "":
		switch r.Method {
		case http.MethodGet:
			h.handleGetProject(w, r, parts[1])
		case http.MethodPatch:
			h.handleUpdateProject(w, r, parts[1])
		case http.MethodDelete:
			h.handleDeleteProject(w, r, parts[1])
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case len(parts) == 3 && parts[0] == "projects" && parts[1] != "":
		h.routeProjectResource(w, r, parts[1], parts[2])
	case len(parts) == 1 && parts[0] == "tasks":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleCreateTask(w, r)
	case len(parts) == 3 && parts[0] == "tasks" && parts[1] == "project" && parts[2] != "":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListBoard(w, r, parts[2])
	case len(parts) == 2 && parts[0] == "tasks" && parts[1] != "":
		switch r.Method {
		case http.MethodGet:
			h.handleGetTask(w, r, parts[1])
		case http.MethodPatch:
			h.handleUpdateTask(w, r, parts[1])
		case http.MethodDelete:
			h.handleDeleteTask(w, r, parts[1])
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case len(parts) == 3 && parts[0] == "tasks" && parts[1] != "" && parts[2] == "reorder":
		if r.Method != http.MethodPatch {
			writeMethodNotAllowed(w, http.MethodPatch)
			return
		}
		h.handleReorderTask(w, r, parts[1])
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "ROUTE_NOT_FOUND",
			Message: "endpoint not found",
		})
	}
}

// routeProjectResource serves `/projects/{id}/{resource}`.
func (h *Handler) routeProjectResource(w http.ResponseWriter, r *http.Request, projectID, resource string) {
	switch resource {
	case "members":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleAddMember(w, r, projectID)
	case "activity":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListActivity(w, r, projectID)
	case "tags":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleCreateTag(w, r, projectID)
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "ROUTE_NOT_FOUND",
			Message: "endpoint not found",
		})
	}
}

// handleListProjects serves GET `/projects?search=`.
func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListProjects(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusOK, projects)
}

// handleCreateProject serves POST `/projects`.
func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req common.CreateProjectRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	project, err := h.service.CreateProject(r.Context(), req)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusCreated, project)
}

// handleGetProject serves GET `/projects/{id}`.
func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request, projectID string) {
	detail, err := h.service.GetProject(r.Context(), projectID)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusOK, detail)
}

// handleUpdateProject serves PATCH `/projects/{id}`.
func (h *Handler) handleUpdateProject(w http.ResponseWriter, r *http.Request, projectID string) {
	var req common.UpdateProjectRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	req.ProjectID = projectID
	project, err := h.service.UpdateProject(r.Context(), req)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusOK, project)
}

// handleDeleteProject serves DELETE `/projects/{id}`.
func (h *Handler) handleDeleteProject(w http.ResponseWriter, r *http.Request, projectID string) {
	if err := h.service.DeleteProject(r.Context(), projectID); err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": projectID})
}

// handleAddMember serves POST `/projects/{id}/members`.
func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request, projectID string) {
	var req common.AddMemberRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	req.ProjectID = projectID
	member, err := h.service.AddProjectMember(r.Context(), req)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusCreated, member)
}

// handleListActivity serves GET `/projects/{id}/activity`.
func (h *Handler) handleListActivity(w http.ResponseWriter, r *http.Request, projectID string) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "VALIDATION_ERROR",
				Message: "limit must be a non-negative integer",
			})
			return
		}
		limit = parsed
	}
	entries, err := h.service.ListActivity(r.Context(), projectID, limit)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusOK, entries)
}

// handleCreateTag serves POST `/projects/{id}/tags`.
func (h *Handler) handleCreateTag(w http.ResponseWriter, r *http.Request, projectID string) {
	var req common.CreateTagRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	req.ProjectID = projectID
	tag, err := h.service.CreateTag(r.Context(), req)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusCreated, tag)
}

// handleCreateTask serves POST `/tasks`.
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req common.CreateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	task, err := h.service.CreateTask(r.Context(), req)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusCreated, task)
}

// handleListBoard serves GET `/tasks/project/{projectId}`.
func (h *Handler) handleListBoard(w http.ResponseWriter, r *http.Request, projectID string) {
	board, err := h.service.ListBoard(r.Context(), projectID)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusOK, board)
}

// handleGetTask serves GET `/tasks/{id}`.
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request, taskID string) {
	task, err := h.service.GetTask(r.Context(), taskID)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusOK, task)
}

// handleUpdateTask serves PATCH `/tasks/{id}`.
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request, taskID string) {
	var req common.UpdateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	req.TaskID = taskID
	task, err := h.service.UpdateTask(r.Context(), req)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusOK, task)
}

// handleReorderTask serves PATCH `/tasks/{id}/reorder`.
func (h *Handler) handleReorderTask(w http.ResponseWriter, r *http.Request, taskID string) {
	var req common.ReorderTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	req.TaskID = taskID
	task, err := h.service.ReorderTask(r.Context(), req)
	if err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusOK, task)
}

// handleDeleteTask serves DELETE `/tasks/{id}`.
func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request, taskID string) {
	if err := h.service.DeleteTask(r.Context(), taskID); err != nil {
		h.writeErrorFrom(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": taskID})
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func (h *Handler) writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "INTERNAL_ERROR",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrUnauthenticated):
		writeJSONError(w, http.StatusUnauthorized, APIError{
			Code:    "UNAUTHENTICATED",
			Message: "invalid or missing token",
		})
	case errors.Is(err, common.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, APIError{
			Code:    "FORBIDDEN",
			Message: "access denied",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "NOT_FOUND",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "CONFLICT",
			Message: err.Error(),
		})
	default:
		h.logger.Error("request failed", "err", err)
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "INTERNAL_ERROR",
			Message: "internal server error",
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "METHOD_NOT_ALLOWED",
		Message: "method not allowed",
	})
}

// writeData writes one success envelope.
func writeData(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, SuccessEnvelope{Success: true, Data: data})
}

// writeJSONError writes one structured error body.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, apiErr)
}

// writeJSON writes one JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"message":%q,"code":"ENCODE_ERROR"}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
