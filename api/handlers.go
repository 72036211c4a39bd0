/*
handlers.go - HTTP API handlers for the leave portal

PURPOSE:
  Exposes leave.Service over REST. Handles HTTP request/response and JSON
  serialization, and delegates every decision to the leave package.

ENDPOINTS:
  Auth:
    POST   /api/auth/login             Roster login, returns a session token
    GET    /api/me                     Current user and balance

  Requests:
    GET    /api/requests               Admin: all, employee: own (?status=)
    POST   /api/requests               Employee submission
    POST   /api/requests/{id}/approve  Admin approval
    POST   /api/requests/{id}/reject   Admin rejection

  Admin:
    GET    /api/admin/users            Roster without secrets
    GET    /api/admin/stats            Dashboard counters
    POST   /api/admin/requests         Place a request on behalf of a user

  Utility:
    GET    /api/days?start=&end=       Inclusive day-span
    GET    /api/status                 Last known datastore connectivity

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Service: leave orchestration over the configured Repository
  - Tokens:  session token signing and validation
  - Logger:  structured logger

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Bad credentials or token
  - 403: Admin role required
  - 404: Unknown user or request
  - 409: Lost seniority arbitration, request already finalized
  - 503: Datastore unreachable
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Token handling and role middleware
  - live.go: Websocket snapshot feed
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/leave-portal/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *leave.Service
	Tokens  *TokenManager
	Logger  *slog.Logger

	// Monitor is optional; without it /api/status always reports online.
	Monitor *ConnectivityMonitor

	// AllowedOrigins is checked on websocket upgrades.
	AllowedOrigins []string

	runs scenarioRuns
}

// NewHandler creates a new handler around svc.
func NewHandler(svc *leave.Service, tokens *TokenManager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Service: svc,
		Tokens:  tokens,
		Logger:  logger,
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login checks the roster and returns a session token.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.SicilNo == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "sicilNo and password are required", nil)
		return
	}

	user, err := h.Service.Login(r.Context(), req.SicilNo, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	token, expires, err := h.Tokens.GenerateToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expires, User: toUserDTO(user)})
}

// Me returns the current user with the balance summary.
// GET /api/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor, _ := Actor(r.Context())
	writeJSON(w, http.StatusOK, MeResponse{
		User:    toUserDTO(actor),
		Balance: toBalanceDTO(leave.Summarize(actor)),
	})
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// ListRequests returns requests newest first. Employees only see their own.
// GET /api/requests?status=PENDING
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	actor, _ := Actor(r.Context())

	filter := leave.RequestFilter{}
	if s := r.URL.Query().Get("status"); s != "" {
		filter.Status = leave.Status(s)
		if !filter.Status.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown status: %s", s), nil)
			return
		}
	}
	if !actor.IsAdmin() {
		filter.UserID = actor.ID
	} else if uid := r.URL.Query().Get("user_id"); uid != "" {
		filter.UserID = uid
	}

	reqs, err := h.Service.ListRequests(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// SubmitRequest runs the employee submission path for the current user.
// POST /api/requests
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	actor, _ := Actor(r.Context())

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, end, ok := parseRange(w, req.StartDate, req.EndDate)
	if !ok {
		return
	}

	res, err := h.Service.Submit(r.Context(), actor.ID, start, end)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := toSubmitResponse(res)
	if u, err := h.Service.User(r.Context(), actor.ID); err == nil {
		b := toBalanceDTO(leave.Summarize(u))
		resp.Balance = &b
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ApproveRequest approves a pending request and books its days.
// POST /api/requests/{id}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := h.Service.Approve(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// RejectRequest rejects a pending request. The body is optional.
// POST /api/requests/{id}/reject
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body DecisionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	req, err := h.Service.Reject(r.Context(), id, body.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ListUsers returns the roster without secrets.
// GET /api/admin/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.Users(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTOs(users))
}

// GetStats returns the dashboard counters.
// GET /api/admin/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(stats))
}

// PlaceRequest creates a request on behalf of a user through the direct
// path: only the date range is validated before arbitration.
// POST /api/admin/requests
func (h *Handler) PlaceRequest(w http.ResponseWriter, r *http.Request) {
	var req PlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required", nil)
		return
	}
	start, end, ok := parseRange(w, req.StartDate, req.EndDate)
	if !ok {
		return
	}

	owner, err := h.Service.User(r.Context(), req.UserID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	seniority := owner.YearsOfService
	if req.Seniority != nil {
		seniority = *req.Seniority
	}

	res, err := h.Service.Place(r.Context(), leave.LeaveRequest{
		UserID:             owner.ID,
		UserName:           owner.Name,
		StartDate:          start,
		EndDate:            end,
		SeniorityAtRequest: seniority,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubmitResponse(res))
}

// =============================================================================
// UTILITY HANDLERS
// =============================================================================

// GetDays returns the inclusive day-span of two dates in either order.
// GET /api/days?start=2024-01-01&end=2024-01-05
func (h *Handler) GetDays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, ok := parseRange(w, q.Get("start"), q.Get("end"))
	if !ok {
		return
	}
	if start.IsZero() || end.IsZero() {
		writeError(w, http.StatusBadRequest, "start and end are required", leave.ErrMissingDates)
		return
	}
	writeJSON(w, http.StatusOK, DaysResponse{
		StartDate: start.String(),
		EndDate:   end.String(),
		Days:      leave.Days(start, end),
	})
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports whether the datastore is reachable.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Repo.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Datastore unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// =============================================================================
// HELPERS
// =============================================================================

// parseRange parses two YYYY-MM-DD values. Empty strings become zero dates
// so the missing-dates check stays with the leave package.
func parseRange(w http.ResponseWriter, startStr, endStr string) (leave.Date, leave.Date, bool) {
	start, err := leave.ParseDate(startStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid start date: %s", startStr), err)
		return leave.Date{}, leave.Date{}, false
	}
	end, err := leave.ParseDate(endStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid end date: %s", endStr), err)
		return leave.Date{}, leave.Date{}, false
	}
	return start, end, true
}

// writeServiceError maps leave errors to HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var ve *leave.ValidationError
	var ae *leave.ArbitrationError

	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ve.Message, Code: ve.Code})
	case errors.As(err, &ae):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   leave.ArbitrationMessage,
			Code:    "seniority_insufficient",
			Details: ae.Error(),
		})
	case errors.Is(err, leave.ErrAlreadyFinalized):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "Request is not pending", Code: "already_finalized", Details: err.Error()})
	case errors.Is(err, leave.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid registry number or password", nil)
	case errors.Is(err, leave.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden", nil)
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case leave.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, leave.ErrStoreUnavailable):
		h.Logger.Error("datastore unavailable", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "Datastore unavailable", nil)
	default:
		h.Logger.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
