package api

import (
	"context"
	"net/http"
	"strings"
	"sync"

	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/types"
)

// PointsDependencies defines the interface for task ledger writes.
type PointsDependencies interface {
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)
	RecordTaskEvent(ctx context.Context, userID any, taskType string) (types.TaskResult, error)
	CreateUser(ctx context.Context, in service.NewUser) (types.UserSummary, error)
}

// PointsHandler handles task ledger requests.
type PointsHandler struct {
	deps PointsDependencies
	// event ids whose request is still running
	inFlight sync.Map
}

// NewPointsHandler creates a new points handler.
func NewPointsHandler(deps PointsDependencies) *PointsHandler {
	return &PointsHandler{deps: deps}
}

// updateRequest is the body of POST /users/update. EventID is an optional
// idempotency key.
type updateRequest struct {
	UserID   any    `json:"userId"`
	TaskType string `json:"taskType"`
	EventID  string `json:"eventId,omitempty"`
}

type duplicateResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	EventID   string `json:"eventId"`
}

// HandleUpdate handles POST /users/update and /users/update-points requests.
func (h *PointsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_points"
	if !allow(w, r, op, http.MethodPost) {
		return
	}
	var req updateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	eventID := strings.TrimSpace(req.EventID)
	if eventID != "" {
		// A replay racing the first request cannot know its outcome yet.
		if _, busy := h.inFlight.LoadOrStore(eventID, struct{}{}); busy {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusConflict, "in_progress", NewKind(op, ErrEventInFlight))
			return
		}
		defer h.inFlight.Delete(eventID)
		if h.deps.SeenAndRecord(r.Context(), eventID) {
			writeJSON(w, http.StatusOK, duplicateResponse{Status: "duplicate", Duplicate: true, EventID: eventID})
			return
		}
	}

	res, err := h.deps.RecordTaskEvent(r.Context(), req.UserID, req.TaskType)
	if err != nil {
		if eventID != "" {
			// let the client retry with the same key
			h.deps.Unrecord(r.Context(), eventID)
		}
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type createUserRequest struct {
	UserID        any    `json:"userId"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	InitialPoints int64  `json:"initialPoints"`
}

// HandleCreate handles POST /users/create requests.
func (h *PointsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_user"
	if !allow(w, r, op, http.MethodPost) {
		return
	}
	var req createUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	sum, err := h.deps.CreateUser(r.Context(), service.NewUser{
		UserID:        req.UserID,
		Username:      req.Username,
		Email:         req.Email,
		InitialPoints: req.InitialPoints,
	})
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, sum)
}
