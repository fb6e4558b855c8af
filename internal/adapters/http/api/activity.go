package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/types"
)

// ActivityDependencies defines the interface for the activity ledger.
type ActivityDependencies interface {
	RecordActivity(ctx context.Context, in service.ActivityInput) (types.ActivityResult, error)
	ListActivities(ctx context.Context, q service.ListQuery) (types.ActivityPage, error)
	ActivitySummary(ctx context.Context, userID any) (types.ActivitySummary, error)
	ActivityDashboard(ctx context.Context, q service.DashboardQuery) (types.ActivityDashboard, error)
}

// ActivityHandler handles activity requests.
type ActivityHandler struct {
	deps ActivityDependencies
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(deps ActivityDependencies) *ActivityHandler {
	return &ActivityHandler{deps: deps}
}

type activityRequest struct {
	UserID          any            `json:"userId"`
	ActivityType    string         `json:"activityType"`
	DifficultyLevel string         `json:"difficultyLevel"`
	Description     string         `json:"description"`
	Metadata        map[string]any `json:"metadata"`
}

// HandleRecord handles POST /activity requests.
func (h *ActivityHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_activity"
	if !allow(w, r, op, http.MethodPost) {
		return
	}
	var req activityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.RecordActivity(r.Context(), service.ActivityInput{
		UserID:          req.UserID,
		ActivityType:    req.ActivityType,
		DifficultyLevel: req.DifficultyLevel,
		Description:     req.Description,
		Metadata:        req.Metadata,
	})
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// emptyPageResponse keeps the pagination of a page without records.
type emptyPageResponse struct {
	errorResponse
	types.ActivityPage
}

// HandleList handles GET /activities requests.
func (h *ActivityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_activities"
	if !allow(w, r, op, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	lq := service.ListQuery{
		UserID:          q.Get("userId"),
		ActivityType:    q.Get("activityType"),
		DifficultyLevel: q.Get("difficultyLevel"),
	}
	var err error
	if lq.Page, err = queryInt(q, "page", 0); err == nil {
		lq.Limit, err = queryInt(q, "limit", 0)
	}
	if err == nil {
		lq.From, err = queryTime(q, "from", false)
	}
	if err == nil {
		lq.To, err = queryTime(q, "to", true)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
		return
	}

	page, err := h.deps.ListActivities(r.Context(), lq)
	if errors.Is(err, service.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, emptyPageResponse{
			errorResponse: errorResponse{Code: "not_found", Message: Wrap(op, err).Error()},
			ActivityPage:  page,
		})
		return
	}
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleSummary handles GET /dashboard/summary?userId= requests.
func (h *ActivityHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.activity_summary"
	if !allow(w, r, op, http.MethodGet) {
		return
	}
	sum, err := h.deps.ActivitySummary(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleDetails handles GET /dashboard/details requests. from/to and
// timeframe are mutually exclusive.
func (h *ActivityHandler) HandleDetails(w http.ResponseWriter, r *http.Request) {
	const op = "api.activity_details"
	if !allow(w, r, op, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	from, err := queryTime(q, "from", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
		return
	}
	to, err := queryTime(q, "to", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
		return
	}
	dash, err := h.deps.ActivityDashboard(r.Context(), service.DashboardQuery{
		UserID:    q.Get("userId"),
		From:      from,
		To:        to,
		Timeframe: q.Get("timeframe"),
	})
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}
