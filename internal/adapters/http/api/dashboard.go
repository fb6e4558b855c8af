package api

import (
	"context"
	"net/http"
	"strings"

	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/types"
)

// UserDashboardDependencies defines the interface for points dashboards.
type UserDashboardDependencies interface {
	UserSummary(ctx context.Context, userID any) (types.UserSummary, error)
	UserDetails(ctx context.Context, userID any) (types.UserDetails, error)
	AggregateSummary(ctx context.Context, topN int) (types.AggregateSummary, error)
	TopUsersSummary(ctx context.Context, topN int) (types.TopUsersSummary, error)
	AggregateDetails(ctx context.Context, w service.AccountWindow) (types.AggregateDetails, error)
}

// UserDashboardHandler handles the points dashboard requests.
type UserDashboardHandler struct {
	deps UserDashboardDependencies
}

// NewUserDashboardHandler creates a new points dashboard handler.
func NewUserDashboardHandler(deps UserDashboardDependencies) *UserDashboardHandler {
	return &UserDashboardHandler{deps: deps}
}

// HandleSummary handles GET /users/dashboard/summary. aggregate=true totals
// every account, userId selects one user, and otherwise the top users are
// listed. top overrides the number of top users.
func (h *UserDashboardHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.user_dashboard_summary"
	if !allow(w, r, op, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	top, err := queryInt(q, "top", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
		return
	}

	var out any
	switch userID := strings.TrimSpace(q.Get("userId")); {
	case queryBool(q, "aggregate"):
		out, err = h.deps.AggregateSummary(r.Context(), top)
	case userID != "":
		out, err = h.deps.UserSummary(r.Context(), userID)
	default:
		out, err = h.deps.TopUsersSummary(r.Context(), top)
	}
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleDetails handles GET /users/dashboard/details. With userId it returns
// the user's summary, or the per task type breakdown when detailed=true.
// Without it the accounts created in the timeframe or from/to range are
// totalled.
func (h *UserDashboardHandler) HandleDetails(w http.ResponseWriter, r *http.Request) {
	const op = "api.user_dashboard_details"
	if !allow(w, r, op, http.MethodGet) {
		return
	}
	q := r.URL.Query()

	if userID := strings.TrimSpace(q.Get("userId")); userID != "" {
		var (
			out any
			err error
		)
		if queryBool(q, "detailed") {
			out, err = h.deps.UserDetails(r.Context(), userID)
		} else {
			out, err = h.deps.UserSummary(r.Context(), userID)
		}
		if err != nil {
			writeServiceError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

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
	out, err := h.deps.AggregateDetails(r.Context(), service.AccountWindow{From: from, To: to, Timeframe: q.Get("timeframe")})
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
