// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/tally/internal/app"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	PointsDependencies
	UserDashboardDependencies
	LeaderboardDependencies
	RankDependencies
	ActivityDependencies
	AdminDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler        *HealthHandler
	statsHandler         *StatsHandler
	pointsHandler        *PointsHandler
	userDashboardHandler *UserDashboardHandler
	leaderboardHandler   *LeaderboardHandler
	rankHandler          *RankHandler
	activityHandler      *ActivityHandler
	adminHandler         *AdminHandler
	limiter              *RateLimiter
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*Server)

// WithRateLimiter throttles the write endpoints per client.
func WithRateLimiter(l *RateLimiter) ServerOption {
	return func(s *Server) {
		s.limiter = l
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler:        NewHealthHandler(),
		statsHandler:         NewStatsHandler(deps),
		pointsHandler:        NewPointsHandler(deps),
		userDashboardHandler: NewUserDashboardHandler(deps),
		leaderboardHandler:   NewLeaderboardHandler(deps),
		rankHandler:          NewRankHandler(deps),
		activityHandler:      NewActivityHandler(deps),
		adminHandler:         NewAdminHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	// task ledger
	mux.HandleFunc("/users/update", MetricsMiddleware(s.write(s.pointsHandler.HandleUpdate, "users_update"), "users_update"))
	mux.HandleFunc("/users/update-points", MetricsMiddleware(s.write(s.pointsHandler.HandleUpdate, "users_update"), "users_update"))
	mux.HandleFunc("/users/create", MetricsMiddleware(s.write(s.pointsHandler.HandleCreate, "users_create"), "users_create"))
	mux.HandleFunc("/users/dashboard/summary", MetricsMiddleware(s.userDashboardHandler.HandleSummary, "users_dashboard_summary"))
	mux.HandleFunc("/users/dashboard/details", MetricsMiddleware(s.userDashboardHandler.HandleDetails, "users_dashboard_details"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))

	// activity ledger
	mux.HandleFunc("/activity", MetricsMiddleware(s.write(s.activityHandler.HandleRecord, "activity"), "activity"))
	mux.HandleFunc("/activities", MetricsMiddleware(s.activityHandler.HandleList, "activities"))
	mux.HandleFunc("/dashboard/summary", MetricsMiddleware(s.activityHandler.HandleSummary, "dashboard_summary"))
	mux.HandleFunc("/dashboard/details", MetricsMiddleware(s.activityHandler.HandleDetails, "dashboard_details"))

	mux.HandleFunc("/admin/data", MetricsMiddleware(s.write(s.adminHandler.HandleDeleteAll, "admin_data"), "admin_data"))
}

func (s *Server) write(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	if s.limiter == nil {
		return next
	}
	return s.limiter.Limit(next, endpoint)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFor translates service errors into an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrAlreadyExists):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, Wrap(op, err))
}

// allow answers 405 with an Allow header for other methods.
func allow(w http.ResponseWriter, r *http.Request, op, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
	return false
}

// decodeBody decodes a JSON request body keeping numbers as json.Number so
// numeric user ids survive unchanged.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}
