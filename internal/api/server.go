// Package api exposes the break/activity engine over HTTP. Handlers
// are thin: parse, call the service with an explicit now, map the
// error taxonomy to a status code.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"pulseboard/internal/database"
	"pulseboard/internal/guard"
	"pulseboard/internal/service"
)

// HTTPServer holds the services the handlers delegate to.
type HTTPServer struct {
	breaks      *service.BreakService
	activity    *service.ActivityService
	leaderboard *service.LeaderboardService
	limiter     *agentLimiter
	logger      *zerolog.Logger
}

func NewHTTPServer(
	breaks *service.BreakService,
	activity *service.ActivityService,
	leaderboard *service.LeaderboardService,
	tickRatePerMinute int,
	logger *zerolog.Logger,
) *HTTPServer {
	return &HTTPServer{
		breaks:      breaks,
		activity:    activity,
		leaderboard: leaderboard,
		limiter:     newAgentLimiter(tickRatePerMinute),
		logger:      logger,
	}
}

// Handler builds the route table wrapped with request-id and logging
// middleware.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/breaks/start", s.handleStartBreak)
	mux.HandleFunc("/api/breaks/pause", s.handlePauseBreak)
	mux.HandleFunc("/api/breaks/resume", s.handleResumeBreak)
	mux.HandleFunc("/api/breaks/end", s.handleEndBreak)
	mux.HandleFunc("/api/breaks/status", s.handleBreakStatus)
	mux.HandleFunc("/api/breaks/history", s.handleBreakHistory)
	mux.HandleFunc("/api/activity", s.handleActivity)
	mux.HandleFunc("/api/leaderboard", s.handleLeaderboard)
	return s.withRequestID(s.withLogging(mux))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}

// writeServiceError maps the engine's error taxonomy onto HTTP:
// validation 400, not-found 404, conflicts 409 (surfaced verbatim,
// never retried), guard rejections 422, integrity failures 500, and
// anything else 503 so callers know a retry is safe.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMissingAgent),
		errors.Is(err, service.ErrNegativeRemaining),
		errors.Is(err, service.ErrInvalidPeriod):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())

	case errors.Is(err, database.ErrNoActiveSession):
		writeError(w, http.StatusNotFound, "no_active_session", err.Error())
	case errors.Is(err, database.ErrNoActiveConfig):
		writeError(w, http.StatusNotFound, "no_active_config", err.Error())
	case errors.Is(err, database.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())

	case errors.Is(err, database.ErrOpenSessionExists):
		writeError(w, http.StatusConflict, "already_on_break", err.Error())
	case errors.Is(err, database.ErrBreakUsedToday):
		writeError(w, http.StatusConflict, "break_unavailable_today", err.Error())
	case errors.Is(err, database.ErrPauseAlreadyUsed):
		writeError(w, http.StatusConflict, "pause_already_used", err.Error())
	case errors.Is(err, database.ErrAlreadyPaused):
		writeError(w, http.StatusConflict, "already_paused", err.Error())
	case errors.Is(err, database.ErrNotPaused):
		writeError(w, http.StatusConflict, "not_paused", err.Error())
	case errors.Is(err, database.ErrAlreadyEnded):
		writeError(w, http.StatusConflict, "already_ended", err.Error())

	case errors.Is(err, guard.ErrInMeeting):
		writeError(w, http.StatusUnprocessableEntity, "in_meeting", err.Error())
	case errors.Is(err, guard.ErrGoingToEvent):
		writeError(w, http.StatusUnprocessableEntity, "going_to_event", err.Error())

	case errors.Is(err, database.ErrDataIntegrity):
		writeError(w, http.StatusInternalServerError, "data_integrity", err.Error())

	default:
		writeError(w, http.StatusServiceUnavailable, "dependency_unavailable",
			fmt.Sprintf("temporarily unavailable: %v", err))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return false
	}
	return true
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed; use POST")
		return false
	}
	return true
}

func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed; use GET")
		return false
	}
	return true
}
