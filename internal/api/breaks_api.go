package api

import (
	"net/http"
	"strconv"
	"time"

	"pulseboard/internal/metrics"
	"pulseboard/internal/models"
)

type startBreakRequest struct {
	AgentID   int64  `json:"agent_id"`
	BreakType string `json:"break_type"`
}

func (s *HTTPServer) handleStartBreak(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("breaks_start")
	if !requirePost(w, r) {
		return
	}
	var req startBreakRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.AgentID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "agent_id is required")
		return
	}
	breakType, err := models.ParseBreakType(req.BreakType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_break_type", err.Error())
		return
	}

	session, err := s.breaks.Start(r.Context(), req.AgentID, breakType, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

type pauseBreakRequest struct {
	AgentID          int64 `json:"agent_id"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

func (s *HTTPServer) handlePauseBreak(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("breaks_pause")
	if !requirePost(w, r) {
		return
	}
	var req pauseBreakRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := s.breaks.Pause(r.Context(), req.AgentID, req.RemainingSeconds, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type resumeBreakRequest struct {
	AgentID int64 `json:"agent_id"`
}

func (s *HTTPServer) handleResumeBreak(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("breaks_resume")
	if !requirePost(w, r) {
		return
	}
	var req resumeBreakRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := s.breaks.Resume(r.Context(), req.AgentID, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type endBreakRequest struct {
	AgentID   int64 `json:"agent_id"`
	SessionID int64 `json:"session_id"`
}

func (s *HTTPServer) handleEndBreak(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("breaks_end")
	if !requirePost(w, r) {
		return
	}
	var req endBreakRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := s.breaks.End(r.Context(), req.AgentID, req.SessionID, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func agentIDFromQuery(r *http.Request) int64 {
	id, err := strconv.ParseInt(r.URL.Query().Get("agent_id"), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func (s *HTTPServer) handleBreakStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("breaks_status")
	if !requireGet(w, r) {
		return
	}
	agentID := agentIDFromQuery(r)
	if agentID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "agent_id is required")
		return
	}
	status, err := s.breaks.Status(r.Context(), agentID, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *HTTPServer) handleBreakHistory(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("breaks_history")
	if !requireGet(w, r) {
		return
	}
	agentID := agentIDFromQuery(r)
	if agentID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "agent_id is required")
		return
	}
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	includeActive := r.URL.Query().Get("include_active") != "false"

	history, err := s.breaks.History(r.Context(), agentID, days, includeActive, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}
