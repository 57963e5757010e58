package api

import (
	"encoding/json"
	"net/http"
	"time"

	"pulseboard/internal/metrics"
)

type activityRequest struct {
	AgentID              int64 `json:"agent_id"`
	IsActive             bool  `json:"is_active"`
	ActiveDeltaSeconds   int64 `json:"active_delta_seconds"`
	InactiveDeltaSeconds int64 `json:"inactive_delta_seconds"`
}

// handleActivity ingests collector ticks. A payload that fails to
// parse still flips the agent to inactive when it carries a usable
// agent_id: losing a tick must degrade toward "idle", never toward
// phantom activity.
func (s *HTTPServer) handleActivity(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("activity")
	if !requirePost(w, r) {
		return
	}

	var req activityRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		req.IsActive = false
		req.ActiveDeltaSeconds = 0
		req.InactiveDeltaSeconds = 0
	}
	if req.AgentID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "agent_id is required")
		return
	}
	if !s.limiter.Allow(req.AgentID) {
		writeError(w, http.StatusTooManyRequests, "rate_limited", "tick rate exceeded")
		return
	}

	now := time.Now()
	if err := s.activity.SetActive(r.Context(), req.AgentID, req.IsActive, now); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.ActiveDeltaSeconds > 0 || req.InactiveDeltaSeconds > 0 {
		if err := s.activity.RecordTick(r.Context(), req.AgentID, req.ActiveDeltaSeconds, req.InactiveDeltaSeconds, now); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	record, err := s.activity.TodayRecord(r.Context(), req.AgentID, now)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
