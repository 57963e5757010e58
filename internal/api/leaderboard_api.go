package api

import (
	"net/http"
	"strconv"
	"time"

	"pulseboard/internal/metrics"
	"pulseboard/internal/service"
)

func (s *HTTPServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("leaderboard")
	if !requireGet(w, r) {
		return
	}
	period := service.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = service.PeriodDaily
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.leaderboard.Get(r.Context(), period, limit, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period":  period,
		"entries": entries,
	})
}
