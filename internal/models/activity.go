package models

import "time"

// ActivityRecord accumulates one agent's active/inactive seconds for a
// single organizational-local day. Upserted by (agent_id, date), never
// duplicated.
type ActivityRecord struct {
	AgentID           int64      `json:"agent_id"`
	Date              string     `json:"date"` // YYYY-MM-DD
	ActiveSeconds     int64      `json:"active_seconds"`
	InactiveSeconds   int64      `json:"inactive_seconds"`
	IsCurrentlyActive bool       `json:"is_currently_active"`
	LastSessionStart  *time.Time `json:"last_session_start,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// LeaderboardEntry is one ranked row of a leaderboard projection.
type LeaderboardEntry struct {
	Rank            int     `json:"rank"`
	AgentID         int64   `json:"agent_id"`
	Score           float64 `json:"score"`
	ActiveSeconds   int64   `json:"active_seconds"`
	InactiveSeconds int64   `json:"inactive_seconds"`
}

// DaySummary is the per-type usage picture for an agent's current day,
// served as part of the break status view.
type DaySummary struct {
	Date      string             `json:"date"`
	Used      map[BreakType]bool `json:"used"`
	TotalUsed int                `json:"total_used"`
}
