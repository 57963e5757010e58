package models

import (
	"fmt"
	"time"
)

// BreakType identifies one of the scheduled break slots an agent may take
// once per organizational-local day.
type BreakType string

const (
	BreakMorning     BreakType = "morning"
	BreakLunch       BreakType = "lunch"
	BreakAfternoon   BreakType = "afternoon"
	BreakNightFirst  BreakType = "night_first"
	BreakNightMeal   BreakType = "night_meal"
	BreakNightSecond BreakType = "night_second"
)

// BreakTypes lists every known break type in display order.
var BreakTypes = []BreakType{
	BreakMorning,
	BreakLunch,
	BreakAfternoon,
	BreakNightFirst,
	BreakNightMeal,
	BreakNightSecond,
}

// ParseBreakType validates a wire value against the closed set.
func ParseBreakType(s string) (BreakType, error) {
	bt := BreakType(s)
	for _, known := range BreakTypes {
		if bt == known {
			return bt, nil
		}
	}
	return "", fmt.Errorf("unknown break type: %q", s)
}

// BreakConfig is the per-agent, per-type break allowance. Configs are
// created and edited by the agent-settings collaborator; this engine
// reads them only.
type BreakConfig struct {
	ID              int64     `json:"id"`
	AgentID         int64     `json:"agent_id"`
	BreakType       BreakType `json:"break_type"`
	WindowStart     string    `json:"window_start"` // "10:00"
	WindowEnd       string    `json:"window_end"`   // "10:30"
	DurationMinutes int       `json:"duration_minutes"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BreakSession is one agent break moving through
// Active -> {Paused <-> Active} -> Ended, with an advisory Expired flag.
type BreakSession struct {
	ID        int64     `json:"id"`
	AgentID   int64     `json:"agent_id"`
	BreakType BreakType `json:"break_type"`
	ConfigID  int64     `json:"config_id,omitempty"`

	StartTime  time.Time  `json:"start_time"`
	PauseTime  *time.Time `json:"pause_time,omitempty"`
	ResumeTime *time.Time `json:"resume_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`

	PauseUsed            bool `json:"pause_used"`
	TimeRemainingAtPause *int `json:"time_remaining_at_pause,omitempty"` // seconds, caller-supplied snapshot

	DurationMinutes *int `json:"duration_minutes,omitempty"`

	// BreakDate is the organizational-local calendar date at creation,
	// used for the daily-use-once rule. It may differ from StartTime's
	// literal date when a shift crosses midnight.
	BreakDate string `json:"break_date"` // YYYY-MM-DD

	IsExpired bool      `json:"is_expired"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOpen reports whether the session has not been ended yet.
func (s *BreakSession) IsOpen() bool {
	return s.EndTime == nil
}

// IsPaused reports whether the session is currently frozen by a pause.
func (s *BreakSession) IsPaused() bool {
	return s.PauseTime != nil && s.ResumeTime == nil && s.IsOpen()
}

// DurationAt returns elapsed break time as of now, excluding any paused
// span. Paused sessions are frozen at the instant of the pause. For an
// ended session the recorded end time caps the calculation and now is
// ignored.
func (s *BreakSession) DurationAt(now time.Time) time.Duration {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	switch {
	case s.PauseTime != nil && s.ResumeTime != nil:
		return s.PauseTime.Sub(s.StartTime) + end.Sub(*s.ResumeTime)
	case s.PauseTime != nil:
		return s.PauseTime.Sub(s.StartTime)
	default:
		return end.Sub(s.StartTime)
	}
}

// DurationMinutesAt rounds DurationAt to the nearest whole minute for
// display and for the duration_minutes column written at end.
func (s *BreakSession) DurationMinutesAt(now time.Time) int {
	return int(s.DurationAt(now).Round(time.Minute) / time.Minute)
}
