package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pulseboard/internal/cache"
	"pulseboard/internal/database"
	"pulseboard/internal/guard"
	"pulseboard/internal/metrics"
	"pulseboard/internal/models"

	evt "pulseboard/internal/events"
)

// Validation failures surfaced before any store round-trip.
var (
	ErrNegativeRemaining = errors.New("remaining seconds must not be negative")
	ErrMissingAgent      = errors.New("agent id is required")
)

const localDateLayout = "2006-01-02"

// BreakStatus is the live view of an agent's break state.
type BreakStatus struct {
	OnBreak                bool                 `json:"on_break"`
	ActiveBreak            *models.BreakSession `json:"active_break,omitempty"`
	CurrentDurationMinutes int                  `json:"current_duration_minutes,omitempty"`
	TodaySummary           models.DaySummary    `json:"today_summary"`
}

// BreakHistory is the trailing-window view of an agent's sessions.
type BreakHistory struct {
	Active    []models.BreakSession `json:"active"`
	Completed []models.BreakSession `json:"completed"`
	Stats     HistoryStats          `json:"stats"`
}

type HistoryStats struct {
	CompletedCount int `json:"completed_count"`
	TotalMinutes   int `json:"total_minutes"`
	ExpiredCount   int `json:"expired_count"`
}

// BreakService owns the break session lifecycle: eligibility, the
// start/pause/resume/end transitions, and the cached status/history
// read views.
type BreakService struct {
	store      BreakStore
	presence   guard.Presence
	cache      *cache.Cache
	bus        Publisher
	loc        *time.Location
	statusTTL  time.Duration
	historyTTL time.Duration
	logger     *zerolog.Logger
}

func NewBreakService(
	store BreakStore,
	presence guard.Presence,
	c *cache.Cache,
	bus Publisher,
	loc *time.Location,
	statusTTL, historyTTL time.Duration,
	logger *zerolog.Logger,
) *BreakService {
	return &BreakService{
		store:      store,
		presence:   presence,
		cache:      c,
		bus:        bus,
		loc:        loc,
		statusTTL:  statusTTL,
		historyTTL: historyTTL,
		logger:     logger,
	}
}

// localDate buckets an instant to the organizational-local calendar
// date used by every "today" comparison.
func (s *BreakService) localDate(t time.Time) string {
	return t.In(s.loc).Format(localDateLayout)
}

// CanStartBreak is the advisory eligibility check: no session of this
// type bucketed to today's local date and no other open session. The
// authoritative checks run transactionally inside Start; this read may
// be stale by the time the write lands.
func (s *BreakService) CanStartBreak(ctx context.Context, agentID int64, breakType models.BreakType, now time.Time) (bool, error) {
	if _, err := s.store.FindConfig(ctx, agentID, breakType); err != nil {
		return false, err
	}

	used, err := s.store.CountUsedToday(ctx, agentID, breakType, s.localDate(now))
	if err != nil {
		return false, fmt.Errorf("count usage: %w", err)
	}
	if used > 0 {
		return false, nil
	}

	open, err := s.store.FindOpenSession(ctx, agentID)
	if err != nil {
		return false, err
	}
	return open == nil, nil
}

// Start creates a new break session for the agent. Rejections:
// database.ErrNoActiveConfig, guard.ErrInMeeting, guard.ErrGoingToEvent,
// database.ErrOpenSessionExists, database.ErrBreakUsedToday.
func (s *BreakService) Start(ctx context.Context, agentID int64, breakType models.BreakType, now time.Time) (*models.BreakSession, error) {
	if agentID <= 0 {
		return nil, ErrMissingAgent
	}

	cfg, err := s.store.FindConfig(ctx, agentID, breakType)
	if err != nil {
		if errors.Is(err, database.ErrNoActiveConfig) {
			metrics.IncBreakDenied("no_config")
		}
		return nil, err
	}

	inMeeting, err := s.presence.IsInMeeting(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("meeting check: %w", err)
	}
	goingToEvent, err := s.presence.IsGoingToEvent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("event check: %w", err)
	}
	if err := guard.CanStartBreak(inMeeting, goingToEvent); err != nil {
		metrics.IncBreakDenied("mutual_exclusion")
		return nil, err
	}

	session := &models.BreakSession{
		AgentID:   agentID,
		BreakType: breakType,
		ConfigID:  cfg.ID,
		StartTime: now,
		BreakDate: s.localDate(now),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		switch {
		case errors.Is(err, database.ErrOpenSessionExists):
			metrics.IncBreakDenied("already_on_break")
		case errors.Is(err, database.ErrBreakUsedToday):
			metrics.IncBreakDenied("already_used")
		}
		return nil, err
	}

	metrics.IncBreakStarted(string(breakType))
	s.afterMutation(ctx, agentID, evt.TypeBreakStarted, session)
	return session, nil
}

// Pause freezes the agent's open session. The remaining-seconds value
// is the client's countdown snapshot, stored verbatim for resume UIs.
func (s *BreakService) Pause(ctx context.Context, agentID int64, remainingSeconds int, now time.Time) (*models.BreakSession, error) {
	if agentID <= 0 {
		return nil, ErrMissingAgent
	}
	if remainingSeconds < 0 {
		return nil, ErrNegativeRemaining
	}

	session, err := s.store.PauseOpenSession(ctx, agentID, remainingSeconds, now)
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, agentID, evt.TypeBreakPaused, session)
	return session, nil
}

// Resume unfreezes a paused session.
func (s *BreakService) Resume(ctx context.Context, agentID int64, now time.Time) (*models.BreakSession, error) {
	if agentID <= 0 {
		return nil, ErrMissingAgent
	}

	session, err := s.store.ResumeOpenSession(ctx, agentID, now)
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, agentID, evt.TypeBreakResumed, session)
	return session, nil
}

// End closes a session, addressed either by session id (preferred when
// both are present) or by the agent's open session. Ending twice
// reports database.ErrAlreadyEnded and changes nothing.
func (s *BreakService) End(ctx context.Context, agentID, sessionID int64, now time.Time) (*models.BreakSession, error) {
	var session *models.BreakSession
	var err error
	switch {
	case sessionID > 0:
		session, err = s.store.EndSessionByID(ctx, sessionID, now)
	case agentID > 0:
		session, err = s.store.EndOpenSession(ctx, agentID, now)
	default:
		return nil, ErrMissingAgent
	}
	if err != nil {
		return nil, err
	}

	metrics.IncBreakEnded()
	s.afterMutation(ctx, session.AgentID, evt.TypeBreakEnded, session)
	return session, nil
}

// Status serves the cached live view: on-break flag, the open session
// with its pause-aware running duration, and today's per-type usage.
func (s *BreakService) Status(ctx context.Context, agentID int64, now time.Time) (*BreakStatus, error) {
	if agentID <= 0 {
		return nil, ErrMissingAgent
	}

	key := cache.StatusKey(agentID)
	var cached BreakStatus
	if s.cache.Get(ctx, key, &cached) {
		metrics.IncCacheLookup("status", true)
		return &cached, nil
	}
	metrics.IncCacheLookup("status", false)

	open, err := s.store.FindOpenSession(ctx, agentID)
	if err != nil {
		return nil, err
	}

	localDate := s.localDate(now)
	used, err := s.store.UsedTypesToday(ctx, agentID, localDate)
	if err != nil {
		return nil, fmt.Errorf("usage summary: %w", err)
	}

	status := &BreakStatus{
		OnBreak:     open != nil,
		ActiveBreak: open,
		TodaySummary: models.DaySummary{
			Date:      localDate,
			Used:      used,
			TotalUsed: len(used),
		},
	}
	if open != nil {
		status.CurrentDurationMinutes = open.DurationMinutesAt(now)
	}

	s.cache.Set(ctx, key, status, s.statusTTL)
	return status, nil
}

// History serves the trailing-window view. days is clamped to [1, 90]
// with a default of 7.
func (s *BreakService) History(ctx context.Context, agentID int64, days int, includeActive bool, now time.Time) (*BreakHistory, error) {
	if agentID <= 0 {
		return nil, ErrMissingAgent
	}
	if days <= 0 {
		days = 7
	}
	if days > 90 {
		days = 90
	}

	key := cache.HistoryKey(agentID, days, includeActive)
	var cached BreakHistory
	if s.cache.Get(ctx, key, &cached) {
		metrics.IncCacheLookup("history", true)
		return &cached, nil
	}
	metrics.IncCacheLookup("history", false)

	since := now.AddDate(0, 0, -days)
	sessions, err := s.store.ListSessions(ctx, agentID, since, includeActive)
	if err != nil {
		return nil, err
	}

	history := &BreakHistory{
		Active:    []models.BreakSession{},
		Completed: []models.BreakSession{},
	}
	for _, sess := range sessions {
		if sess.IsOpen() {
			history.Active = append(history.Active, sess)
			continue
		}
		history.Completed = append(history.Completed, sess)
		history.Stats.CompletedCount++
		if sess.DurationMinutes != nil {
			history.Stats.TotalMinutes += *sess.DurationMinutes
		}
		if sess.IsExpired {
			history.Stats.ExpiredCount++
		}
	}

	s.cache.Set(ctx, key, history, s.historyTTL)
	return history, nil
}

// afterMutation applies the cache eviction contract and publishes the
// domain event. Eviction failures are absorbed by the cache layer;
// publish failures only get logged. Neither fails the mutation.
func (s *BreakService) afterMutation(ctx context.Context, agentID int64, eventType string, session *models.BreakSession) {
	s.cache.EvictAgent(ctx, agentID)
	if s.bus != nil {
		if err := s.bus.PublishJSON(eventType, session); err != nil && s.logger != nil {
			s.logger.Warn().Err(err).Str("event", eventType).Msg("event publish failed")
		}
	}
}
