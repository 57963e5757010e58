package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pulseboard/internal/cache"
	"pulseboard/internal/metrics"
	"pulseboard/internal/models"

	evt "pulseboard/internal/events"
)

// ActivityService owns the per-day activity record: the
// currently-active flag set by explicit status changes and the
// second counters fed by the client's steady tick.
type ActivityService struct {
	store  ActivityStore
	cache  *cache.Cache
	bus    Publisher
	loc    *time.Location
	logger *zerolog.Logger
}

func NewActivityService(store ActivityStore, c *cache.Cache, bus Publisher, loc *time.Location, logger *zerolog.Logger) *ActivityService {
	return &ActivityService{store: store, cache: c, bus: bus, loc: loc, logger: logger}
}

func (s *ActivityService) localDate(t time.Time) string {
	return t.In(s.loc).Format(localDateLayout)
}

// SetActive upserts today's record with the new presence flag. The
// fail-safe default is the caller's responsibility to apply at the
// parse boundary: a malformed or absent payload arrives here as
// isActive=false, so a crashed client is never mistaken for activity.
func (s *ActivityService) SetActive(ctx context.Context, agentID int64, isActive bool, now time.Time) error {
	if agentID <= 0 {
		return ErrMissingAgent
	}

	localDate := s.localDate(now)
	if err := s.store.UpsertActivityStatus(ctx, agentID, localDate, isActive, now); err != nil {
		return fmt.Errorf("set activity: %w", err)
	}

	metrics.IncActivityTick(isActive)
	s.cache.EvictAgent(ctx, agentID)
	if s.bus != nil {
		payload := map[string]any{"agent_id": agentID, "is_active": isActive, "date": localDate}
		if err := s.bus.PublishJSON(evt.TypeActivityChanged, payload); err != nil && s.logger != nil {
			s.logger.Warn().Err(err).Msg("event publish failed")
		}
	}
	return nil
}

// RecordTick accumulates the client's active/inactive second deltas
// into today's counters.
func (s *ActivityService) RecordTick(ctx context.Context, agentID int64, activeDelta, inactiveDelta int64, now time.Time) error {
	if agentID <= 0 {
		return ErrMissingAgent
	}

	if err := s.store.AddActivitySeconds(ctx, agentID, s.localDate(now), activeDelta, inactiveDelta, now); err != nil {
		return fmt.Errorf("record tick: %w", err)
	}

	s.cache.EvictAgent(ctx, agentID)
	return nil
}

// TodayRecord returns the agent's record for the current local day; a
// day with no activity yet yields a zeroed record rather than nil.
func (s *ActivityService) TodayRecord(ctx context.Context, agentID int64, now time.Time) (*models.ActivityRecord, error) {
	if agentID <= 0 {
		return nil, ErrMissingAgent
	}

	localDate := s.localDate(now)
	record, err := s.store.GetActivityRecord(ctx, agentID, localDate)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record = &models.ActivityRecord{AgentID: agentID, Date: localDate}
	}
	return record, nil
}
