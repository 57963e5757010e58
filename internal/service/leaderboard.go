package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pulseboard/internal/cache"
	"pulseboard/internal/database"
	"pulseboard/internal/metrics"
	"pulseboard/internal/models"
	"pulseboard/internal/score"
)

// Period selects the accumulation window of a leaderboard projection.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

var ErrInvalidPeriod = errors.New("period must be daily, weekly, or monthly")

// LeaderboardStore aggregates activity seconds per agent over a local
// date range.
type LeaderboardStore interface {
	SumActivity(ctx context.Context, fromDate, toDate string) ([]database.ActivitySum, error)
}

// LeaderboardService derives the ranked projections from the raw
// activity records. The three periods share one formula and differ
// only in the window; none of them is an independent write path.
type LeaderboardService struct {
	store LeaderboardStore
	cache *cache.Cache
	loc   *time.Location
	ttl   time.Duration
}

func NewLeaderboardService(store LeaderboardStore, c *cache.Cache, loc *time.Location, ttl time.Duration) *LeaderboardService {
	return &LeaderboardService{store: store, cache: c, loc: loc, ttl: ttl}
}

// Get returns the ranked list for a period, limited to the top N
// agents (default 10, capped at 100).
func (s *LeaderboardService) Get(ctx context.Context, period Period, limit int, now time.Time) ([]models.LeaderboardEntry, error) {
	from, to, err := s.window(period, now)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	key := cache.LeaderboardKey(string(period), limit)
	var cached []models.LeaderboardEntry
	if s.cache.Get(ctx, key, &cached) {
		metrics.IncCacheLookup("leaderboard", true)
		return cached, nil
	}
	metrics.IncCacheLookup("leaderboard", false)

	sums, err := s.store.SumActivity(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("sum activity: %w", err)
	}

	entries := make([]models.LeaderboardEntry, 0, len(sums))
	for _, sum := range sums {
		entries = append(entries, models.LeaderboardEntry{
			AgentID:         sum.AgentID,
			Score:           score.Compute(sum.ActiveSeconds, sum.InactiveSeconds),
			ActiveSeconds:   sum.ActiveSeconds,
			InactiveSeconds: sum.InactiveSeconds,
		})
	}
	entries = score.Rank(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}

	s.cache.Set(ctx, key, entries, s.ttl)
	return entries, nil
}

// window resolves a period to an inclusive organizational-local date
// range ending today: the current day, the ISO week to date, or the
// rolling month.
func (s *LeaderboardService) window(period Period, now time.Time) (from, to string, err error) {
	local := now.In(s.loc)
	today := local.Format(localDateLayout)

	switch period {
	case PeriodDaily:
		return today, today, nil
	case PeriodWeekly:
		// ISO weeks start on Monday.
		offset := (int(local.Weekday()) + 6) % 7
		monday := local.AddDate(0, 0, -offset)
		return monday.Format(localDateLayout), today, nil
	case PeriodMonthly:
		start := local.AddDate(0, -1, 0).AddDate(0, 0, 1)
		return start.Format(localDateLayout), today, nil
	default:
		return "", "", ErrInvalidPeriod
	}
}
