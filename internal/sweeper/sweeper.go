// Package sweeper periodically flags still-open break sessions whose
// deadline has passed. Expiry is advisory: the sweep only ever sets the
// monotonic is_expired flag and never closes a session, so it is safe
// to run alongside live mutations.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pulseboard/internal/cache"
	"pulseboard/internal/events"
	"pulseboard/internal/metrics"
	"pulseboard/internal/models"
	"pulseboard/internal/shift"
)

// Store is the persistence surface the sweep needs.
type Store interface {
	ListOpenSessionsSince(ctx context.Context, cutoff time.Time) ([]models.BreakSession, error)
	MarkSessionExpired(ctx context.Context, sessionID int64, now time.Time) error
	GetShiftDescriptor(ctx context.Context, agentID int64) (string, error)
}

// Config holds the sweep cadence and bounds.
type Config struct {
	// Interval is how often the sweep runs.
	Interval time.Duration
	// Lookback bounds how far back open sessions are considered.
	Lookback time.Duration
	// MaxDuration is the fallback deadline for agents without a
	// configured shift.
	MaxDuration time.Duration
}

// DefaultConfig returns the default sweep configuration.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		Lookback:    7 * 24 * time.Hour,
		MaxDuration: 2 * time.Hour,
	}
}

// Sweeper runs the expiry sweep loop.
type Sweeper struct {
	config  Config
	store   Store
	cache   *cache.Cache
	bus     *events.EventBus
	loc     *time.Location
	logger  *zerolog.Logger
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

func New(config Config, store Store, c *cache.Cache, bus *events.EventBus, loc *time.Location, logger *zerolog.Logger) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.Lookback <= 0 {
		config.Lookback = 7 * 24 * time.Hour
	}
	if config.MaxDuration <= 0 {
		config.MaxDuration = 2 * time.Hour
	}
	return &Sweeper{
		config: config,
		store:  store,
		cache:  c,
		bus:    bus,
		loc:    loc,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start begins the sweep loop and blocks until the context is done or
// Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info().
		Dur("interval", s.config.Interval).
		Dur("lookback", s.config.Lookback).
		Msg("expiry sweeper started")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("expiry sweeper stopped by context")
			return
		case <-s.stopCh:
			s.logger.Info().Msg("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx, time.Now())
		}
	}
}

// Stop stops the sweep loop.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.mu.Unlock()
}

// Sweep runs one pass over the open sessions from the lookback window
// and flags the ones past their deadline. Returns how many were
// flagged.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) int {
	start := time.Now()
	cutoff := now.Add(-s.config.Lookback)

	sessions, err := s.store.ListOpenSessionsSince(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep: list open sessions failed")
		return 0
	}

	expired := 0
	for i := range sessions {
		select {
		case <-ctx.Done():
			return expired
		default:
		}

		session := &sessions[i]
		deadline, err := s.deadline(ctx, session)
		if err != nil {
			s.logger.Warn().Err(err).Int64("session_id", session.ID).Msg("sweep: deadline unresolved")
			continue
		}
		if !now.After(deadline) {
			continue
		}

		if err := s.store.MarkSessionExpired(ctx, session.ID, now); err != nil {
			s.logger.Error().Err(err).Int64("session_id", session.ID).Msg("sweep: mark expired failed")
			continue
		}
		expired++
		metrics.IncBreakExpired()
		s.cache.EvictAgent(ctx, session.AgentID)
		if s.bus != nil {
			_ = s.bus.PublishJSON(events.TypeBreakExpired, session)
		}
	}

	if expired > 0 || s.logger.GetLevel() <= zerolog.DebugLevel {
		s.logger.Info().
			Int("open", len(sessions)).
			Int("expired", expired).
			Dur("duration", time.Since(start)).
			Msg("expiry sweep completed")
	}
	return expired
}

// deadline computes when a session should have ended: the shift end of
// the day the session started, or the max-duration bound when no shift
// is configured (or the session started outside its shift).
func (s *Sweeper) deadline(ctx context.Context, session *models.BreakSession) (time.Time, error) {
	fallback := session.StartTime.Add(s.config.MaxDuration)

	descriptor, err := s.store.GetShiftDescriptor(ctx, session.AgentID)
	if err != nil {
		return time.Time{}, err
	}
	window, err := shift.Resolve(descriptor, session.StartTime, s.loc)
	if err != nil {
		// A malformed descriptor falls back to the duration bound
		// rather than exempting the session from expiry.
		s.logger.Warn().Err(err).Int64("agent_id", session.AgentID).Msg("sweep: bad shift descriptor")
		return fallback, nil
	}
	if window == nil || !window.End.After(session.StartTime) {
		return fallback, nil
	}
	return window.End, nil
}
