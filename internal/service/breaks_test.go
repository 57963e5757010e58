package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pulseboard/internal/cache"
	"pulseboard/internal/database"
	"pulseboard/internal/guard"
	"pulseboard/internal/models"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindOpenSession(ctx context.Context, agentID int64) (*models.BreakSession, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BreakSession), args.Error(1)
}

func (m *mockStore) FindSessionByID(ctx context.Context, id int64) (*models.BreakSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BreakSession), args.Error(1)
}

func (m *mockStore) FindConfig(ctx context.Context, agentID int64, bt models.BreakType) (*models.BreakConfig, error) {
	args := m.Called(ctx, agentID, bt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BreakConfig), args.Error(1)
}

func (m *mockStore) CountUsedToday(ctx context.Context, agentID int64, bt models.BreakType, localDate string) (int, error) {
	args := m.Called(ctx, agentID, bt, localDate)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) UsedTypesToday(ctx context.Context, agentID int64, localDate string) (map[models.BreakType]bool, error) {
	args := m.Called(ctx, agentID, localDate)
	return args.Get(0).(map[models.BreakType]bool), args.Error(1)
}

func (m *mockStore) CreateSession(ctx context.Context, session *models.BreakSession) error {
	return m.Called(ctx, session).Error(0)
}

func (m *mockStore) PauseOpenSession(ctx context.Context, agentID int64, remainingSeconds int, now time.Time) (*models.BreakSession, error) {
	args := m.Called(ctx, agentID, remainingSeconds, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BreakSession), args.Error(1)
}

func (m *mockStore) ResumeOpenSession(ctx context.Context, agentID int64, now time.Time) (*models.BreakSession, error) {
	args := m.Called(ctx, agentID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BreakSession), args.Error(1)
}

func (m *mockStore) EndOpenSession(ctx context.Context, agentID int64, now time.Time) (*models.BreakSession, error) {
	args := m.Called(ctx, agentID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BreakSession), args.Error(1)
}

func (m *mockStore) EndSessionByID(ctx context.Context, sessionID int64, now time.Time) (*models.BreakSession, error) {
	args := m.Called(ctx, sessionID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BreakSession), args.Error(1)
}

func (m *mockStore) ListSessions(ctx context.Context, agentID int64, since time.Time, includeActive bool) ([]models.BreakSession, error) {
	args := m.Called(ctx, agentID, since, includeActive)
	return args.Get(0).([]models.BreakSession), args.Error(1)
}

func (m *mockStore) IsInMeeting(ctx context.Context, agentID int64) (bool, error) {
	args := m.Called(ctx, agentID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) IsGoingToEvent(ctx context.Context, agentID int64) (bool, error) {
	args := m.Called(ctx, agentID)
	return args.Bool(0), args.Error(1)
}

type mockBus struct {
	mock.Mock
}

func (m *mockBus) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

var manila = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		panic(err)
	}
	return loc
}()

func newBreakService(store *mockStore, bus *mockBus) *BreakService {
	logger := zerolog.New(io.Discard)
	c := cache.New(nil, &logger)
	var pub Publisher
	if bus != nil {
		pub = bus
	}
	return NewBreakService(store, store, c, pub, manila, 10*time.Second, time.Minute, &logger)
}

func noonAt(h, m int) time.Time {
	return time.Date(2026, 3, 12, h, m, 0, 0, manila)
}

func TestBreakService_Start(t *testing.T) {
	ctx := context.Background()
	now := noonAt(12, 0)
	lunchConfig := &models.BreakConfig{ID: 3, AgentID: 7, BreakType: models.BreakLunch, DurationMinutes: 60, IsActive: true}

	t.Run("CreatesSession", func(t *testing.T) {
		store := new(mockStore)
		bus := new(mockBus)
		svc := newBreakService(store, bus)

		store.On("FindConfig", ctx, int64(7), models.BreakLunch).Return(lunchConfig, nil).Once()
		store.On("IsInMeeting", ctx, int64(7)).Return(false, nil).Once()
		store.On("IsGoingToEvent", ctx, int64(7)).Return(false, nil).Once()
		store.On("CreateSession", ctx, mock.Anything).Return(nil).Once()
		bus.On("PublishJSON", "break.started", mock.Anything).Return(nil).Once()

		session, err := svc.Start(ctx, 7, models.BreakLunch, now)
		require.NoError(t, err)
		assert.Equal(t, now, session.StartTime)
		assert.Equal(t, "2026-03-12", session.BreakDate)
		assert.Equal(t, int64(3), session.ConfigID)
		store.AssertExpectations(t)
		bus.AssertExpectations(t)
	})

	t.Run("RejectedWhenAlreadyOnBreak", func(t *testing.T) {
		store := new(mockStore)
		svc := newBreakService(store, nil)

		store.On("FindConfig", ctx, int64(7), models.BreakMorning).
			Return(&models.BreakConfig{ID: 4, BreakType: models.BreakMorning, IsActive: true}, nil).Once()
		store.On("IsInMeeting", ctx, int64(7)).Return(false, nil).Once()
		store.On("IsGoingToEvent", ctx, int64(7)).Return(false, nil).Once()
		store.On("CreateSession", ctx, mock.Anything).Return(database.ErrOpenSessionExists).Once()

		_, err := svc.Start(ctx, 7, models.BreakMorning, now)
		assert.ErrorIs(t, err, database.ErrOpenSessionExists)
		store.AssertExpectations(t)
	})

	t.Run("RejectedWhenUsedToday", func(t *testing.T) {
		store := new(mockStore)
		svc := newBreakService(store, nil)

		store.On("FindConfig", ctx, int64(7), models.BreakLunch).Return(lunchConfig, nil).Once()
		store.On("IsInMeeting", ctx, int64(7)).Return(false, nil).Once()
		store.On("IsGoingToEvent", ctx, int64(7)).Return(false, nil).Once()
		store.On("CreateSession", ctx, mock.Anything).Return(database.ErrBreakUsedToday).Once()

		_, err := svc.Start(ctx, 7, models.BreakLunch, now)
		assert.ErrorIs(t, err, database.ErrBreakUsedToday)
	})

	t.Run("RejectedWithoutConfig", func(t *testing.T) {
		store := new(mockStore)
		svc := newBreakService(store, nil)

		store.On("FindConfig", ctx, int64(7), models.BreakNightMeal).Return(nil, database.ErrNoActiveConfig).Once()

		_, err := svc.Start(ctx, 7, models.BreakNightMeal, now)
		assert.ErrorIs(t, err, database.ErrNoActiveConfig)
	})

	t.Run("RejectedWhileInMeeting", func(t *testing.T) {
		store := new(mockStore)
		svc := newBreakService(store, nil)

		store.On("FindConfig", ctx, int64(7), models.BreakLunch).Return(lunchConfig, nil).Once()
		store.On("IsInMeeting", ctx, int64(7)).Return(true, nil).Once()
		store.On("IsGoingToEvent", ctx, int64(7)).Return(false, nil).Once()

		_, err := svc.Start(ctx, 7, models.BreakLunch, now)
		assert.ErrorIs(t, err, guard.ErrInMeeting)
		store.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
	})

	t.Run("RejectedWhileGoingToEvent", func(t *testing.T) {
		store := new(mockStore)
		svc := newBreakService(store, nil)

		store.On("FindConfig", ctx, int64(7), models.BreakLunch).Return(lunchConfig, nil).Once()
		store.On("IsInMeeting", ctx, int64(7)).Return(false, nil).Once()
		store.On("IsGoingToEvent", ctx, int64(7)).Return(true, nil).Once()

		_, err := svc.Start(ctx, 7, models.BreakLunch, now)
		assert.ErrorIs(t, err, guard.ErrGoingToEvent)
	})

	t.Run("OvernightShiftBucketsToCreationDate", func(t *testing.T) {
		store := new(mockStore)
		svc := newBreakService(store, nil)

		// 01:30 Manila during a night shift still buckets to the
		// calendar date at creation.
		nightNow := time.Date(2026, 3, 13, 1, 30, 0, 0, manila)
		store.On("FindConfig", ctx, int64(9), models.BreakNightMeal).
			Return(&models.BreakConfig{ID: 8, BreakType: models.BreakNightMeal, IsActive: true}, nil).Once()
		store.On("IsInMeeting", ctx, int64(9)).Return(false, nil).Once()
		store.On("IsGoingToEvent", ctx, int64(9)).Return(false, nil).Once()
		store.On("CreateSession", ctx, mock.MatchedBy(func(s *models.BreakSession) bool {
			return s.BreakDate == "2026-03-13"
		})).Return(nil).Once()

		_, err := svc.Start(ctx, 9, models.BreakNightMeal, nightNow)
		assert.NoError(t, err)
		store.AssertExpectations(t)
	})
}

func TestBreakService_PauseResumeEnd(t *testing.T) {
	ctx := context.Background()

	t.Run("PauseRejectsNegativeRemaining", func(t *testing.T) {
		svc := newBreakService(new(mockStore), nil)
		_, err := svc.Pause(ctx, 7, -1, noonAt(12, 10))
		assert.ErrorIs(t, err, ErrNegativeRemaining)
	})

	t.Run("PausePassesThroughConflicts", func(t *testing.T) {
		store := new(mockStore)
		svc := newBreakService(store, nil)
		now := noonAt(12, 10)

		store.On("PauseOpenSession", ctx, int64(7), 300, now).Return(nil, database.ErrAlreadyPaused).Once()

		_, err := svc.Pause(ctx, 7, 300, now)
		assert.ErrorIs(t, err, database.ErrAlreadyPaused)
	})

	t.Run("ResumePassesThroughNotPaused", func(t *testing.T) {
		store := new(mockStore)
		svc := newBreakService(store, nil)
		now := noonAt(12, 15)

		store.On("ResumeOpenSession", ctx, int64(7), now).Return(nil, database.ErrNotPaused).Once()

		_, err := svc.Resume(ctx, 7, now)
		assert.ErrorIs(t, err, database.ErrNotPaused)
	})

	t.Run("EndBySessionIDWins", func(t *testing.T) {
		store := new(mockStore)
		bus := new(mockBus)
		svc := newBreakService(store, bus)
		now := noonAt(12, 20)
		end := now
		ended := &models.BreakSession{ID: 42, AgentID: 7, EndTime: &end}

		store.On("EndSessionByID", ctx, int64(42), now).Return(ended, nil).Once()
		bus.On("PublishJSON", "break.ended", ended).Return(nil).Once()

		got, err := svc.End(ctx, 7, 42, now)
		require.NoError(t, err)
		assert.Equal(t, int64(42), got.ID)
		store.AssertNotCalled(t, "EndOpenSession", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("EndTwiceIsAlreadyEnded", func(t *testing.T) {
		store := new(mockStore)
		svc := newBreakService(store, nil)
		now := noonAt(12, 25)

		store.On("EndSessionByID", ctx, int64(42), now).Return(nil, database.ErrAlreadyEnded).Once()

		_, err := svc.End(ctx, 0, 42, now)
		assert.ErrorIs(t, err, database.ErrAlreadyEnded)
	})

	t.Run("EndNeedsAgentOrSession", func(t *testing.T) {
		svc := newBreakService(new(mockStore), nil)
		_, err := svc.End(ctx, 0, 0, noonAt(12, 0))
		assert.ErrorIs(t, err, ErrMissingAgent)
	})
}

func TestBreakService_CanStartBreak(t *testing.T) {
	ctx := context.Background()
	now := noonAt(12, 0)
	cfg := &models.BreakConfig{ID: 3, BreakType: models.BreakLunch, IsActive: true}

	t.Run("Eligible", func(t *testing.T) {
		store := new(mockStore)
		svc := newBreakService(store, nil)

		store.On("FindConfig", ctx, int64(7), models.BreakLunch).Return(cfg, nil).Once()
		store.On("CountUsedToday", ctx, int64(7), models.BreakLunch, "2026-03-12").Return(0, nil).Once()
		store.On("FindOpenSession", ctx, int64(7)).Return(nil, nil).Once()

		ok, err := svc.CanStartBreak(ctx, 7, models.BreakLunch, now)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("UsedToday", func(t *testing.T) {
		store := new(mockStore)
		svc := newBreakService(store, nil)

		store.On("FindConfig", ctx, int64(7), models.BreakLunch).Return(cfg, nil).Once()
		store.On("CountUsedToday", ctx, int64(7), models.BreakLunch, "2026-03-12").Return(1, nil).Once()

		ok, err := svc.CanStartBreak(ctx, 7, models.BreakLunch, now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("MissingConfigIsAnError", func(t *testing.T) {
		store := new(mockStore)
		svc := newBreakService(store, nil)

		store.On("FindConfig", ctx, int64(7), models.BreakLunch).Return(nil, database.ErrNoActiveConfig).Once()

		_, err := svc.CanStartBreak(ctx, 7, models.BreakLunch, now)
		assert.ErrorIs(t, err, database.ErrNoActiveConfig)
	})
}

func TestBreakService_StatusCachingAndEviction(t *testing.T) {
	ctx := context.Background()
	now := noonAt(12, 0)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := zerolog.New(io.Discard)
	c := cache.New(rdb, &logger)

	store := new(mockStore)
	bus := new(mockBus)
	svc := NewBreakService(store, store, c, bus, manila, 10*time.Second, time.Minute, &logger)

	// First status read hits the store and fills the cache.
	store.On("FindOpenSession", ctx, int64(7)).Return(nil, nil).Once()
	store.On("UsedTypesToday", ctx, int64(7), "2026-03-12").
		Return(map[models.BreakType]bool{}, nil).Once()

	status, err := svc.Status(ctx, 7, now)
	require.NoError(t, err)
	assert.False(t, status.OnBreak)

	// Second read is served from the cache: no further store calls.
	status, err = svc.Status(ctx, 7, now)
	require.NoError(t, err)
	assert.False(t, status.OnBreak)
	store.AssertExpectations(t)

	// A mutation evicts the cached status before returning.
	cfg := &models.BreakConfig{ID: 3, BreakType: models.BreakLunch, IsActive: true}
	store.On("FindConfig", ctx, int64(7), models.BreakLunch).Return(cfg, nil).Once()
	store.On("IsInMeeting", ctx, int64(7)).Return(false, nil).Once()
	store.On("IsGoingToEvent", ctx, int64(7)).Return(false, nil).Once()
	store.On("CreateSession", ctx, mock.Anything).Return(nil).Once()
	bus.On("PublishJSON", "break.started", mock.Anything).Return(nil).Once()

	_, err = svc.Start(ctx, 7, models.BreakLunch, now)
	require.NoError(t, err)

	assert.False(t, mr.Exists("break:status:7"))
}

func TestBreakService_History(t *testing.T) {
	ctx := context.Background()
	now := noonAt(18, 0)
	store := new(mockStore)
	svc := newBreakService(store, nil)

	endA := noonAt(12, 30)
	thirty := 30
	fifteen := 15
	sessions := []models.BreakSession{
		{ID: 3, AgentID: 7, BreakType: models.BreakAfternoon, StartTime: noonAt(15, 0)},
		{ID: 2, AgentID: 7, BreakType: models.BreakLunch, StartTime: noonAt(12, 0), EndTime: &endA, DurationMinutes: &thirty},
		{ID: 1, AgentID: 7, BreakType: models.BreakMorning, StartTime: noonAt(9, 0), EndTime: &endA, DurationMinutes: &fifteen, IsExpired: true},
	}
	store.On("ListSessions", ctx, int64(7), mock.Anything, true).Return(sessions, nil).Once()

	history, err := svc.History(ctx, 7, 7, true, now)
	require.NoError(t, err)

	assert.Len(t, history.Active, 1)
	assert.Len(t, history.Completed, 2)
	assert.Equal(t, 2, history.Stats.CompletedCount)
	assert.Equal(t, 45, history.Stats.TotalMinutes)
	assert.Equal(t, 1, history.Stats.ExpiredCount)
}
