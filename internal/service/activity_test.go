package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pulseboard/internal/cache"
	"pulseboard/internal/models"
)

type mockActivityStore struct {
	mock.Mock
}

func (m *mockActivityStore) UpsertActivityStatus(ctx context.Context, agentID int64, localDate string, isActive bool, now time.Time) error {
	return m.Called(ctx, agentID, localDate, isActive, now).Error(0)
}

func (m *mockActivityStore) AddActivitySeconds(ctx context.Context, agentID int64, localDate string, activeDelta, inactiveDelta int64, now time.Time) error {
	return m.Called(ctx, agentID, localDate, activeDelta, inactiveDelta, now).Error(0)
}

func (m *mockActivityStore) GetActivityRecord(ctx context.Context, agentID int64, localDate string) (*models.ActivityRecord, error) {
	args := m.Called(ctx, agentID, localDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ActivityRecord), args.Error(1)
}

func newActivityService(store *mockActivityStore, bus *mockBus) *ActivityService {
	logger := zerolog.New(io.Discard)
	var pub Publisher
	if bus != nil {
		pub = bus
	}
	return NewActivityService(store, cache.New(nil, &logger), pub, manila, &logger)
}

func TestActivityService_SetActive(t *testing.T) {
	ctx := context.Background()
	now := noonAt(9, 0)

	t.Run("UpsertsByLocalDate", func(t *testing.T) {
		store := new(mockActivityStore)
		bus := new(mockBus)
		svc := newActivityService(store, bus)

		store.On("UpsertActivityStatus", ctx, int64(7), "2026-03-12", true, now).Return(nil).Once()
		bus.On("PublishJSON", "activity.changed", mock.Anything).Return(nil).Once()

		require.NoError(t, svc.SetActive(ctx, 7, true, now))
		store.AssertExpectations(t)
		bus.AssertExpectations(t)
	})

	t.Run("InactiveFlag", func(t *testing.T) {
		store := new(mockActivityStore)
		svc := newActivityService(store, nil)

		store.On("UpsertActivityStatus", ctx, int64(7), "2026-03-12", false, now).Return(nil).Once()

		require.NoError(t, svc.SetActive(ctx, 7, false, now))
	})

	t.Run("RejectsMissingAgent", func(t *testing.T) {
		svc := newActivityService(new(mockActivityStore), nil)
		assert.ErrorIs(t, svc.SetActive(ctx, 0, true, now), ErrMissingAgent)
	})
}

func TestActivityService_RecordTick(t *testing.T) {
	ctx := context.Background()
	now := noonAt(9, 5)
	store := new(mockActivityStore)
	svc := newActivityService(store, nil)

	store.On("AddActivitySeconds", ctx, int64(7), "2026-03-12", int64(60), int64(0), now).Return(nil).Once()

	require.NoError(t, svc.RecordTick(ctx, 7, 60, 0, now))
	store.AssertExpectations(t)
}

func TestActivityService_TodayRecord(t *testing.T) {
	ctx := context.Background()
	now := noonAt(9, 5)

	t.Run("ExistingRecord", func(t *testing.T) {
		store := new(mockActivityStore)
		svc := newActivityService(store, nil)
		record := &models.ActivityRecord{AgentID: 7, Date: "2026-03-12", ActiveSeconds: 1200}

		store.On("GetActivityRecord", ctx, int64(7), "2026-03-12").Return(record, nil).Once()

		got, err := svc.TodayRecord(ctx, 7, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1200), got.ActiveSeconds)
	})

	t.Run("NoActivityYetYieldsZeroRecord", func(t *testing.T) {
		store := new(mockActivityStore)
		svc := newActivityService(store, nil)

		store.On("GetActivityRecord", ctx, int64(7), "2026-03-12").Return(nil, nil).Once()

		got, err := svc.TodayRecord(ctx, 7, now)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.ActiveSeconds)
		assert.False(t, got.IsCurrentlyActive)
	})
}
