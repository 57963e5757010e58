package service

import (
	"context"
	"time"

	"pulseboard/internal/models"
)

// BreakStore is the persistence surface the break state machine runs
// against. The mutating methods are atomic at the store and report the
// database package's sentinel conflicts; the reads here are advisory
// and may be stale by the time a write lands.
type BreakStore interface {
	FindOpenSession(ctx context.Context, agentID int64) (*models.BreakSession, error)
	FindSessionByID(ctx context.Context, id int64) (*models.BreakSession, error)
	FindConfig(ctx context.Context, agentID int64, breakType models.BreakType) (*models.BreakConfig, error)
	CountUsedToday(ctx context.Context, agentID int64, breakType models.BreakType, localDate string) (int, error)
	UsedTypesToday(ctx context.Context, agentID int64, localDate string) (map[models.BreakType]bool, error)

	CreateSession(ctx context.Context, session *models.BreakSession) error
	PauseOpenSession(ctx context.Context, agentID int64, remainingSeconds int, now time.Time) (*models.BreakSession, error)
	ResumeOpenSession(ctx context.Context, agentID int64, now time.Time) (*models.BreakSession, error)
	EndOpenSession(ctx context.Context, agentID int64, now time.Time) (*models.BreakSession, error)
	EndSessionByID(ctx context.Context, sessionID int64, now time.Time) (*models.BreakSession, error)

	ListSessions(ctx context.Context, agentID int64, since time.Time, includeActive bool) ([]models.BreakSession, error)
}

// ActivityStore is the persistence surface of the activity accumulator.
type ActivityStore interface {
	UpsertActivityStatus(ctx context.Context, agentID int64, localDate string, isActive bool, now time.Time) error
	AddActivitySeconds(ctx context.Context, agentID int64, localDate string, activeDelta, inactiveDelta int64, now time.Time) error
	GetActivityRecord(ctx context.Context, agentID int64, localDate string) (*models.ActivityRecord, error)
}

// Publisher pushes domain events onto the in-process bus.
type Publisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
