package database

import (
	"context"
	"database/sql"
)

// IsInMeeting reports whether the agent has an open meeting row. The
// meetings table is written by the meeting collaborator.
func (db *DB) IsInMeeting(ctx context.Context, agentID int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM meetings WHERE agent_id = ? AND ended_at IS NULL`,
		agentID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsGoingToEvent reports whether the agent is currently marked "going"
// to an event.
func (db *DB) IsGoingToEvent(ctx context.Context, agentID int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_attendance
		 WHERE agent_id = ? AND status = 'going' AND cleared_at IS NULL`,
		agentID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetShiftDescriptor returns the agent's free-form shift descriptor,
// or "" when no shift is configured.
func (db *DB) GetShiftDescriptor(ctx context.Context, agentID int64) (string, error) {
	var descriptor string
	err := db.QueryRowContext(ctx,
		`SELECT shift_time FROM agent_shifts WHERE agent_id = ?`,
		agentID,
	).Scan(&descriptor)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return descriptor, nil
}
