package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pulseboard/internal/models"
)

// UpsertActivityStatus sets the currently-active flag for the agent's
// record on the given local date, creating the row if needed and
// touching last_session_start when the agent flips to active.
func (db *DB) UpsertActivityStatus(ctx context.Context, agentID int64, localDate string, isActive bool, now time.Time) error {
	var lastStart any
	if isActive {
		lastStart = now
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO activity_records
			(agent_id, date, is_currently_active, last_session_start, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(agent_id, date) DO UPDATE SET
			is_currently_active = excluded.is_currently_active,
			last_session_start = COALESCE(excluded.last_session_start, activity_records.last_session_start),
			updated_at = excluded.updated_at`,
		agentID, localDate, isActive, lastStart, now,
	)
	if err != nil {
		return fmt.Errorf("upsert activity status: %w", err)
	}
	return nil
}

// AddActivitySeconds accumulates the client's steady tick into the
// day's counters. Deltas are clamped at zero; counters never decrease.
func (db *DB) AddActivitySeconds(ctx context.Context, agentID int64, localDate string, activeDelta, inactiveDelta int64, now time.Time) error {
	if activeDelta < 0 {
		activeDelta = 0
	}
	if inactiveDelta < 0 {
		inactiveDelta = 0
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO activity_records
			(agent_id, date, active_seconds, inactive_seconds, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(agent_id, date) DO UPDATE SET
			active_seconds = activity_records.active_seconds + excluded.active_seconds,
			inactive_seconds = activity_records.inactive_seconds + excluded.inactive_seconds,
			updated_at = excluded.updated_at`,
		agentID, localDate, activeDelta, inactiveDelta, now,
	)
	if err != nil {
		return fmt.Errorf("add activity seconds: %w", err)
	}
	return nil
}

// GetActivityRecord returns the agent's record for a local date, or nil
// when no activity has been recorded yet.
func (db *DB) GetActivityRecord(ctx context.Context, agentID int64, localDate string) (*models.ActivityRecord, error) {
	var r models.ActivityRecord
	var lastStart sql.NullTime
	err := db.QueryRowContext(ctx,
		`SELECT agent_id, date, active_seconds, inactive_seconds,
		        is_currently_active, last_session_start, updated_at
		 FROM activity_records
		 WHERE agent_id = ? AND date = ?`,
		agentID, localDate,
	).Scan(
		&r.AgentID, &r.Date, &r.ActiveSeconds, &r.InactiveSeconds,
		&r.IsCurrentlyActive, &lastStart, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lastStart.Valid {
		r.LastSessionStart = &lastStart.Time
	}
	return &r, nil
}

// ActivitySum is one agent's accumulated seconds over a date range.
type ActivitySum struct {
	AgentID         int64
	ActiveSeconds   int64
	InactiveSeconds int64
}

// SumActivity aggregates per-agent seconds over the inclusive local
// date range, feeding the leaderboard projections.
func (db *DB) SumActivity(ctx context.Context, fromDate, toDate string) ([]ActivitySum, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT agent_id, SUM(active_seconds), SUM(inactive_seconds)
		 FROM activity_records
		 WHERE date >= ? AND date <= ?
		 GROUP BY agent_id`,
		fromDate, toDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sums []ActivitySum
	for rows.Next() {
		var s ActivitySum
		if err := rows.Scan(&s.AgentID, &s.ActiveSeconds, &s.InactiveSeconds); err != nil {
			return nil, err
		}
		sums = append(sums, s)
	}
	return sums, rows.Err()
}
