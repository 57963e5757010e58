package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"pulseboard/internal/models"
)

const sessionColumns = `id, agent_id, break_type, config_id, start_time, pause_time,
	resume_time, end_time, pause_used, time_remaining_at_pause, duration_minutes,
	break_date, is_expired, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*models.BreakSession, error) {
	var s models.BreakSession
	var pause, resume, end sql.NullTime
	var remaining, duration sql.NullInt64
	err := row.Scan(
		&s.ID, &s.AgentID, &s.BreakType, &s.ConfigID, &s.StartTime, &pause,
		&resume, &end, &s.PauseUsed, &remaining, &duration,
		&s.BreakDate, &s.IsExpired, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if pause.Valid {
		s.PauseTime = &pause.Time
	}
	if resume.Valid {
		s.ResumeTime = &resume.Time
	}
	if end.Valid {
		s.EndTime = &end.Time
	}
	if remaining.Valid {
		v := int(remaining.Int64)
		s.TimeRemainingAtPause = &v
	}
	if duration.Valid {
		v := int(duration.Int64)
		s.DurationMinutes = &v
	}
	return &s, nil
}

// FindOpenSession returns the agent's open session, or nil when none.
func (db *DB) FindOpenSession(ctx context.Context, agentID int64) (*models.BreakSession, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM break_sessions
		 WHERE agent_id = ? AND end_time IS NULL
		 ORDER BY id DESC LIMIT 1`,
		agentID,
	)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.AgentID != agentID {
		return nil, fmt.Errorf("%w: open session %d belongs to agent %d, queried %d",
			ErrDataIntegrity, s.ID, s.AgentID, agentID)
	}
	return s, nil
}

// FindSessionByID returns a session by primary key.
func (db *DB) FindSessionByID(ctx context.Context, id int64) (*models.BreakSession, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM break_sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	return s, err
}

// CountUsedToday counts sessions of the type bucketed to the given
// organizational-local date, open or completed.
func (db *DB) CountUsedToday(ctx context.Context, agentID int64, breakType models.BreakType, localDate string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM break_sessions
		 WHERE agent_id = ? AND break_type = ? AND break_date = ?`,
		agentID, breakType, localDate,
	).Scan(&count)
	return count, err
}

// UsedTypesToday returns which break types the agent has already used
// on the given local date.
func (db *DB) UsedTypesToday(ctx context.Context, agentID int64, localDate string) (map[models.BreakType]bool, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT DISTINCT break_type FROM break_sessions
		 WHERE agent_id = ? AND break_date = ?`,
		agentID, localDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	used := make(map[models.BreakType]bool)
	for rows.Next() {
		var bt models.BreakType
		if err := rows.Scan(&bt); err != nil {
			return nil, err
		}
		used[bt] = true
	}
	return used, rows.Err()
}

// CreateSession inserts a new open session, re-validating the
// single-open-session and daily-use-once invariants inside the same
// transaction. The advisory eligibility read may be stale by the time
// this runs; the checks here are the authoritative ones.
func (db *DB) CreateSession(ctx context.Context, session *models.BreakSession) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var open int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM break_sessions WHERE agent_id = ? AND end_time IS NULL`,
		session.AgentID,
	).Scan(&open); err != nil {
		return fmt.Errorf("check open sessions: %w", err)
	}
	if open > 0 {
		return ErrOpenSessionExists
	}

	var used int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM break_sessions
		 WHERE agent_id = ? AND break_type = ? AND break_date = ?`,
		session.AgentID, session.BreakType, session.BreakDate,
	).Scan(&used); err != nil {
		return fmt.Errorf("check break usage: %w", err)
	}
	if used > 0 {
		return ErrBreakUsedToday
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO break_sessions
			(agent_id, break_type, config_id, start_time, break_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.AgentID, session.BreakType, session.ConfigID,
		session.StartTime, session.BreakDate, session.StartTime, session.StartTime,
	)
	if err != nil {
		// The partial unique index on open sessions turns a lost race
		// into a constraint failure rather than a second open session.
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return ErrOpenSessionExists
		}
		return fmt.Errorf("insert session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("session insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}

	session.ID = id
	session.CreatedAt = session.StartTime
	session.UpdatedAt = session.StartTime
	return nil
}

// PauseOpenSession applies the one-shot pause to the agent's open
// session. The conditional UPDATE either fully applies or leaves the
// row untouched; a zero row count is disambiguated into the precise
// conflict afterwards.
func (db *DB) PauseOpenSession(ctx context.Context, agentID int64, remainingSeconds int, now time.Time) (*models.BreakSession, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE break_sessions
		 SET pause_time = ?, pause_used = 1, time_remaining_at_pause = ?, updated_at = ?
		 WHERE agent_id = ? AND end_time IS NULL AND pause_used = 0 AND pause_time IS NULL`,
		now, remainingSeconds, now, agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("pause session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, db.pauseConflict(ctx, agentID)
	}
	return db.FindOpenSession(ctx, agentID)
}

func (db *DB) pauseConflict(ctx context.Context, agentID int64) error {
	open, err := db.FindOpenSession(ctx, agentID)
	if err != nil {
		return err
	}
	switch {
	case open == nil:
		return ErrNoActiveSession
	case open.IsPaused():
		return ErrAlreadyPaused
	case open.PauseUsed:
		return ErrPauseAlreadyUsed
	default:
		return ErrNoActiveSession
	}
}

// ResumeOpenSession clears a pause on the agent's open session.
func (db *DB) ResumeOpenSession(ctx context.Context, agentID int64, now time.Time) (*models.BreakSession, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE break_sessions
		 SET resume_time = ?, updated_at = ?
		 WHERE agent_id = ? AND end_time IS NULL AND pause_time IS NOT NULL AND resume_time IS NULL`,
		now, now, agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotPaused
	}
	return db.FindOpenSession(ctx, agentID)
}

// EndOpenSession closes the agent's open session, recording end_time
// and the pause-aware duration in whole minutes.
func (db *DB) EndOpenSession(ctx context.Context, agentID int64, now time.Time) (*models.BreakSession, error) {
	open, err := db.FindOpenSession(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, ErrNoActiveSession
	}
	return db.endSession(ctx, open, now)
}

// EndSessionByID closes a specific session. Ending an already-ended
// session reports ErrAlreadyEnded and changes nothing.
func (db *DB) EndSessionByID(ctx context.Context, sessionID int64, now time.Time) (*models.BreakSession, error) {
	s, err := db.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.IsOpen() {
		return nil, ErrAlreadyEnded
	}
	return db.endSession(ctx, s, now)
}

func (db *DB) endSession(ctx context.Context, s *models.BreakSession, now time.Time) (*models.BreakSession, error) {
	minutes := s.DurationMinutesAt(now)
	res, err := db.ExecContext(ctx,
		`UPDATE break_sessions
		 SET end_time = ?, duration_minutes = ?, updated_at = ?
		 WHERE id = ? AND end_time IS NULL`,
		now, minutes, now, s.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Lost a race against another end of the same session.
		return nil, ErrAlreadyEnded
	}
	return db.FindSessionByID(ctx, s.ID)
}

// ListSessions returns the agent's sessions from the trailing window,
// newest first. Open sessions are included only when includeActive is
// set.
func (db *DB) ListSessions(ctx context.Context, agentID int64, since time.Time, includeActive bool) ([]models.BreakSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM break_sessions
		WHERE agent_id = ? AND start_time >= ?`
	if !includeActive {
		query += ` AND end_time IS NOT NULL`
	}
	query += ` ORDER BY start_time DESC`

	rows, err := db.QueryContext(ctx, query, agentID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.BreakSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ListOpenSessionsSince returns every still-open session started after
// the cutoff, across all agents. Used by the expiry sweep.
func (db *DB) ListOpenSessionsSince(ctx context.Context, cutoff time.Time) ([]models.BreakSession, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM break_sessions
		 WHERE end_time IS NULL AND is_expired = 0 AND start_time >= ?
		 ORDER BY start_time ASC`,
		cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.BreakSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// MarkSessionExpired sets the advisory expiry flag. It never touches
// end_time, pause_time, or resume_time, so the sweep is safe to run
// concurrently with live mutations; the flag is monotonic.
func (db *DB) MarkSessionExpired(ctx context.Context, sessionID int64, now time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE break_sessions SET is_expired = 1, updated_at = ? WHERE id = ? AND is_expired = 0`,
		now, sessionID,
	)
	if err != nil {
		return fmt.Errorf("mark session expired: %w", err)
	}
	return nil
}
