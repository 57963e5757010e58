package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the sqlite connection used by the break/activity engine.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

// Sentinel errors reported by the transactional write paths. The HTTP
// layer maps these to response codes; the service layer passes them
// through untouched.
var (
	ErrOpenSessionExists = errors.New("agent already has an open break session")
	ErrBreakUsedToday    = errors.New("break type already used today")
	ErrNoActiveSession   = errors.New("no open break session for agent")
	ErrNoActiveConfig    = errors.New("no active break config for agent and type")
	ErrPauseAlreadyUsed  = errors.New("pause already used for this session")
	ErrAlreadyPaused     = errors.New("session is already paused")
	ErrNotPaused         = errors.New("session is not paused")
	ErrAlreadyEnded      = errors.New("session is already ended")
	ErrSessionNotFound   = errors.New("break session not found")
	ErrDataIntegrity     = errors.New("row violates expected invariant")
)

// NewDB opens (creating if needed) the sqlite database and bootstraps
// the schema.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL mode plus a busy timeout: mutations from an agent's multiple
	// devices land as short competing transactions.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, logger: logger}
	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		// Per-agent break allowances, one active row per (agent, type).
		// Written by the agent-settings collaborator, read-only here.
		`CREATE TABLE IF NOT EXISTS break_configs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id INTEGER NOT NULL,
			break_type TEXT NOT NULL,
			window_start TEXT NOT NULL DEFAULT '',
			window_end TEXT NOT NULL DEFAULT '',
			duration_minutes INTEGER NOT NULL DEFAULT 15,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Break sessions are append-only history; end_time IS NULL marks
		// the single open session an agent may hold.
		`CREATE TABLE IF NOT EXISTS break_sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id INTEGER NOT NULL,
			break_type TEXT NOT NULL,
			config_id INTEGER NOT NULL DEFAULT 0,
			start_time DATETIME NOT NULL,
			pause_time DATETIME,
			resume_time DATETIME,
			end_time DATETIME,
			pause_used BOOLEAN NOT NULL DEFAULT 0,
			time_remaining_at_pause INTEGER,
			duration_minutes INTEGER,
			break_date TEXT NOT NULL,
			is_expired BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (config_id) REFERENCES break_configs(id)
		)`,

		// One activity row per agent per organizational-local day.
		`CREATE TABLE IF NOT EXISTS activity_records (
			agent_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			active_seconds INTEGER NOT NULL DEFAULT 0,
			inactive_seconds INTEGER NOT NULL DEFAULT 0,
			is_currently_active BOOLEAN NOT NULL DEFAULT 0,
			last_session_start DATETIME,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (agent_id, date)
		)`,

		// Shift descriptors, written by the agent-settings collaborator.
		`CREATE TABLE IF NOT EXISTS agent_shifts (
			agent_id INTEGER PRIMARY KEY,
			shift_time TEXT NOT NULL DEFAULT '',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Collaborator-owned presence tables. The meeting and event
		// modules write these; this engine only reads the booleans the
		// mutual-exclusion guard needs.
		`CREATE TABLE IF NOT EXISTS meetings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id INTEGER NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS event_attendance (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id INTEGER NOT NULL,
			event_id INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'going',
			marked_at DATETIME NOT NULL,
			cleared_at DATETIME
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_break_configs_agent_type_active
			ON break_configs(agent_id, break_type) WHERE is_active = 1`,

		// Backstop for the single-open-session invariant: a competing
		// insert that slips past the transactional check still fails.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_break_sessions_agent_open
			ON break_sessions(agent_id) WHERE end_time IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_break_sessions_agent_date
			ON break_sessions(agent_id, break_type, break_date)`,
		`CREATE INDEX IF NOT EXISTS idx_break_sessions_start
			ON break_sessions(start_time)`,

		`CREATE INDEX IF NOT EXISTS idx_activity_date ON activity_records(date)`,
		`CREATE INDEX IF NOT EXISTS idx_meetings_agent_open
			ON meetings(agent_id) WHERE ended_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_event_attendance_agent_open
			ON event_attendance(agent_id) WHERE cleared_at IS NULL`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}

	return db.ensureNewColumns()
}

// ensureNewColumns adds columns introduced after the initial schema to
// existing deployments.
func (db *DB) ensureNewColumns() error {
	migrations := []string{
		`ALTER TABLE break_sessions ADD COLUMN is_expired BOOLEAN NOT NULL DEFAULT 0`,
		`ALTER TABLE break_sessions ADD COLUMN time_remaining_at_pause INTEGER`,
		`ALTER TABLE activity_records ADD COLUMN last_session_start DATETIME`,
	}

	for _, m := range migrations {
		_, err := db.Exec(m)
		if err != nil && !strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
			if db.logger != nil {
				db.logger.Debug().Err(err).Str("migration", m).Msg("Migration skipped")
			}
		}
	}
	return nil
}

// PingContext is used by the readiness probe.
func (db *DB) PingContext(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.DB.Close()
}
