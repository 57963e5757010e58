package database

import (
	"context"
	"database/sql"

	"pulseboard/internal/models"
)

// FindConfig returns the single active config for (agent, type), or
// ErrNoActiveConfig when none exists. Configs are owned by the
// agent-settings collaborator; this engine never writes them.
func (db *DB) FindConfig(ctx context.Context, agentID int64, breakType models.BreakType) (*models.BreakConfig, error) {
	var c models.BreakConfig
	err := db.QueryRowContext(ctx,
		`SELECT id, agent_id, break_type, window_start, window_end,
		        duration_minutes, is_active, created_at, updated_at
		 FROM break_configs
		 WHERE agent_id = ? AND break_type = ? AND is_active = 1
		 LIMIT 1`,
		agentID, breakType,
	).Scan(
		&c.ID, &c.AgentID, &c.BreakType, &c.WindowStart, &c.WindowEnd,
		&c.DurationMinutes, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNoActiveConfig
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConfigs returns all active configs for an agent.
func (db *DB) ListConfigs(ctx context.Context, agentID int64) ([]models.BreakConfig, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, agent_id, break_type, window_start, window_end,
		        duration_minutes, is_active, created_at, updated_at
		 FROM break_configs
		 WHERE agent_id = ? AND is_active = 1
		 ORDER BY break_type`,
		agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []models.BreakConfig
	for rows.Next() {
		var c models.BreakConfig
		if err := rows.Scan(
			&c.ID, &c.AgentID, &c.BreakType, &c.WindowStart, &c.WindowEnd,
			&c.DurationMinutes, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}
