package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 0\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/pulseboard.db", cfg.Database.Path)
	assert.Equal(t, "Asia/Manila", cfg.Breaks.Timezone)
	assert.Equal(t, 10*time.Second, cfg.StatusTTL())
	assert.Equal(t, time.Minute, cfg.HistoryTTL())
	assert.Equal(t, 2*time.Hour, cfg.MaxBreakDuration())
	assert.Equal(t, time.Minute, cfg.SweepInterval())
	assert.Equal(t, 7*24*time.Hour, cfg.SweepLookback())
	assert.Equal(t, 12, cfg.ActivityTickRate())

	t.Cleanup(func() { _ = os.RemoveAll("data") })
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("PB_REDIS_ADDR", "redis:6379")
	dir := t.TempDir()
	path := writeConfig(t, "database:\n  path: "+filepath.Join(dir, "pb.db")+"\nredis:\n  address: ${PB_REDIS_ADDR}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
}

func TestLoad_Values(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
database:
  path: `+filepath.Join(dir, "pb.db")+`
cache:
  status_ttl_seconds: 5
  history_ttl_seconds: 120
  leaderboard_ttl_seconds: 90
breaks:
  timezone: UTC
  max_duration_minutes: 60
  sweep_interval_seconds: 30
  sweep_lookback_days: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.StatusTTL())
	assert.Equal(t, 2*time.Minute, cfg.HistoryTTL())
	assert.Equal(t, 90*time.Second, cfg.LeaderboardTTL())
	assert.Equal(t, time.Hour, cfg.MaxBreakDuration())
	assert.Equal(t, 30*time.Second, cfg.SweepInterval())
	assert.Equal(t, 3*24*time.Hour, cfg.SweepLookback())
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_BadTimezone(t *testing.T) {
	path := writeConfig(t, "breaks:\n  timezone: Mars/Olympus\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
