package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Cache struct {
		StatusTTLSeconds      int `yaml:"status_ttl_seconds"`
		HistoryTTLSeconds     int `yaml:"history_ttl_seconds"`
		LeaderboardTTLSeconds int `yaml:"leaderboard_ttl_seconds"`
	} `yaml:"cache"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Breaks struct {
		Timezone            string `yaml:"timezone"`
		MaxDurationMinutes  int    `yaml:"max_duration_minutes"`
		SweepIntervalSecs   int    `yaml:"sweep_interval_seconds"`
		SweepLookbackDays   int    `yaml:"sweep_lookback_days"`
	} `yaml:"breaks"`

	Activity struct {
		TickRatePerMinute int `yaml:"tick_rate_per_minute"`
	} `yaml:"activity"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/pulseboard.db"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Breaks.Timezone == "" {
		cfg.Breaks.Timezone = "Asia/Manila"
	}

	if _, err = time.LoadLocation(cfg.Breaks.Timezone); err != nil {
		return nil, fmt.Errorf("invalid breaks.timezone %q: %w", cfg.Breaks.Timezone, err)
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location returns the organizational timezone; every "today"
// comparison in the engine happens in this location.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Breaks.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) StatusTTL() time.Duration {
	if c.Cache.StatusTTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Cache.StatusTTLSeconds) * time.Second
}

func (c *Config) HistoryTTL() time.Duration {
	if c.Cache.HistoryTTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Cache.HistoryTTLSeconds) * time.Second
}

func (c *Config) LeaderboardTTL() time.Duration {
	if c.Cache.LeaderboardTTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Cache.LeaderboardTTLSeconds) * time.Second
}

func (c *Config) MaxBreakDuration() time.Duration {
	if c.Breaks.MaxDurationMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(c.Breaks.MaxDurationMinutes) * time.Minute
}

func (c *Config) SweepInterval() time.Duration {
	if c.Breaks.SweepIntervalSecs <= 0 {
		return time.Minute
	}
	return time.Duration(c.Breaks.SweepIntervalSecs) * time.Second
}

func (c *Config) SweepLookback() time.Duration {
	days := c.Breaks.SweepLookbackDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

// ActivityTickRate bounds how often a single agent may post activity
// ticks. Expressed as events per minute for the token bucket.
func (c *Config) ActivityTickRate() int {
	if c.Activity.TickRatePerMinute <= 0 {
		return 12
	}
	return c.Activity.TickRatePerMinute
}
