package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	MetricsPort int    `toml:"metrics_port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// postgres (local workouts store)
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`

	// redis (sessions, merged set cache, relay event cache, rate limiting)
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	// external workout sources
	HealthGatewayURL    string `toml:"health_gateway_url"`
	NostrGatewayURL     string `toml:"nostr_gateway_url"`
	HealthWindowDays    int    `toml:"health_window_days"`
	SourceTimeoutSecs   int    `toml:"source_timeout_seconds"`
	MergedCacheTTLMins  int    `toml:"merged_cache_ttl_minutes"`
	StartTimeToleranceM int    `toml:"start_time_tolerance_minutes"`
	// relative tolerances, e.g. 0.1 == 10%
	DistanceTolerance       float64 `toml:"distance_tolerance"`
	RecordDistanceTolerance float64 `toml:"record_distance_tolerance"`

	// IANA timezone used for streak day boundaries; empty -> system local
	StreakTimezone string `toml:"streak_timezone"`

	LoginRateLimitAllowedPerMin int `toml:"login_rate_limit_allowed_per_min"`
}

func (c *Config) SourceTimeout() time.Duration {
	if c.SourceTimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.SourceTimeoutSecs) * time.Second
}

func (c *Config) MergedCacheTTL() time.Duration {
	if c.MergedCacheTTLMins <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.MergedCacheTTLMins) * time.Minute
}

func (c *Config) StartTimeTolerance() time.Duration {
	if c.StartTimeToleranceM <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.StartTimeToleranceM) * time.Minute
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

func Load(env, path string) (*Config, error) {
	var tomlConfig Toml
	if _, err := toml.DecodeFile(path, &tomlConfig); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := tomlConfig.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config section missing for env: %s", env)
	}

	cfg.Environment = env
	return cfg, nil
}
