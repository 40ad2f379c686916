package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	TrimModeInline     = "inline"
	TrimModeBackground = "background"
)

type DBConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `yaml:"conn_max_lifetime_seconds"`
}

type ReaperConfig struct {
	Probability     float64 `yaml:"probability"`
	Threshold       int64   `yaml:"threshold"`
	Batch           int     `yaml:"batch"`
	Mode            string  `yaml:"mode"`     // inline | background
	Schedule        string  `yaml:"schedule"` // cron spec for background sweeps
	LeaseTTLSeconds int     `yaml:"lease_ttl_seconds"`
}

type Config struct {
	Driver         string       `yaml:"driver"`
	DSN            string       `yaml:"dsn"`
	RedisAddr      string       `yaml:"redis_addr"` // empty disables the reaper lease
	LogLevel       string       `yaml:"log_level"`
	MetricsEnabled bool         `yaml:"metrics_enabled"`
	DB             DBConfig     `yaml:"db"`
	Reaper         ReaperConfig `yaml:"reaper"`
}

func (c DBConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeSeconds) * time.Second
}

func (c ReaperConfig) LeaseTTL() time.Duration {
	return time.Duration(c.LeaseTTLSeconds) * time.Second
}

func defaultConfig() Config {
	return Config{
		Driver:   DriverSQLite,
		DSN:      "itemledger.db",
		LogLevel: "info",
		DB: DBConfig{
			MaxOpenConns:           50,
			MaxIdleConns:           25,
			ConnMaxLifetimeSeconds: 300,
		},
		Reaper: ReaperConfig{
			Probability:     0.05,
			Threshold:       250,
			Batch:           100,
			Mode:            TrimModeInline,
			Schedule:        "@every 1m",
			LeaseTTLSeconds: 30,
		},
	}
}

// Load reads the YAML file at path (optional when empty or missing), applies
// ITEMLEDGER_* environment overrides and fills defaults.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err != nil && !os.IsNotExist(err):
			return cfg, fmt.Errorf("read %s: %w", path, err)
		case err == nil && len(data) > 0:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if raw := os.Getenv("ITEMLEDGER_DRIVER"); raw != "" {
		cfg.Driver = raw
	}
	if raw := os.Getenv("ITEMLEDGER_DSN"); raw != "" {
		cfg.DSN = raw
	}
	if raw := os.Getenv("ITEMLEDGER_REDIS_ADDR"); raw != "" {
		cfg.RedisAddr = raw
	}
	if raw := os.Getenv("ITEMLEDGER_LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("ITEMLEDGER_METRICS_ENABLED"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.MetricsEnabled = v
		}
	}
	if raw := os.Getenv("ITEMLEDGER_REAPER_MODE"); raw != "" {
		cfg.Reaper.Mode = raw
	}
	if raw := os.Getenv("ITEMLEDGER_REAPER_SCHEDULE"); raw != "" {
		cfg.Reaper.Schedule = raw
	}
	if raw := os.Getenv("ITEMLEDGER_REAPER_PROBABILITY"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.Reaper.Probability = v
		}
	}
	if raw := os.Getenv("ITEMLEDGER_REAPER_THRESHOLD"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.Reaper.Threshold = v
		}
	}
	if raw := os.Getenv("ITEMLEDGER_REAPER_BATCH"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.Reaper.Batch = v
		}
	}
}

func normalize(cfg *Config) {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	cfg.Reaper.Mode = strings.ToLower(strings.TrimSpace(cfg.Reaper.Mode))

	if cfg.Driver == "sqlite3" {
		cfg.Driver = DriverSQLite
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Reaper.Mode == "" {
		cfg.Reaper.Mode = TrimModeInline
	}
	if cfg.Reaper.Probability <= 0 {
		cfg.Reaper.Probability = 0.05
	}
	if cfg.Reaper.Threshold <= 0 {
		cfg.Reaper.Threshold = 250
	}
	if cfg.Reaper.Batch <= 0 {
		cfg.Reaper.Batch = 100
	}
	if cfg.Reaper.LeaseTTLSeconds <= 0 {
		cfg.Reaper.LeaseTTLSeconds = 30
	}
}

func validate(cfg Config) error {
	switch cfg.Driver {
	case DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unknown driver %q (supported: mysql, sqlite)", cfg.Driver)
	}
	if cfg.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	switch cfg.Reaper.Mode {
	case TrimModeInline, TrimModeBackground:
	default:
		return fmt.Errorf("unknown reaper mode %q (supported: inline, background)", cfg.Reaper.Mode)
	}
	if cfg.Reaper.Probability > 1 {
		return fmt.Errorf("reaper probability %v is above 1", cfg.Reaper.Probability)
	}
	return nil
}
