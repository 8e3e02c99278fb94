// Package config loads layered configuration: defaults, an optional YAML
// file, an optional .env file and CIVINIGRANI_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CIVINIGRANI_DATA_TARGET_STATE.
const EnvPrefix = "CIVINIGRANI"

// Config represents the complete application configuration
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	PRGI     PRGIConfig     `mapstructure:"prgi"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Spike    SpikeConfig    `mapstructure:"spike"`
	Anomaly  AnomalyConfig  `mapstructure:"anomaly"`
	PeerLens PeerLensConfig `mapstructure:"peerlens"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Output   OutputConfig   `mapstructure:"output"`
	Server   ServerConfig   `mapstructure:"server"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DataConfig locates the raw inputs.
type DataConfig struct {
	PDSPath           string   `mapstructure:"pds_path" validate:"required"`
	GrievanceDir      string   `mapstructure:"grievance_dir"`
	GrievancePatterns []string `mapstructure:"grievance_patterns"`
	ReceiptsPath      string   `mapstructure:"receipts_path"`
	PopulationPath    string   `mapstructure:"population_path"`
	TargetState       string   `mapstructure:"target_state" validate:"required"`
}

// PRGIConfig holds the severity thresholds.
type PRGIConfig struct {
	ModerateThreshold float64 `mapstructure:"moderate_threshold" validate:"gte=0,lte=1"`
	CriticalThreshold float64 `mapstructure:"critical_threshold" validate:"gte=0,lte=1"`
}

// RiskConfig holds leaderboard settings.
type RiskConfig struct {
	TopN         int `mapstructure:"top_n" validate:"gte=0"`
	WindowMonths int `mapstructure:"window_months" validate:"gte=1"`
}

// SpikeConfig holds grievance spike and trend alert settings.
type SpikeConfig struct {
	Sensitivity float64 `mapstructure:"sensitivity" validate:"gt=0"`
	Window      int     `mapstructure:"window" validate:"gte=1"`
	TrendFloor  float64 `mapstructure:"trend_floor" validate:"gte=0,lte=1"`
	LagMonths   int     `mapstructure:"lag_months" validate:"gte=1"`
}

// AnomalyConfig holds isolation forest settings.
type AnomalyConfig struct {
	Contamination  float64 `mapstructure:"contamination" validate:"gt=0,lte=0.5"`
	Trees          int     `mapstructure:"trees" validate:"gte=1"`
	Seed           uint64  `mapstructure:"seed"`
	HighAllocation float64 `mapstructure:"high_allocation" validate:"gt=0"`
}

// PeerLensConfig holds peer matching tolerances.
type PeerLensConfig struct {
	Alpha    float64 `mapstructure:"alpha" validate:"gt=0"`
	Beta     float64 `mapstructure:"beta" validate:"gt=0"`
	MinPeers int     `mapstructure:"min_peers" validate:"gte=1"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend       string `mapstructure:"backend" validate:"oneof=memory postgres clickhouse sqlite"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
	SQLitePath    string `mapstructure:"sqlite_path"`
}

// OutputConfig holds report destinations.
type OutputConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// ServerConfig holds long-running service settings.
type ServerConfig struct {
	MetricsAddr string        `mapstructure:"metrics_addr" validate:"required"`
	Interval    time.Duration `mapstructure:"interval"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BotToken   string        `mapstructure:"bot_token"`
	ChatID     string        `mapstructure:"chat_id"`
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// Load reads configuration from defaults, the optional file at path and the
// environment. A .env file in the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error. Variables already set are kept.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Data defaults
	v.SetDefault("data.pds_path", "./data/raw/pds_allocation_distribution.csv")
	v.SetDefault("data.grievance_dir", "./data/raw")
	v.SetDefault("data.grievance_patterns", []string{
		"pgsm_grievance_signals_*.csv",
		"up_aggregated_matches_*.csv",
	})
	v.SetDefault("data.receipts_path", "")
	v.SetDefault("data.population_path", "./data/raw/up_population.json")
	v.SetDefault("data.target_state", "Uttar Pradesh")

	v.SetDefault("prgi.moderate_threshold", 0.15)
	v.SetDefault("prgi.critical_threshold", 0.30)

	v.SetDefault("risk.top_n", 10)
	v.SetDefault("risk.window_months", 3)

	v.SetDefault("spike.sensitivity", 1.5)
	v.SetDefault("spike.window", 3)
	v.SetDefault("spike.trend_floor", 0.1)
	v.SetDefault("spike.lag_months", 1)

	v.SetDefault("anomaly.contamination", 0.05)
	v.SetDefault("anomaly.trees", 100)
	v.SetDefault("anomaly.seed", 42)
	v.SetDefault("anomaly.high_allocation", 1e6)

	v.SetDefault("peerlens.alpha", 0.15)
	v.SetDefault("peerlens.beta", 0.15)
	v.SetDefault("peerlens.min_peers", 3)

	// Storage defaults
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.clickhouse_dsn", "")
	v.SetDefault("storage.sqlite_path", "./data/civinigrani.db")

	v.SetDefault("output.dir", "./output")

	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.interval", "1h")
	v.SetDefault("server.cache_ttl", "30m")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay", "2s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.PRGI.ModerateThreshold >= c.PRGI.CriticalThreshold {
		return fmt.Errorf("prgi.moderate_threshold must be below prgi.critical_threshold")
	}

	switch c.Storage.Backend {
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for the postgres backend")
		}
	case "clickhouse":
		if c.Storage.ClickhouseDSN == "" {
			return fmt.Errorf("storage.clickhouse_dsn is required for the clickhouse backend")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	}

	if c.Server.Interval < time.Minute {
		return fmt.Errorf("server.interval must be at least 1 minute")
	}
	if c.Server.CacheTTL < 0 {
		return fmt.Errorf("server.cache_ttl must not be negative")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	return nil
}
