package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	Ingest   IngestConfig
	Jobs     JobsConfig
	Log      LogConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// IngestConfig holds import pipeline settings.
type IngestConfig struct {
	BatchSize       int    `mapstructure:"batch_size"`
	DefaultCurrency string `mapstructure:"default_currency"`
}

// JobsConfig holds queue and worker settings.
type JobsConfig struct {
	Workers    int
	BufferSize int `mapstructure:"buffer_size"`
	MaxRetries int `mapstructure:"max_retries"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
}

// Load reads configuration from file and env. Env var overrides use prefix TXSENTRY_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "txsentry", "txsentry.db"))
	v.SetDefault("ingest.batch_size", 100)
	v.SetDefault("ingest.default_currency", "USD")
	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.buffer_size", 256)
	v.SetDefault("jobs.max_retries", 3)
	v.SetDefault("log.level", "info")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("TXSENTRY_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "txsentry"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("TXSENTRY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := os.Getenv("TXSENTRY_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "txsentry", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("ingest.batch_size", cfg.Ingest.BatchSize)
	v.Set("ingest.default_currency", cfg.Ingest.DefaultCurrency)
	v.Set("jobs.workers", cfg.Jobs.Workers)
	v.Set("jobs.buffer_size", cfg.Jobs.BufferSize)
	v.Set("jobs.max_retries", cfg.Jobs.MaxRetries)
	v.Set("log.level", cfg.Log.Level)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
