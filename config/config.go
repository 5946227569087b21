package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every configurable value for the tracker.
type Config struct {
	// Master servers
	Endpoints []string // redundant master-server info endpoints, e.g. http://master1:28900/info

	// Persistence
	DBPath string // path to the SQLite file, e.g. "./data/population.db"

	// Collection / export behaviour
	RetentionDays  int // trailing window kept at full resolution
	BatchSize      int // max rows per bulk insert (3 bound parameters per row)
	FetchTimeoutMS int // per-endpoint connect/response timeout

	LogLevel string // debug|info|warn|error
}

// Load reads configuration from (in decreasing priority):
//  1. environment variables (e.g. DB_PATH, RETENTION_DAYS)
//  2. a yaml file (./configs/config.yaml) if it exists.
//
// It returns a fully populated *Config or an error.
func Load() (*Config, error) {
	v := viper.New()

	// Default values – keep them sensible and minimal
	v.SetDefault("Endpoints", []string{})
	v.SetDefault("DBPath", "./data/population.db")
	v.SetDefault("RetentionDays", 7)
	v.SetDefault("BatchSize", 1000)
	v.SetDefault("FetchTimeoutMS", 2000)
	v.SetDefault("LogLevel", "info")

	// Environment variables - Viper automatically maps "_" to "." (case-insensitive)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Optional yaml file - useful for local dev or a cron host
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // ignore error - file is optional

	// Populate the struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}

	if cfg.DBPath == "" {
		return nil, fmt.Errorf("DBPath must not be empty")
	}
	if cfg.RetentionDays < 1 {
		return nil, fmt.Errorf("RetentionDays must be at least 1, got %d", cfg.RetentionDays)
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("BatchSize must be at least 1, got %d", cfg.BatchSize)
	}
	if cfg.FetchTimeoutMS < 1 {
		return nil, fmt.Errorf("FetchTimeoutMS must be at least 1, got %d", cfg.FetchTimeoutMS)
	}

	return &cfg, nil
}
