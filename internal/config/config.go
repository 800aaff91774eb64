// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-derived configuration. Command-line flags
// override every field.
type Config struct {
	// DB is the SQLite file holding the action log and tables.
	DB string `env:"UBI_DB" envDefault:"ubi.db"`

	// Contract is the account the ledger runs under.
	Contract string `env:"UBI_CONTRACT" envDefault:"ubi"`

	// Params is an optional CUE params file.
	Params string `env:"UBI_PARAMS"`

	// Accounts, when set, is the closed list of accounts that exist.
	// Empty means every well-formed name exists.
	Accounts []string `env:"UBI_ACCOUNTS" envSeparator:","`

	LogLevel  string `env:"UBI_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"UBI_LOG_FORMAT" envDefault:"text"`
}

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, err
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("UBI_LOG_FORMAT: unknown format %q", cfg.LogFormat)
	}
	return cfg, nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return 0, fmt.Errorf("UBI_LOG_LEVEL: unknown level %q", s)
	}
	return l, nil
}
