// Package config loads the service configuration from a YAML file with
// environment overrides for secrets. Exit-rule thresholds are
// intentionally absent: they are compiled in and cannot be disabled.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"trade-sentinel/internal/entropy"
)

// Storage selects the persistence backend.
type Storage string

const (
	StorageMemory     Storage = "memory"
	StoragePersistent Storage = "persistent"
)

// Config is the top-level service configuration.
type Config struct {
	// Storage: "memory" for a single-process run, "persistent" for
	// postgres + clickhouse.
	Storage Storage `yaml:"storage"`

	PostgresDSN   string `yaml:"postgresDsn"`
	ClickhouseDSN string `yaml:"clickhouseDsn"`

	// SignalFeedURL is the WebSocket endpoint delivering signals.
	SignalFeedURL string `yaml:"signalFeedUrl"`

	// OracleURL is the HTTP endpoint serving market facts and pre-trade
	// simulations.
	OracleURL string `yaml:"oracleUrl"`

	// ListenAddr serves /metrics and the risk control endpoints.
	ListenAddr string `yaml:"listenAddr"`

	StartingCapitalUSD float64 `yaml:"startingCapitalUsd"`

	// DecisionDeadlineMs bounds one admission decision end to end.
	DecisionDeadlineMs int `yaml:"decisionDeadlineMs"`

	// CountPartialFillAsFull keeps the cooldown slot on partial fills.
	// Pointer so the default (true) survives an absent key.
	CountPartialFillAsFull *bool `yaml:"countPartialFillAsFull"`

	Entropy EntropyConfig `yaml:"entropy"`

	// CEXWallets maps exchange hot-wallet address -> exchange name.
	CEXWallets map[string]string `yaml:"cexWallets"`
}

// EntropyConfig tunes the post-admission entropy layer.
type EntropyConfig struct {
	// SuppressProbability: pointer so an explicit 0 is distinguishable
	// from an absent key (which gets the default).
	SuppressProbability *float64 `yaml:"suppressProbability"`
	Identities          []string `yaml:"identities"`
}

// Load reads the YAML file at path, applies .env and environment
// overrides, and validates. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	// Best effort; a missing .env is not an error.
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Secrets come from the environment when set.
	if v := os.Getenv("SENTINEL_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("SENTINEL_CLICKHOUSE_DSN"); v != "" {
		cfg.ClickhouseDSN = v
	}
	if v := os.Getenv("SENTINEL_SIGNAL_FEED_URL"); v != "" {
		cfg.SignalFeedURL = v
	}
	if v := os.Getenv("SENTINEL_ORACLE_URL"); v != "" {
		cfg.OracleURL = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate applies defaults and rejects inconsistent settings.
func (c *Config) Validate() error {
	if c.Storage == "" {
		c.Storage = StorageMemory
	}
	switch c.Storage {
	case StorageMemory:
	case StoragePersistent:
		if c.PostgresDSN == "" {
			return fmt.Errorf("persistent storage requires postgresDsn")
		}
		if c.ClickhouseDSN == "" {
			return fmt.Errorf("persistent storage requires clickhouseDsn")
		}
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}

	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.StartingCapitalUSD <= 0 {
		c.StartingCapitalUSD = 1000
	}
	if c.DecisionDeadlineMs <= 0 {
		c.DecisionDeadlineMs = 2000
	}
	if c.CountPartialFillAsFull == nil {
		def := true
		c.CountPartialFillAsFull = &def
	}
	if c.Entropy.SuppressProbability == nil {
		def := entropy.DefaultSuppressProbability
		c.Entropy.SuppressProbability = &def
	}
	if p := *c.Entropy.SuppressProbability; p < 0 || p > 1 {
		return fmt.Errorf("suppressProbability %v out of [0,1]", p)
	}
	return nil
}

// DecisionDeadline returns the deadline as a duration.
func (c *Config) DecisionDeadline() time.Duration {
	return time.Duration(c.DecisionDeadlineMs) * time.Millisecond
}
