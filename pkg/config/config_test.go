package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"trade-sentinel/internal/entropy"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage != StorageMemory {
		t.Errorf("Storage = %q, want memory", cfg.Storage)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.StartingCapitalUSD != 1000 {
		t.Errorf("StartingCapitalUSD = %v", cfg.StartingCapitalUSD)
	}
	if cfg.DecisionDeadline() != 2*time.Second {
		t.Errorf("DecisionDeadline = %v", cfg.DecisionDeadline())
	}
	if !*cfg.CountPartialFillAsFull {
		t.Error("CountPartialFillAsFull default should be true")
	}
	if *cfg.Entropy.SuppressProbability != entropy.DefaultSuppressProbability {
		t.Errorf("SuppressProbability = %v, want %v", *cfg.Entropy.SuppressProbability, entropy.DefaultSuppressProbability)
	}
}

func TestLoadFullFile(t *testing.T) {
	path := writeConfig(t, `
storage: persistent
postgresDsn: postgres://u:p@localhost:5432/sentinel
clickhouseDsn: clickhouse://localhost:9000/sentinel
signalFeedUrl: wss://feed.example/signals
listenAddr: ":9090"
startingCapitalUsd: 5000
decisionDeadlineMs: 1500
countPartialFillAsFull: false
entropy:
  suppressProbability: 0
  identities: [exec-a, exec-b, exec-c]
cexWallets:
  JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN: binance
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage != StoragePersistent {
		t.Errorf("Storage = %q", cfg.Storage)
	}
	if *cfg.CountPartialFillAsFull {
		t.Error("CountPartialFillAsFull should be false when set explicitly")
	}
	// Explicit zero is preserved, not replaced by the default.
	if *cfg.Entropy.SuppressProbability != 0 {
		t.Errorf("SuppressProbability = %v, want 0", *cfg.Entropy.SuppressProbability)
	}
	if len(cfg.Entropy.Identities) != 3 {
		t.Errorf("Identities = %v", cfg.Entropy.Identities)
	}
	if cfg.CEXWallets["JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"] != "binance" {
		t.Errorf("CEXWallets = %v", cfg.CEXWallets)
	}
}

func TestLoadRejectsPersistentWithoutDSN(t *testing.T) {
	path := writeConfig(t, "storage: persistent\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted persistent storage without DSNs")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
storage: persistent
postgresDsn: postgres://file/db
clickhouseDsn: clickhouse://file:9000/db
`)
	t.Setenv("SENTINEL_POSTGRES_DSN", "postgres://env/db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PostgresDSN != "postgres://env/db" {
		t.Errorf("PostgresDSN = %q, want env override", cfg.PostgresDSN)
	}
}
