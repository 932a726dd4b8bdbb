package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverSQLite)
	}
	if cfg.Business.DefaultAccountName != "Efectivo" {
		t.Errorf("DefaultAccountName = %q, want Efectivo", cfg.Business.DefaultAccountName)
	}
	if cfg.Business.DriftTolerance != 0.01 {
		t.Errorf("DriftTolerance = %v, want 0.01", cfg.Business.DriftTolerance)
	}
	if !cfg.Business.AutoCorrect {
		t.Error("AutoCorrect = false, want true")
	}
	if cfg.Kafka.Topic.LedgerEvents != "ledger-events" {
		t.Errorf("LedgerEvents topic = %q, want ledger-events", cfg.Kafka.Topic.LedgerEvents)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	t.Setenv("LEDGER_SERVER_PORT", "7070")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
}

func TestLoadConfig_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown driver":        "database:\n  driver: oracle\n",
		"unknown mirror":        "mirror:\n  driver: memcached\n",
		"redis mirror no redis": "mirror:\n  driver: redis\nredis:\n  enabled: false\n",
		"negative tolerance":    "business:\n  drift_tolerance: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, body)); err == nil {
				t.Error("LoadConfig() error = nil, want error")
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadConfig() error = nil, want error")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Mirror.Driver != MirrorMemory {
		t.Errorf("Mirror.Driver = %q, want %q", cfg.Mirror.Driver, MirrorMemory)
	}
	if cfg.Business.Currency != "MXN" {
		t.Errorf("Currency = %q, want MXN", cfg.Business.Currency)
	}
}
