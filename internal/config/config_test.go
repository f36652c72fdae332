package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MQTT_BROKER_URL", "tcp://localhost:1883")
	cfg, err := Load(Overrides{EnvFile: filepath.Join(t.TempDir(), "missing.env")})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.HotTierRetentionDays != 7 {
		t.Errorf("HotTierRetentionDays = %d, want 7", cfg.HotTierRetentionDays)
	}
}

func TestLoadCLIOverridesWinOverEnv(t *testing.T) {
	t.Setenv("MQTT_BROKER_URL", "tcp://localhost:1883")
	t.Setenv("HTTP_ADDR", ":9090")
	cfg, err := Load(Overrides{HTTPAddr: ":7070"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":7070" {
		t.Errorf("HTTPAddr = %q, want :7070 (CLI override)", cfg.HTTPAddr)
	}
}

func TestValidateRequiresATransport(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error with no bus transport configured")
	}
	cfg.WatchDir = "/tmp/notes"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("MQTT_BROKER_URL=tcp://broker:1883\nSTATE_DIR=/var/fleet\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	cfg, err := Load(Overrides{EnvFile: envFile})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StateDir != "/var/fleet" {
		t.Errorf("StateDir = %q, want /var/fleet", cfg.StateDir)
	}
}

func TestGenerateAdminPINIsFourDigits(t *testing.T) {
	pin, err := GenerateAdminPIN()
	if err != nil {
		t.Fatalf("GenerateAdminPIN: %v", err)
	}
	if len(pin) != 4 {
		t.Errorf("pin %q has length %d, want 4", pin, len(pin))
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			t.Errorf("pin %q has non-digit %q", pin, r)
		}
	}
}
