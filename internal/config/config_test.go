package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TATA_CONFIG", "")
	t.Setenv("TCP_PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TCPPort != "8001" {
		t.Errorf("TCPPort = %q, want 8001", cfg.TCPPort)
	}
	if cfg.CmdMinRetry != 30*time.Second {
		t.Errorf("CmdMinRetry = %v", cfg.CmdMinRetry)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tata.yml")
	data := []byte(`
tcp_port: "7000"
redis_addr: redis:6379
device_phone: "+36301234567"
operators: ["+36701111111"]
cmd_daily_limit: 3
cmd_min_retry: 1m
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TATA_CONFIG", path)
	t.Setenv("TCP_PORT", "7100")
	t.Setenv("OPERATORS", " +36702222222 , ,+36703333333")
	t.Setenv("CMD_SESSION_LIMIT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TCPPort != "7100" {
		t.Errorf("TCPPort = %q, env should win", cfg.TCPPort)
	}
	if cfg.RedisAddr != "redis:6379" || cfg.DevicePhone != "+36301234567" {
		t.Errorf("file values lost: %+v", cfg)
	}
	if cfg.CmdDailyLimit != 3 || cfg.CmdMinRetry != time.Minute {
		t.Errorf("limits = %d %v", cfg.CmdDailyLimit, cfg.CmdMinRetry)
	}
	if cfg.CmdSessionLimit != 5 {
		t.Errorf("CmdSessionLimit = %d, bad env value should fall back", cfg.CmdSessionLimit)
	}
	if len(cfg.Operators) != 2 || cfg.Operators[1] != "+36703333333" {
		t.Errorf("Operators = %q", cfg.Operators)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("TATA_CONFIG", filepath.Join(t.TempDir(), "nope.yml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}
}
