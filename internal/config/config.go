package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	TCPPort     string `yaml:"tcp_port"`
	MetricsPort string `yaml:"metrics_port"`
	GRPCServer  string `yaml:"grpc_server"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisDB     int    `yaml:"redis_db"`
	NATSURL     string `yaml:"nats_url"`
	ProxyAddr   string `yaml:"proxy_addr"`
	AuditDir    string `yaml:"audit_dir"`
	LogLevel    string `yaml:"log_level"`

	// DevicePhone is the paired tracker; reports from other numbers are dropped.
	DevicePhone string `yaml:"device_phone"`
	// Operators may send commands. Empty means anyone.
	Operators []string `yaml:"operators"`

	CmdDailyLimit   int           `yaml:"cmd_daily_limit"`
	CmdSessionLimit int           `yaml:"cmd_session_limit"`
	CmdMinRetry     time.Duration `yaml:"cmd_min_retry"`
}

func defaults() Config {
	return Config{
		TCPPort:         "8001",
		MetricsPort:     "9000",
		GRPCServer:      "",
		RedisAddr:       "localhost:6379",
		NATSURL:         "nats://localhost:4222",
		AuditDir:        "logs",
		LogLevel:        "info",
		CmdDailyLimit:   20,
		CmdSessionLimit: 5,
		CmdMinRetry:     30 * time.Second,
	}
}

// Load reads the optional YAML file named by TATA_CONFIG, then lets
// environment variables override it.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("TATA_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.TCPPort = getEnv("TCP_PORT", cfg.TCPPort)
	cfg.MetricsPort = getEnv("METRICS_PORT", cfg.MetricsPort)
	cfg.GRPCServer = getEnv("GRPC_SERVER", cfg.GRPCServer)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisDB = getEnvAsInt("REDIS_DB", cfg.RedisDB)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.ProxyAddr = getEnv("PROXY_ADDR", cfg.ProxyAddr)
	cfg.AuditDir = getEnv("AUDIT_DIR", cfg.AuditDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.DevicePhone = getEnv("DEVICE_PHONE", cfg.DevicePhone)
	cfg.Operators = getEnvAsList("OPERATORS", cfg.Operators)
	cfg.CmdDailyLimit = getEnvAsInt("CMD_DAILY_LIMIT", cfg.CmdDailyLimit)
	cfg.CmdSessionLimit = getEnvAsInt("CMD_SESSION_LIMIT", cfg.CmdSessionLimit)
	cfg.CmdMinRetry = getEnvAsDuration("CMD_MIN_RETRY", cfg.CmdMinRetry)

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
