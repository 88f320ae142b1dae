package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          string        `yaml:"port"`
	DBPath        string        `yaml:"dbPath"`
	MigrationsDir string        `yaml:"migrationsDir"`
	SettingsPath  string        `yaml:"settingsPath"`
	TokenSecret   string        `yaml:"tokenSecret"`
	TokenTTL      time.Duration `yaml:"-"`
	CORSOrigins   []string      `yaml:"corsOrigins"`
	LogLevel      string        `yaml:"logLevel"`
	Timer         TimerConfig   `yaml:"timer"`

	TokenTTLHours int `yaml:"tokenTTLHours"`
}

type TimerConfig struct {
	TickInterval  time.Duration `yaml:"-"`
	StaleAfter    time.Duration `yaml:"-"`
	CheckInterval time.Duration `yaml:"-"`
	RecordSkipped bool          `yaml:"recordSkipped"`

	TickIntervalMS       int `yaml:"tickIntervalMs"`
	StaleAfterHours      int `yaml:"staleAfterHours"`
	CheckIntervalSeconds int `yaml:"checkIntervalSeconds"`
}

func Default() Config {
	return Config{
		Port:          "8080",
		DBPath:        "./data/timerd.db",
		MigrationsDir: "./migrations",
		TokenTTLHours: 72,
		CORSOrigins:   []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		LogLevel:      "info",
		Timer: TimerConfig{
			TickIntervalMS:       1000,
			StaleAfterHours:      24,
			CheckIntervalSeconds: 60,
		},
	}
}

// Load applies defaults, then the YAML file named by CONFIG_FILE, then the
// environment. An empty SettingsPath means the per-user default location.
func Load() (Config, error) {
	cfg := Default()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.MigrationsDir = getEnv("MIGRATIONS_DIR", cfg.MigrationsDir)
	cfg.SettingsPath = getEnv("SETTINGS_PATH", cfg.SettingsPath)
	cfg.TokenSecret = getEnv("TOKEN_SECRET", cfg.TokenSecret)
	cfg.TokenTTLHours = getEnvInt("TOKEN_TTL_HOURS", cfg.TokenTTLHours)
	cfg.CORSOrigins = getEnvList("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Timer.TickIntervalMS = getEnvInt("TICK_INTERVAL_MS", cfg.Timer.TickIntervalMS)
	cfg.Timer.StaleAfterHours = getEnvInt("STALE_AFTER_HOURS", cfg.Timer.StaleAfterHours)
	cfg.Timer.CheckIntervalSeconds = getEnvInt("CHECK_INTERVAL_SECONDS", cfg.Timer.CheckIntervalSeconds)
	cfg.Timer.RecordSkipped = getEnvBool("RECORD_SKIPPED", cfg.Timer.RecordSkipped)

	if err := cfg.resolve(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) resolve() error {
	if c.Timer.TickIntervalMS <= 0 {
		return fmt.Errorf("tick interval must be positive, got %dms", c.Timer.TickIntervalMS)
	}
	if c.Timer.StaleAfterHours <= 0 {
		return fmt.Errorf("stale window must be positive, got %dh", c.Timer.StaleAfterHours)
	}
	if c.Timer.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("check interval must be positive, got %ds", c.Timer.CheckIntervalSeconds)
	}
	if c.TokenTTLHours <= 0 {
		c.TokenTTLHours = 72
	}

	c.TokenTTL = time.Duration(c.TokenTTLHours) * time.Hour
	c.Timer.TickInterval = time.Duration(c.Timer.TickIntervalMS) * time.Millisecond
	c.Timer.StaleAfter = time.Duration(c.Timer.StaleAfterHours) * time.Hour
	c.Timer.CheckInterval = time.Duration(c.Timer.CheckIntervalSeconds) * time.Second
	return nil
}

// AuthEnabled reports whether observers must present a bearer token.
func (c Config) AuthEnabled() bool {
	return c.TokenSecret != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
