// Package config loads settings from the environment, a .env file and an
// optional YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config represents the application configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Store    StoreConfig    `yaml:"store"`
	Session  SessionConfig  `yaml:"session"`
	HTTP     HTTPConfig     `yaml:"http"`
	Export   ExportConfig   `yaml:"export"`
	Reminder ReminderConfig `yaml:"reminder"`
	LogLevel string         `yaml:"log_level"`
}

// TelegramConfig represents the chat transport configuration.
type TelegramConfig struct {
	Token string `yaml:"token"`
	Debug bool   `yaml:"debug"`
}

// GeminiConfig represents the analysis model configuration.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// StoreConfig selects the ledger backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// SessionConfig tunes conversation state.
type SessionConfig struct {
	SelectionTTL time.Duration `yaml:"selection_ttl"`
	Cooldown     time.Duration `yaml:"cooldown"`
}

// HTTPConfig represents the JSON API configuration.
type HTTPConfig struct {
	Port     string `yaml:"port"`
	APIToken string `yaml:"api_token"`
}

// ExportConfig lists the export sinks. A sink is enabled when its
// settings are present.
type ExportConfig struct {
	Dir         string `yaml:"dir"`
	Bucket      string `yaml:"bucket"`
	BQProject   string `yaml:"bq_project"`
	BQDataset   string `yaml:"bq_dataset"`
	BQTable     string `yaml:"bq_table"`
	NotionToken string `yaml:"notion_token"`
	NotionDBID  string `yaml:"notion_db_id"`
	Workers     int    `yaml:"workers"`
}

// ReminderConfig tunes the reminder loop.
type ReminderConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path. If CONFIG_FILE
// names a YAML file, its non-empty values win.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	ttl, err := parseDurationEnv("SELECTION_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	cooldown, err := parseDurationEnv("COOLDOWN", 2*time.Second)
	if err != nil {
		return nil, err
	}
	interval, err := parseDurationEnv("REMINDER_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	workers, err := parseIntEnv("EXPORT_WORKERS", 1)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			Token: os.Getenv("TELEGRAM_BOT_TOKEN"),
			Debug: os.Getenv("TELEGRAM_DEBUG") == "true",
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Store: StoreConfig{
			Driver: getEnvOrDefault("STORE_DRIVER", DriverBolt),
			Path:   getEnvOrDefault("STORE_PATH", "data/finance.db"),
		},
		Session: SessionConfig{
			SelectionTTL: ttl,
			Cooldown:     cooldown,
		},
		HTTP: HTTPConfig{
			Port:     getEnvOrDefault("HTTP_PORT", "8080"),
			APIToken: os.Getenv("API_TOKEN"),
		},
		Export: ExportConfig{
			Dir:         os.Getenv("EXPORT_DIR"),
			Bucket:      os.Getenv("EXPORT_BUCKET"),
			BQProject:   os.Getenv("BQ_PROJECT"),
			BQDataset:   getEnvOrDefault("BQ_DATASET", "finance"),
			BQTable:     getEnvOrDefault("BQ_TABLE", "ledger_exports"),
			NotionToken: os.Getenv("NOTION_TOKEN"),
			NotionDBID:  os.Getenv("NOTION_DB_ID"),
			Workers:     workers,
		},
		Reminder: ReminderConfig{Interval: interval},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	switch cfg.Store.Driver {
	case DriverBolt, DriverSQLite, DriverMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER: %q (want bolt, sqlite or memory)", cfg.Store.Driver)
	}

	return cfg, nil
}

// mergeFile overlays the non-empty values of a YAML file.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var f Config
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	override(&c.Telegram.Token, f.Telegram.Token)
	c.Telegram.Debug = c.Telegram.Debug || f.Telegram.Debug
	override(&c.Gemini.APIKey, f.Gemini.APIKey)
	override(&c.Gemini.Model, f.Gemini.Model)
	override(&c.Store.Driver, f.Store.Driver)
	override(&c.Store.Path, f.Store.Path)
	override(&c.Session.SelectionTTL, f.Session.SelectionTTL)
	override(&c.Session.Cooldown, f.Session.Cooldown)
	override(&c.HTTP.Port, f.HTTP.Port)
	override(&c.HTTP.APIToken, f.HTTP.APIToken)
	override(&c.Export.Dir, f.Export.Dir)
	override(&c.Export.Bucket, f.Export.Bucket)
	override(&c.Export.BQProject, f.Export.BQProject)
	override(&c.Export.BQDataset, f.Export.BQDataset)
	override(&c.Export.BQTable, f.Export.BQTable)
	override(&c.Export.NotionToken, f.Export.NotionToken)
	override(&c.Export.NotionDBID, f.Export.NotionDBID)
	override(&c.Export.Workers, f.Export.Workers)
	override(&c.Reminder.Interval, f.Reminder.Interval)
	override(&c.LogLevel, f.LogLevel)
	return nil
}

func override[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

// Value returns the setting named by its environment key, e.g. "TELEGRAM_BOT_TOKEN".
func (c *Config) Value(key string) (string, bool) {
	switch key {
	case "TELEGRAM_BOT_TOKEN":
		return c.Telegram.Token, true
	case "GEMINI_API_KEY":
		return c.Gemini.APIKey, true
	case "GEMINI_MODEL":
		return c.Gemini.Model, true
	case "STORE_DRIVER":
		return c.Store.Driver, true
	case "STORE_PATH":
		return c.Store.Path, true
	case "SELECTION_TTL":
		return c.Session.SelectionTTL.String(), true
	case "COOLDOWN":
		return c.Session.Cooldown.String(), true
	case "HTTP_PORT":
		return c.HTTP.Port, true
	case "API_TOKEN":
		return c.HTTP.APIToken, true
	case "EXPORT_DIR":
		return c.Export.Dir, true
	case "EXPORT_BUCKET":
		return c.Export.Bucket, true
	case "BQ_PROJECT":
		return c.Export.BQProject, true
	case "BQ_DATASET":
		return c.Export.BQDataset, true
	case "BQ_TABLE":
		return c.Export.BQTable, true
	case "NOTION_TOKEN":
		return c.Export.NotionToken, true
	case "NOTION_DB_ID":
		return c.Export.NotionDBID, true
	case "REMINDER_INTERVAL":
		return c.Reminder.Interval.String(), true
	case "LOG_LEVEL":
		return c.LogLevel, true
	}
	return "", false
}

// Validate checks that every named key is set.
func (c *Config) Validate(required ...string) error {
	var missing []string
	for _, key := range required {
		if v, ok := c.Value(key); !ok || v == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s\nPlease check your .env file or environment variables", strings.Join(missing, ", "))
	}
	return nil
}

// NotionEnabled reports whether both Notion settings are present.
func (e ExportConfig) NotionEnabled() bool {
	return e.NotionToken != "" && e.NotionDBID != ""
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value for %s: %s", key, value)
	}
	return d, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}
	return n, nil
}
