package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultDatabaseURL   = "todo.db"
	defaultCheckInterval = time.Hour
	defaultThrottle      = time.Hour
	defaultPageSize      = 5
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken         string        `yaml:"telegram_token"`
	DatabaseURL           string        `yaml:"database_url"`
	ReminderCheckInterval time.Duration `yaml:"reminder_check_interval"`
	ReminderThrottle      time.Duration `yaml:"reminder_throttle"`
	PageSize              int           `yaml:"page_size"`
	Timezone              string        `yaml:"timezone"`
	LogDevelopment        bool          `yaml:"log_development"`

	Location *time.Location `yaml:"-"`
}

// Load reads the optional YAML file named by CONFIG_FILE, applies environment
// overrides and fills defaults.
func Load() (Config, error) {
	var cfg Config

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		fileCfg, err := loadFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = fileCfg
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

func loadFile(path string) (Config, error) {
	var cfg Config
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config %q: %w", path, err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")); v != "" {
		cfg.TelegramToken = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("REMINDER_CHECK_INTERVAL")); v != "" {
		cfg.ReminderCheckInterval = parseDuration(v)
	}
	if v := strings.TrimSpace(os.Getenv("REMINDER_THROTTLE")); v != "" {
		cfg.ReminderThrottle = parseDuration(v)
	}
	if v := strings.TrimSpace(os.Getenv("PAGE_SIZE")); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			size = 0
		}
		cfg.PageSize = size
	}
	if v := strings.TrimSpace(os.Getenv("TIMEZONE")); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_DEVELOPMENT")); v != "" {
		dev, err := strconv.ParseBool(v)
		cfg.LogDevelopment = err == nil && dev
	}
}

func applyDefaults(cfg *Config) {
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	if cfg.ReminderCheckInterval <= 0 {
		cfg.ReminderCheckInterval = defaultCheckInterval
	}
	if cfg.ReminderThrottle <= 0 {
		cfg.ReminderThrottle = defaultThrottle
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}

	cfg.Location = time.Local
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			cfg.Location = loc
		}
	}
}

// parseDuration accepts Go durations ("90m") and bare hour counts ("2").
func parseDuration(raw string) time.Duration {
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
