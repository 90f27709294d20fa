package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	// Display zones must resolve on hosts without a zoneinfo database.
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"alarm-dashboard/internal/alarms/infrastructure/sqlstore"
	"alarm-dashboard/internal/database"
)

const (
	// EnvConfigPath names the variable that points to the YAML file.
	EnvConfigPath = "ALARMDASH_CONFIG"

	// DriverMemory runs the dashboard on the in-memory store.
	DriverMemory = "memory"

	DefaultHTTPAddr        = ":8080"
	DefaultRefreshInterval = 2 * time.Minute
	DefaultDisplayTimezone = "America/Sao_Paulo"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultNotifyTimeout   = 5 * time.Second
	DefaultLogLevel        = "info"
)

var (
	errDSNRequired      = errors.New("database dsn must be provided")
	errIntervalTooShort = errors.New("refresh interval must be at least 1s")
)

// Config holds every setting of the dashboard binary.
type Config struct {
	Database        Database              `yaml:"database"`
	HTTP            HTTP                  `yaml:"http"`
	Auth            Auth                  `yaml:"auth"`
	Dashboard       Dashboard             `yaml:"dashboard"`
	Log             Log                   `yaml:"log"`
	Notify          Notify                `yaml:"notify"`
	StatusLabels    sqlstore.StatusLabels `yaml:"status_labels"`
	DisplayTimezone string                `yaml:"display_timezone"`
}

// Database configures the alarm store.
type Database struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	Table           string        `yaml:"table"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	Migrate         bool          `yaml:"migrate"`
}

// HTTP configures the API listener.
type HTTP struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Auth configures JWT checks. An empty secret disables them.
type Auth struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// Dashboard configures the periodic refresh.
type Dashboard struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// Log configures the logger.
type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Notify configures the transition notification channels.
type Notify struct {
	WebhookURL        string        `yaml:"webhook_url"`
	Template          string        `yaml:"template"`
	Timeout           time.Duration `yaml:"timeout"`
	Cooldown          time.Duration `yaml:"cooldown"`
	DedupeWindow      time.Duration `yaml:"dedupe_window"`
	TelegramToken     string        `yaml:"telegram_token"`
	TelegramChatID    string        `yaml:"telegram_chat_id"`
	TelegramServerURL string        `yaml:"telegram_server_url"`
	KafkaBrokers      []string      `yaml:"kafka_brokers"`
	KafkaTopic        string        `yaml:"kafka_topic"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Database: Database{
			Driver:  database.DriverPostgres,
			Table:   sqlstore.DefaultTable,
			Migrate: true,
		},
		HTTP: HTTP{
			Addr:            DefaultHTTPAddr,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Dashboard: Dashboard{
			RefreshInterval: DefaultRefreshInterval,
		},
		Log: Log{
			Level:      DefaultLogLevel,
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Notify: Notify{
			Timeout: DefaultNotifyTimeout,
		},
		StatusLabels:    sqlstore.DefaultStatusLabels(),
		DisplayTimezone: DefaultDisplayTimezone,
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path (or $ALARMDASH_CONFIG) and the environment, in that order. A .env
// file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		contents, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Database.Driver = getenvDefault("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getenvDefault("DATABASE_URL", getenvDefault("DB_DSN", cfg.Database.DSN))
	cfg.Database.Table = getenvDefault("ALARM_TABLE", cfg.Database.Table)
	cfg.Database.MaxOpenConns = getenvIntDefault("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getenvIntDefault("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = getenvDuration("DB_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime)
	cfg.Database.Migrate = getenvBool("DB_MIGRATE", cfg.Database.Migrate)

	cfg.HTTP.Addr = getenvDefault("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.ShutdownTimeout = getenvDuration("HTTP_SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)
	cfg.Auth.JWTSecret = getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", cfg.Auth.JWTSecret))
	cfg.Dashboard.RefreshInterval = getenvDuration("DASHBOARD_REFRESH_INTERVAL", cfg.Dashboard.RefreshInterval)
	cfg.DisplayTimezone = getenvDefault("DISPLAY_TIMEZONE", cfg.DisplayTimezone)

	cfg.Log.Level = getenvDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getenvDefault("LOG_FILE", cfg.Log.File)

	cfg.Notify.WebhookURL = getenvDefault("ALARM_WEBHOOK_URL", cfg.Notify.WebhookURL)
	cfg.Notify.Template = getenvDefault("ALARM_NOTIFY_TEMPLATE", cfg.Notify.Template)
	cfg.Notify.Timeout = getenvDuration("ALARM_NOTIFY_TIMEOUT", cfg.Notify.Timeout)
	cfg.Notify.Cooldown = getenvDuration("ALARM_NOTIFY_COOLDOWN", cfg.Notify.Cooldown)
	cfg.Notify.DedupeWindow = getenvDuration("ALARM_NOTIFY_DEDUP_WINDOW", cfg.Notify.DedupeWindow)
	cfg.Notify.TelegramToken = getenvDefault("TELEGRAM_BOT_TOKEN", cfg.Notify.TelegramToken)
	cfg.Notify.TelegramChatID = getenvDefault("TELEGRAM_CHAT_ID", cfg.Notify.TelegramChatID)
	cfg.Notify.TelegramServerURL = getenvDefault("TELEGRAM_SERVER_URL", cfg.Notify.TelegramServerURL)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Notify.KafkaBrokers = splitList(brokers)
	}
	cfg.Notify.KafkaTopic = getenvDefault("KAFKA_TOPIC", cfg.Notify.KafkaTopic)

	if strings.EqualFold(os.Getenv("STATUS_LABELS"), "legacy") {
		cfg.StatusLabels = sqlstore.LegacyStatusLabels()
	}
	cfg.StatusLabels.Open = getenvDefault("STATUS_LABEL_OPEN", cfg.StatusLabels.Open)
	cfg.StatusLabels.Accepted = getenvDefault("STATUS_LABEL_ACCEPTED", cfg.StatusLabels.Accepted)
	cfg.StatusLabels.Dismissed = getenvDefault("STATUS_LABEL_DISMISSED", cfg.StatusLabels.Dismissed)
}

// Validate checks the settings and fills unset durations.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("configuration is not set")
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver != DriverMemory {
		if _, err := database.DialectFor(c.Database.Driver); err != nil {
			return err
		}
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errDSNRequired
		}
	}
	if err := sqlstore.ValidateIdentifier(c.Database.Table); err != nil {
		return err
	}
	if c.Dashboard.RefreshInterval <= 0 {
		c.Dashboard.RefreshInterval = DefaultRefreshInterval
	}
	if c.Dashboard.RefreshInterval < time.Second {
		return errIntervalTooShort
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Notify.Timeout <= 0 {
		c.Notify.Timeout = DefaultNotifyTimeout
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if err := c.StatusLabels.Validate(); err != nil {
		return err
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		return errors.New("telegram token and chat id must be set together")
	}
	if len(c.Notify.KafkaBrokers) > 0 && c.Notify.KafkaTopic == "" {
		return errors.New("kafka topic must be set when brokers are configured")
	}
	return nil
}

// Location resolves the display timezone.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.DisplayTimezone)
	if name == "" {
		name = DefaultDisplayTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid display timezone %q: %w", name, err)
	}
	return loc, nil
}

// InMemory reports whether the in-memory store is selected.
func (c *Config) InMemory() bool {
	return c.Database.Driver == DriverMemory
}

// DatabaseConfig converts the store settings for database.Open.
func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Driver:          c.Database.Driver,
		DSN:             c.Database.DSN,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
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

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
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

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
