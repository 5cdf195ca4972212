package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "LANDING_ARTICLES_CONFIG"

	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	adminTokenEnv     = "ADMIN_TOKEN"
	fetchAtEnv        = "FETCH_AT_UTC"
	httpAddrEnv       = "HTTP_ADDR"
	logLevelEnv       = "LOG_LEVEL"
	logFormatEnv      = "LOG_FORMAT"
	userAgentEnv      = "USER_AGENT"
	minWordsEnv       = "MIN_WORDS"
	previewWordsEnv   = "PREVIEW_WORDS"
	maxItemsEnv       = "MAX_ITEMS_PER_FEED"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	HTTP          HTTPConfig         `yaml:"http"`
	Fetch         FetchConfig        `yaml:"fetch"`
	Extraction    ExtractionConfig   `yaml:"extraction"`
	Ingest        IngestConfig       `yaml:"ingest"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// DatabaseConfig selects the SQL dialect and connection string.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines when the daily fill runs. CronExpression, when set,
// replaces the FireAt time of day.
type SchedulerConfig struct {
	Enabled        bool   `yaml:"enabled"`
	FireAt         string `yaml:"fireAt"`
	CronExpression string `yaml:"cronExpression"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	AdminToken      string        `yaml:"adminToken"`
	PreviewWords    int           `yaml:"previewWords"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// FetchConfig bounds all outbound HTTP.
type FetchConfig struct {
	UserAgent     string        `yaml:"userAgent"`
	FeedTimeout   time.Duration `yaml:"feedTimeout"`
	PageTimeout   time.Duration `yaml:"pageTimeout"`
	MaxRedirects  int           `yaml:"maxRedirects"`
	MaxBodyBytes  int64         `yaml:"maxBodyBytes"`
	HostInterval  time.Duration `yaml:"hostInterval"`
	RespectRobots bool          `yaml:"respectRobots"`
	RobotsTTL     time.Duration `yaml:"robotsTtl"`
}

// ExtractionConfig holds the stage acceptance thresholds in characters.
type ExtractionConfig struct {
	MinRawContentChars int `yaml:"minRawContentChars"`
	MinExtractedChars  int `yaml:"minExtractedChars"`
}

// IngestConfig tunes candidate selection.
type IngestConfig struct {
	MaxAttempts     int    `yaml:"maxAttempts"`
	MaxItemsPerFeed int    `yaml:"maxItemsPerFeed"`
	MaxBackfillDays int    `yaml:"maxBackfillDays"`
	MinWords        int    `yaml:"minWords"`
	AllowUndated    bool   `yaml:"allowUndated"`
	FeedOrder       string `yaml:"feedOrder"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// LoggingConfig selects level and handler format ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:  DatabaseConfig{Driver: "sqlite3", DSN: "landing.db"},
		Scheduler: SchedulerConfig{Enabled: true, FireAt: "02:00"},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			PreviewWords:    200,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Fetch: FetchConfig{
			UserAgent:     "LandingBot/1.0",
			FeedTimeout:   10 * time.Second,
			PageTimeout:   15 * time.Second,
			MaxRedirects:  1,
			MaxBodyBytes:  5 << 20,
			HostInterval:  time.Second,
			RespectRobots: true,
			RobotsTTL:     6 * time.Hour,
		},
		Extraction: ExtractionConfig{MinRawContentChars: 500, MinExtractedChars: 250},
		Ingest: IngestConfig{
			MaxAttempts:     5,
			MaxItemsPerFeed: 50,
			MaxBackfillDays: 365,
			MinWords:        300,
			FeedOrder:       "registration",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding the environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML file at path (or $LANDING_ARTICLES_CONFIG when path is
// empty) over the defaults, applies environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str(databaseDriverEnv, &c.Database.Driver)
	str(databaseDSNEnv, &c.Database.DSN)
	str(adminTokenEnv, &c.HTTP.AdminToken)
	str(fetchAtEnv, &c.Scheduler.FireAt)
	str(httpAddrEnv, &c.HTTP.Addr)
	str(logLevelEnv, &c.Logging.Level)
	str(logFormatEnv, &c.Logging.Format)
	str(userAgentEnv, &c.Fetch.UserAgent)
	str(telegramTokenEnv, &c.Notifications.Telegram.BotToken)
	str(telegramChatIDEnv, &c.Notifications.Telegram.ChatID)

	if err := num(minWordsEnv, &c.Ingest.MinWords); err != nil {
		return err
	}
	if err := num(previewWordsEnv, &c.HTTP.PreviewWords); err != nil {
		return err
	}
	return num(maxItemsEnv, &c.Ingest.MaxItemsPerFeed)
}

// Validate rejects values the application cannot run with.
func (c Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want postgres or sqlite3", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Scheduler.CronExpression == "" {
		if _, err := time.Parse("15:04", c.Scheduler.FireAt); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.fireAt %q: want HH:MM", c.Scheduler.FireAt))
		}
	}
	if c.Fetch.FeedTimeout <= 0 || c.Fetch.PageTimeout <= 0 {
		errs = append(errs, errors.New("fetch timeouts must be positive"))
	}
	if c.Fetch.MaxRedirects < 0 {
		errs = append(errs, errors.New("fetch.maxRedirects must not be negative"))
	}
	if c.Extraction.MinRawContentChars <= 0 || c.Extraction.MinExtractedChars <= 0 {
		errs = append(errs, errors.New("extraction thresholds must be positive"))
	}
	if c.Ingest.MaxAttempts <= 0 {
		errs = append(errs, errors.New("ingest.maxAttempts must be positive"))
	}
	if c.Ingest.MaxItemsPerFeed <= 0 {
		errs = append(errs, errors.New("ingest.maxItemsPerFeed must be positive"))
	}
	if c.Ingest.MaxBackfillDays <= 0 {
		errs = append(errs, errors.New("ingest.maxBackfillDays must be positive"))
	}
	if c.Ingest.MinWords < 0 {
		errs = append(errs, errors.New("ingest.minWords must not be negative"))
	}
	switch c.Ingest.FeedOrder {
	case "registration", "least_recent":
	default:
		errs = append(errs, fmt.Errorf("ingest.feedOrder %q: want registration or least_recent", c.Ingest.FeedOrder))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q: want text or json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
