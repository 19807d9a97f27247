// Package config loads the service configuration from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "config.yaml"

// AppConfig carries process-level options from the CLI.
type AppConfig struct {
	ConfigPath string
}

// Gift is a premium item that can be sent with sendGift.
type Gift struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// TelegramConfig configures the Bot API side.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	// Channel is the channel users are asked to join, "@name" or a numeric chat id.
	Channel string `yaml:"channel"`
	// RequireChannel is the channel checked by the gate. Defaults to Channel.
	RequireChannel    string        `yaml:"require_channel"`
	WebhookURL        string        `yaml:"webhook_url"`
	WebhookPath       string        `yaml:"webhook_path"`
	WebhookSecret     string        `yaml:"webhook_secret"`
	APIBaseURL        string        `yaml:"api_base_url"`
	MembershipTimeout time.Duration `yaml:"membership_timeout"`
}

// WebhookEnabled reports whether updates are pushed instead of polled.
func (t TelegramConfig) WebhookEnabled() bool { return strings.TrimSpace(t.WebhookURL) != "" }

// WebhookEndpoint is the full URL registered with setWebhook.
func (t TelegramConfig) WebhookEndpoint() string {
	return strings.TrimRight(t.WebhookURL, "/") + t.WebhookPath
}

// RewardConfig configures what a claim hands out.
type RewardConfig struct {
	Gifts          []Gift        `yaml:"gifts"`
	GiftName       string        `yaml:"gift_name"`
	Note           string        `yaml:"note"`
	OnlyOnce       bool          `yaml:"only_once"`
	SupportContact string        `yaml:"support_contact"`
	SendTimeout    time.Duration `yaml:"send_timeout"`
}

// PremiumGiftID returns the gift sent by the premium tier, empty when none is configured.
func (r RewardConfig) PremiumGiftID() string {
	if len(r.Gifts) == 0 {
		return ""
	}
	return r.Gifts[0].ID
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// RedisConfig enables the shared claim lock.
type RedisConfig struct {
	URL     string        `yaml:"url"`
	LockTTL time.Duration `yaml:"lock_ttl"`
}

// AdminConfig configures operator access.
type AdminConfig struct {
	// IDs are Telegram users allowed to run admin commands when the ADMINS setting is empty.
	IDs       []int64 `yaml:"ids"`
	JWTSecret string  `yaml:"jwt_secret"`
}

// LogConfig configures logrus and file rotation.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// MonitorConfig configures the scheduled pool report.
type MonitorConfig struct {
	Schedule     string `yaml:"schedule"`
	LowWatermark int64  `yaml:"low_watermark"`
}

// Config is the full service configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Reward   RewardConfig   `yaml:"reward"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Admin    AdminConfig    `yaml:"admin"`
	Log      LogConfig      `yaml:"log"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// ConfigurationError reports an invalid or missing setting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// ResolveConfigPath returns path or the default when it is blank.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed
	}
	return DefaultConfigPath
}

// Default returns the configuration used before the file and environment are applied.
func Default() Config {
	return Config{
		Telegram: TelegramConfig{
			WebhookPath:       "/tg/webhook",
			MembershipTimeout: 8 * time.Second,
		},
		Reward: RewardConfig{
			GiftName:       "🎁 Gift",
			Note:           "Thanks for subscribing!",
			OnlyOnce:       true,
			SupportContact: "@support",
			SendTimeout:    10 * time.Second,
		},
		Database: DatabaseConfig{DSN: "bot.sqlite3"},
		Server:   ServerConfig{Port: 8080},
		Redis:    RedisConfig{LockTTL: time.Minute},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
		Monitor: MonitorConfig{Schedule: "@every 1h", LowWatermark: 10},
	}
}

// Load reads path (a missing file is not an error), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg, errRead := Read(path)
	if errRead != nil {
		return Config{}, errRead
	}
	if errValidate := cfg.Validate(); errValidate != nil {
		return Config{}, errValidate
	}
	return cfg, nil
}

// Read is Load without validation, for commands that need only part of the settings.
func Read(path string) (Config, error) {
	return read(ResolveConfigPath(path), environMap(os.Environ()))
}

func load(path string, environ map[string]string) (Config, error) {
	cfg, errRead := read(path, environ)
	if errRead != nil {
		return Config{}, errRead
	}
	if errValidate := cfg.Validate(); errValidate != nil {
		return Config{}, errValidate
	}
	return cfg, nil
}

func read(path string, environ map[string]string) (Config, error) {
	cfg := Default()
	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errYAML := yaml.Unmarshal(data, &cfg); errYAML != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, errYAML)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	if errEnv := applyEnv(&cfg, environ); errEnv != nil {
		return Config{}, errEnv
	}
	cfg.normalize()
	return cfg, nil
}

// LoadDatabaseDSN resolves only the storage settings.
func LoadDatabaseDSN(path string) (string, error) {
	cfg, errRead := Read(path)
	if errRead != nil {
		return "", errRead
	}
	if cfg.Database.DSN == "" {
		return "", &ConfigurationError{Field: "database.dsn", Reason: "is required"}
	}
	return cfg.Database.DSN, nil
}

func (c *Config) normalize() {
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	c.Telegram.Channel = strings.TrimSpace(c.Telegram.Channel)
	c.Telegram.RequireChannel = strings.TrimSpace(c.Telegram.RequireChannel)
	if c.Telegram.RequireChannel == "" {
		c.Telegram.RequireChannel = c.Telegram.Channel
	}
	if c.Telegram.Channel == "" {
		c.Telegram.Channel = c.Telegram.RequireChannel
	}
	c.Telegram.WebhookURL = strings.TrimSpace(c.Telegram.WebhookURL)
	c.Telegram.WebhookPath = strings.TrimSpace(c.Telegram.WebhookPath)
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	c.Redis.URL = strings.TrimSpace(c.Redis.URL)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	for i := range c.Reward.Gifts {
		c.Reward.Gifts[i].ID = strings.TrimSpace(c.Reward.Gifts[i].ID)
		c.Reward.Gifts[i].Name = strings.TrimSpace(c.Reward.Gifts[i].Name)
	}
}
