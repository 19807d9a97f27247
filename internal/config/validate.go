package config

import (
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	minMembershipTimeout = 5 * time.Second
	maxMembershipTimeout = 10 * time.Second
)

// Validate checks the settings the service cannot start without.
func (c Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return &ConfigurationError{Field: "BOT_TOKEN", Reason: "is required"}
	}
	if c.Telegram.RequireChannel == "" {
		return &ConfigurationError{Field: "CHANNEL_ID", Reason: "is required"}
	}
	if !strings.HasPrefix(c.Telegram.WebhookPath, "/") {
		return &ConfigurationError{Field: "WEBHOOK_PATH", Reason: "must start with /"}
	}
	if t := c.Telegram.MembershipTimeout; t < minMembershipTimeout || t > maxMembershipTimeout {
		return &ConfigurationError{Field: "telegram.membership_timeout", Reason: "must be between 5s and 10s"}
	}
	for _, gift := range c.Reward.Gifts {
		if gift.ID == "" || gift.Name == "" {
			return &ConfigurationError{Field: "GIFTS_JSON", Reason: "every gift needs an id and a name"}
		}
	}
	if c.Reward.SendTimeout <= 0 {
		return &ConfigurationError{Field: "reward.send_timeout", Reason: "must be positive"}
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ConfigurationError{Field: "PORT", Reason: "must be between 1 and 65535"}
	}
	if c.Database.DSN == "" {
		return &ConfigurationError{Field: "database.dsn", Reason: "is required"}
	}
	if _, errLevel := log.ParseLevel(c.Log.Level); errLevel != nil {
		return &ConfigurationError{Field: "LOG_LEVEL", Reason: errLevel.Error()}
	}
	if c.Redis.URL != "" && c.Redis.LockTTL <= 0 {
		return &ConfigurationError{Field: "redis.lock_ttl", Reason: "must be positive"}
	}
	if c.Monitor.LowWatermark < 0 {
		return &ConfigurationError{Field: "monitor.low_watermark", Reason: "must not be negative"}
	}
	return nil
}
