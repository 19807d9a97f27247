package config

import (
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the variables that override the config file. Blank variables are
// dropped before parsing, so a zero field means the variable was not given.
type envOverrides struct {
	BotToken          string        `env:"BOT_TOKEN"`
	Channel           string        `env:"CHANNEL_ID"`
	RequireChannel    string        `env:"REQUIRE_CHANNEL"`
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookPath       string        `env:"WEBHOOK_PATH"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	APIBaseURL        string        `env:"TELEGRAM_API_URL"`
	MembershipTimeout time.Duration `env:"MEMBERSHIP_TIMEOUT"`
	GiftName          string        `env:"GIFT_NAME"`
	GiftNote          string        `env:"GIFT_NOTE"`
	SupportContact    string        `env:"SUPPORT_CONTACT"`
	Gifts             giftList      `env:"GIFTS_JSON"`
	OnlyOnce          switchFlag    `env:"ONLY_ONCE"`
	DatabaseDSN       string        `env:"DATABASE_DSN"`
	DBPath            string        `env:"DB_PATH"`
	Port              int           `env:"PORT"`
	RedisURL          string        `env:"REDIS_URL"`
	Admins            idList        `env:"ADMINS"`
	AdminJWTSecret    string        `env:"ADMIN_JWT_SECRET"`
	LogLevel          string        `env:"LOG_LEVEL"`
	LogFile           string        `env:"LOG_FILE"`
	MonitorSchedule   string        `env:"MONITOR_SCHEDULE"`
}

// environMap turns KEY=value pairs into a map, trimming values and skipping blank ones.
func environMap(pairs []string) map[string]string {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out[key] = trimmed
		}
	}
	return out
}

// applyEnv overlays the variables in environ onto cfg.
func applyEnv(cfg *Config, environ map[string]string) error {
	filtered := make(map[string]string, len(environ))
	for key, value := range environ {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			filtered[key] = trimmed
		}
	}

	var o envOverrides
	if errParse := env.ParseWithOptions(&o, env.Options{Environment: filtered}); errParse != nil {
		return envError(errParse)
	}

	set := func(dst *string, value string) {
		if value != "" {
			*dst = value
		}
	}
	set(&cfg.Telegram.BotToken, o.BotToken)
	set(&cfg.Telegram.Channel, o.Channel)
	set(&cfg.Telegram.RequireChannel, o.RequireChannel)
	set(&cfg.Telegram.WebhookURL, o.WebhookURL)
	set(&cfg.Telegram.WebhookPath, o.WebhookPath)
	set(&cfg.Telegram.WebhookSecret, o.WebhookSecret)
	set(&cfg.Telegram.APIBaseURL, o.APIBaseURL)
	set(&cfg.Reward.GiftName, o.GiftName)
	set(&cfg.Reward.Note, o.GiftNote)
	set(&cfg.Reward.SupportContact, o.SupportContact)
	set(&cfg.Redis.URL, o.RedisURL)
	set(&cfg.Admin.JWTSecret, o.AdminJWTSecret)
	set(&cfg.Log.Level, o.LogLevel)
	set(&cfg.Log.File, o.LogFile)
	set(&cfg.Monitor.Schedule, o.MonitorSchedule)

	// DATABASE_DSN wins over the SQLite file path in DB_PATH.
	set(&cfg.Database.DSN, o.DBPath)
	set(&cfg.Database.DSN, o.DatabaseDSN)

	if o.MembershipTimeout != 0 {
		cfg.Telegram.MembershipTimeout = o.MembershipTimeout
	}
	if o.Port != 0 {
		cfg.Server.Port = o.Port
	}
	if o.Gifts.set {
		cfg.Reward.Gifts = o.Gifts.gifts
	}
	if o.OnlyOnce.set {
		cfg.Reward.OnlyOnce = o.OnlyOnce.on
	}
	if o.Admins.set {
		cfg.Admin.IDs = o.Admins.ids
	}
	return nil
}

// envError reports the first parse failure as a ConfigurationError naming the variable.
func envError(err error) error {
	causes := []error{err}
	var agg env.AggregateError
	if errors.As(err, &agg) && len(agg.Errors) > 0 {
		causes = agg.Errors
	}
	for _, cause := range causes {
		var cfgErr *ConfigurationError
		if errors.As(cause, &cfgErr) {
			return cfgErr
		}
		var parseErr env.ParseError
		if errors.As(cause, &parseErr) {
			if errors.As(parseErr.Err, &cfgErr) {
				return cfgErr
			}
			return &ConfigurationError{Field: envKey(parseErr.Name), Reason: parseErr.Err.Error()}
		}
	}
	return &ConfigurationError{Field: "environment", Reason: err.Error()}
}

// envKey maps an envOverrides field name to its variable.
func envKey(field string) string {
	if sf, ok := reflect.TypeOf(envOverrides{}).FieldByName(field); ok {
		return sf.Tag.Get("env")
	}
	return field
}

// giftList decodes GIFTS_JSON, a JSON list of {"id","name"} objects.
type giftList struct {
	set   bool
	gifts []Gift
}

func (g *giftList) UnmarshalText(text []byte) error {
	invalid := &ConfigurationError{Field: "GIFTS_JSON", Reason: "must be a JSON list of objects with 'id' and 'name'"}
	var entries []map[string]any
	if errJSON := json.Unmarshal(text, &entries); errJSON != nil {
		return invalid
	}
	gifts := make([]Gift, 0, len(entries))
	for _, entry := range entries {
		id, okID := entry["id"].(string)
		name, okName := entry["name"].(string)
		if !okID || !okName {
			return invalid
		}
		gifts = append(gifts, Gift{ID: id, Name: name})
	}
	g.set, g.gifts = true, gifts
	return nil
}

// switchFlag accepts 1/0, true/false, yes/no and on/off.
type switchFlag struct {
	set bool
	on  bool
}

func (f *switchFlag) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "1", "true", "yes", "on":
		f.set, f.on = true, true
	case "0", "false", "no", "off":
		f.set, f.on = true, false
	default:
		return &ConfigurationError{Field: "ONLY_ONCE", Reason: "expected 1 or 0"}
	}
	return nil
}

// idList reads comma separated Telegram ids; entries that are not integers are skipped.
type idList struct {
	set bool
	ids []int64
}

func (l *idList) UnmarshalText(text []byte) error {
	parts := strings.FieldsFunc(string(text), func(r rune) bool { return r == ',' || r == ' ' })
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		if id, errParse := strconv.ParseInt(part, 10, 64); errParse == nil {
			ids = append(ids, id)
		}
	}
	l.set, l.ids = true, ids
	return nil
}
