// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/giftgate/giftbot/internal/config"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup applies cfg to the standard logger. It returns a closer for the rotated file,
// which is a no-op when logging only to stdout.
func Setup(cfg config.LogConfig) (io.Closer, error) {
	level, errLevel := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if errLevel != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	path := strings.TrimSpace(cfg.File)
	if path == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}, nil
	}
	if errDir := os.MkdirAll(filepath.Dir(path), 0o755); errDir != nil {
		return nil, errDir
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	return rotator, nil
}

// MaskToken hides all but the bot id prefix of a Bot API token.
func MaskToken(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	id, secret, found := strings.Cut(token, ":")
	if !found {
		if len(token) <= 4 {
			return "****"
		}
		return token[:2] + "****"
	}
	if len(secret) <= 4 {
		return id + ":****"
	}
	return id + ":" + secret[:2] + "****" + secret[len(secret)-2:]
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
