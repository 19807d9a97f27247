package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/giftgate/giftbot/internal/claim"
	"github.com/giftgate/giftbot/internal/config"
	"github.com/giftgate/giftbot/internal/security"
)

func writeConfig(t *testing.T, body string) config.AppConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("ADMIN_JWT_SECRET", "")
	return config.AppConfig{ConfigPath: path}
}

func TestOpenPoolMigratesAndPersists(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "data", "bot.sqlite3")
	cfg := writeConfig(t, "database:\n  dsn: "+dsn+"\n")

	if err := Migrate(ctx, cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	p, closeDB, err := OpenPool(ctx, cfg)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	if _, err := p.AddTokens(ctx, []string{"A1", "A2"}); err != nil {
		t.Fatalf("add tokens: %v", err)
	}
	if err := closeDB(); err != nil {
		t.Fatalf("close: %v", err)
	}

	p, closeDB, err = OpenPool(ctx, cfg)
	if err != nil {
		t.Fatalf("reopen pool: %v", err)
	}
	defer func() { _ = closeDB() }()
	stats, err := p.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Available != 2 {
		t.Fatalf("expected 2 available codes after reopen, got %+v", stats)
	}
}

func TestIssueAdminToken(t *testing.T) {
	cfg := writeConfig(t, "admin:\n  jwt_secret: s3cret\n")
	token, err := IssueAdminToken(cfg, "ops", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := security.ParseAdminToken("s3cret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Name != "ops" {
		t.Fatalf("expected name ops, got %q", claims.Name)
	}
}

func TestIssueAdminTokenRequiresSecret(t *testing.T) {
	cfg := writeConfig(t, "log:\n  level: info\n")
	_, err := IssueAdminToken(cfg, "ops", time.Hour)
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestNewLockerFallsBackToMemory(t *testing.T) {
	locker, closeLocker, err := newLocker(context.Background(), config.RedisConfig{})
	if err != nil {
		t.Fatalf("new locker: %v", err)
	}
	defer closeLocker()
	if _, ok := locker.(*claim.MemoryLocker); !ok {
		t.Fatalf("expected MemoryLocker, got %T", locker)
	}
}

func TestNewLockerRejectsBadURL(t *testing.T) {
	_, _, err := newLocker(context.Background(), config.RedisConfig{URL: "http://not-redis", LockTTL: time.Minute})
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
