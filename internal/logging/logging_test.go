package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/giftgate/giftbot/internal/config"
	log "github.com/sirupsen/logrus"
)

func TestSetupWritesToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "giftbot.log")
	closer, err := Setup(config.LogConfig{Level: "debug", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() {
		_ = closer.Close()
		log.SetOutput(os.Stdout)
		log.SetLevel(log.InfoLevel)
	})

	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
	log.WithField("user_id", 1).Info("claim granted")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "claim granted") || !strings.Contains(string(data), "user_id=1") {
		t.Fatalf("unexpected log content: %s", data)
	}
}

func TestMaskToken(t *testing.T) {
	cases := map[string]string{
		"":                  "",
		"123456:ABCDEFGHIJ": "123456:AB****IJ",
		"123456:abc":        "123456:****",
		"plainsecret":       "pl****",
	}
	for in, want := range cases {
		if got := MaskToken(in); got != want {
			t.Fatalf("MaskToken(%q) = %q, want %q", in, got, want)
		}
	}
}
