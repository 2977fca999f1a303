package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(context.Background(), envconfig.MapLookuper(map[string]string{
		"HB_TOKEN":    "123:abc",
		"HB_DOT_PATH": "/tmp/hustlebot",
	}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.DefaultLanguage != "en" || cfg.DBFile != "bot.db" || cfg.Workers != 8 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if strings.Join(cfg.EnabledHandlers, ",") != "admin,guard,ledger" {
		t.Fatalf("unexpected handlers %v", cfg.EnabledHandlers)
	}
	if cfg.Server.Port != 5000 || cfg.WebhookEnabled() {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	m := cfg.Moderation
	if m.MessagesPerMinute != 10 || m.CommandsPerMinute != 5 || m.SameContentLimit != 3 ||
		m.MessageWindow != 50 || m.CommandWindow != 20 || m.MuteThreshold != 3 || m.MaxAttempts != 3 ||
		!m.RepetitionCheck || m.WarningDecay != 0 || m.ChallengeTTL != 0 {
		t.Fatalf("unexpected moderation defaults %+v", m)
	}
}

func TestParseRequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := Parse(context.Background(), envconfig.MapLookuper(map[string]string{})); err == nil {
		t.Fatalf("expected missing token error")
	}
}

func TestParseOverridesAndFallbacks(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(context.Background(), envconfig.MapLookuper(map[string]string{
		"HB_TOKEN":                    "123:abc",
		"HB_DOT_PATH":                 "/tmp/hustlebot",
		"HB_MODERATION_ADMINS":        "1,2",
		"HB_MODERATION_WARNING_DECAY": "1h",
		"RAILWAY_STATIC_URL":          "bot.up.railway.app",
		"PORT":                        "8080",
	}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.Moderation.Admins) != 2 || cfg.Moderation.Admins[1] != 2 {
		t.Fatalf("unexpected admins %v", cfg.Moderation.Admins)
	}
	if cfg.Moderation.WarningDecay != time.Hour {
		t.Fatalf("unexpected decay %v", cfg.Moderation.WarningDecay)
	}
	if cfg.Server.WebhookURL != "https://bot.up.railway.app" || !cfg.WebhookEnabled() {
		t.Fatalf("unexpected webhook url %q", cfg.Server.WebhookURL)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("platform PORT must apply when HB_PORT is unset, got %d", cfg.Server.Port)
	}
}
