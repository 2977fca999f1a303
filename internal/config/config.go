package config

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "HB_"

type (
	Config struct {
		TelegramAPIToken string   `env:"TOKEN,required"`
		DefaultLanguage  string   `env:"LANG,default=en"`
		EnabledHandlers  []string `env:"HANDLERS,default=admin,guard,ledger"`
		LogLevel         int      `env:"LOG_LEVEL,default=4"`
		DotPath          string   `env:"DOT_PATH,default=~/.hustlebot"`
		DBFile           string   `env:"DB_FILE,default=bot.db"`
		Workers          int      `env:"WORKERS,default=8"`
		Server           Server
		Moderation       Moderation
	}

	Server struct {
		WebhookURL     string `env:"WEBHOOK_URL"`
		Listen         string `env:"LISTEN,default=0.0.0.0"`
		Port           int    `env:"PORT,default=5000"`
		MetricsEnabled bool   `env:"METRICS_ENABLED,default=true"`
	}

	Moderation struct {
		MessagesPerMinute int           `env:"MODERATION_MESSAGES_PER_MINUTE,default=10"`
		CommandsPerMinute int           `env:"MODERATION_COMMANDS_PER_MINUTE,default=5"`
		SameContentLimit  int           `env:"MODERATION_SAME_CONTENT_LIMIT,default=3"`
		RepetitionCheck   bool          `env:"MODERATION_REPETITION_CHECK,default=true"`
		MessageWindow     int           `env:"MODERATION_MESSAGE_WINDOW,default=50"`
		CommandWindow     int           `env:"MODERATION_COMMAND_WINDOW,default=20"`
		MuteThreshold     int           `env:"MODERATION_MUTE_THRESHOLD,default=3"`
		MaxAttempts       int           `env:"MODERATION_MAX_ATTEMPTS,default=3"`
		WarningDecay      time.Duration `env:"MODERATION_WARNING_DECAY,default=0s"`
		ChallengeTTL      time.Duration `env:"MODERATION_CHALLENGE_TTL,default=0s"`
		Admins            []int64       `env:"MODERATION_ADMINS"`
		KeywordsFile      string        `env:"MODERATION_KEYWORDS_FILE"`
		NotifyConcurrency int           `env:"MODERATION_NOTIFY_CONCURRENCY,default=16"`
		NotifyRate        float64       `env:"MODERATION_NOTIFY_RATE,default=20"`
	}
)

// Hosting platforms that expose the public URL under their own names.
var webhookFallbacks = []string{"RAILWAY_STATIC_URL", "RENDER_EXTERNAL_URL"}

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

// Parse reads the configuration from l, keys are looked up with the HB_ prefix.
func Parse(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	envcfg := envconfig.Config{
		Lookuper: envconfig.PrefixLookuper(envPrefix, l),
		Target:   cfg,
	}
	if err := envconfig.ProcessWith(ctx, &envcfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}

	if cfg.Server.WebhookURL == "" {
		for _, key := range webhookFallbacks {
			if v, ok := l.Lookup(key); ok && v != "" {
				cfg.Server.WebhookURL = v
				break
			}
		}
	}
	if cfg.Server.WebhookURL != "" && !strings.Contains(cfg.Server.WebhookURL, "://") {
		cfg.Server.WebhookURL = "https://" + cfg.Server.WebhookURL
	}
	if _, ok := l.Lookup(envPrefix + "PORT"); !ok {
		if v, ok := l.Lookup("PORT"); ok {
			var port int
			if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
				cfg.Server.Port = port
			}
		}
	}

	dotPath, err := homedir.Expand(cfg.DotPath)
	if err != nil {
		return nil, fmt.Errorf("expand dot path: %w", err)
	}
	cfg.DotPath = dotPath
	return cfg, nil
}

// Load parses the process environment once, after loading an optional .env file.
func Load() (Config, error) {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Trace("no .env file loaded")
		}
		cfg, err := Parse(context.Background(), envconfig.OsLookuper())
		if err != nil {
			globalErr = err
			return
		}
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}

// WebhookEnabled reports whether updates are pushed instead of polled.
func (c Config) WebhookEnabled() bool {
	return c.Server.WebhookURL != ""
}
