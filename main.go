package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/iamwavecut/hustlebot/internal/bot"
	"github.com/iamwavecut/hustlebot/internal/config"
	"github.com/iamwavecut/hustlebot/internal/db/sqlite"
	adminHandlers "github.com/iamwavecut/hustlebot/internal/handlers/admin"
	chatHandlers "github.com/iamwavecut/hustlebot/internal/handlers/chat"
	ledgerHandlers "github.com/iamwavecut/hustlebot/internal/handlers/ledger"
	"github.com/iamwavecut/hustlebot/internal/i18n"
	"github.com/iamwavecut/hustlebot/internal/infra"
	"github.com/iamwavecut/hustlebot/internal/infra/reg"
	"github.com/iamwavecut/hustlebot/internal/lifecycle"
	"github.com/iamwavecut/hustlebot/internal/moderation"
	"github.com/iamwavecut/hustlebot/internal/observability"
	"github.com/iamwavecut/hustlebot/internal/server"
)

const (
	shutdownTimeout = 15 * time.Second
	pollRetryDelay  = 3 * time.Second
)

func main() {
	app := &cli.App{
		Name:   "hustlebot",
		Usage:  "hustle points bot with built-in moderation",
		Action: runBot,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "start the bot (default)",
				Action: runBot,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: runMigrate,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.WithField("error", err.Error()).Fatal("hustlebot stopped")
	}
}

func setup() (config.Config, error) {
	cfg, err := config.Load()
	log.SetFormatter(&config.NbFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))
	if err != nil {
		return cfg, errors.WithMessage(err, "cant load config")
	}
	i18n.SetDefaultLanguage(cfg.DefaultLanguage)
	return cfg, nil
}

func runMigrate(cctx *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	dir, err := infra.GetWorkDir(cfg.DotPath)
	if err != nil {
		return err
	}
	store, err := sqlite.NewSQLiteClient(cctx.Context, dir, cfg.DBFile)
	if err != nil {
		return errors.WithMessage(err, "cant open database")
	}
	log.WithField("dot_path", cfg.DotPath).Info("database is up to date")
	return store.Close()
}

type moderationStack struct {
	escalation *moderation.EscalationPolicy
	gate       *moderation.Gate
	commands   *moderation.Commands
	notifier   *moderation.AdminNotifier
}

func buildModeration(cfg config.Config, store moderation.Store, sender moderation.Sender) (*moderationStack, error) {
	mc := cfg.Moderation
	state := moderation.NewState(mc.MessageWindow, mc.CommandWindow, mc.Admins...)

	classifier, err := moderation.NewSpamClassifier(nil, nil)
	if mc.KeywordsFile != "" {
		classifier, err = moderation.LoadSpamClassifier(mc.KeywordsFile)
	}
	if err != nil {
		return nil, errors.WithMessage(err, "cant build spam classifier")
	}

	journal := moderation.NewJournal(store)
	escalation := moderation.NewEscalationPolicy(state, mc.MuteThreshold, mc.WarningDecay)
	verification := moderation.NewVerificationManager(state, store, journal, moderation.VerificationOptions{
		MaxAttempts: mc.MaxAttempts,
		TTL:         mc.ChallengeTTL,
	})
	notifier := moderation.NewAdminNotifier(sender, escalation, moderation.NotifierOptions{
		Concurrency: mc.NotifyConcurrency,
		PerSecond:   mc.NotifyRate,
	})
	rates := moderation.NewRateTracker(state, moderation.RateLimits{
		MessagesPerMinute: mc.MessagesPerMinute,
		CommandsPerMinute: mc.CommandsPerMinute,
		SameContentLimit:  mc.SameContentLimit,
		RepetitionCheck:   mc.RepetitionCheck,
	})

	if len(mc.Admins) == 0 {
		log.Warn("no moderation admins configured, admin commands are unavailable")
	}

	return &moderationStack{
		escalation: escalation,
		gate: moderation.NewGate(moderation.GateDeps{
			Escalation:    escalation,
			Verification:  verification,
			Rates:         rates,
			Classifier:    classifier,
			Journal:       journal,
			Notifier:      notifier,
			AdminLanguage: i18n.GetDefaultLanguage(),
		}),
		commands: moderation.NewCommands(escalation, verification, journal, notifier),
		notifier: notifier,
	}, nil
}

func runBot(cctx *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Init(ctx)
	if err != nil {
		return errors.WithMessage(err, "cant init observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	dir, err := infra.GetWorkDir(cfg.DotPath)
	if err != nil {
		return err
	}
	store, err := sqlite.NewSQLiteClient(ctx, dir, cfg.DBFile)
	if err != nil {
		return errors.WithMessage(err, "cant open database")
	}
	defer store.Close()

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		return errors.WithMessage(err, "cant initialize bot api")
	}
	botAPI.Debug = log.Level(cfg.LogLevel) == log.TraceLevel
	service := bot.NewService(botAPI, store)

	mod, err := buildModeration(cfg, store, service.GetOps())
	if err != nil {
		return err
	}
	decisions, err := reg.New(reg.DefaultSize)
	if err != nil {
		return err
	}

	processor := bot.NewUpdateProcessor(cfg.EnabledHandlers, map[string]bot.Handler{
		"admin":  adminHandlers.NewAdmin(service, mod.commands, mod.escalation, decisions),
		"guard":  chatHandlers.NewGuard(service, mod.gate, decisions),
		"ledger": ledgerHandlers.NewHustle(service),
	})
	dispatcher := bot.NewDispatcher(processor, cfg.Workers)

	var webhookPath, webhookSecret string
	if cfg.WebhookEnabled() {
		webhookPath = server.WebhookPath(cfg.TelegramAPIToken)
		webhookSecret = server.WebhookSecret(cfg.TelegramAPIToken)
	}
	srv := server.New(server.Options{
		Listen:        cfg.Server.Listen,
		Port:          cfg.Server.Port,
		WebhookPath:   webhookPath,
		WebhookSecret: webhookSecret,
		Metrics:       cfg.Server.MetricsEnabled,
	}, dispatcher)

	runtime := lifecycle.NewRuntime(mod.notifier, dispatcher, srv)
	if err := runtime.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := runtime.Stop(shutdownCtx); err != nil {
			log.WithField("error", err.Error()).Error("unclean shutdown")
		}
	}()

	entry := log.WithFields(log.Fields{"bot": botAPI.Self.UserName, "webhook": cfg.WebhookEnabled()})
	if cfg.WebhookEnabled() {
		wh, err := api.NewWebhook(strings.TrimSuffix(cfg.Server.WebhookURL, "/") + webhookPath)
		if err != nil {
			return errors.WithMessage(err, "cant build webhook")
		}
		wh.SecretToken = webhookSecret
		if _, err := botAPI.Request(wh); err != nil {
			return errors.WithMessage(err, "cant set webhook")
		}
		entry.Info("receiving updates via webhook")
		<-ctx.Done()
		return nil
	}

	if _, err := botAPI.Request(api.DeleteWebhookConfig{}); err != nil {
		entry.WithField("error", err.Error()).Warn("cant delete webhook")
	}
	entry.Info("receiving updates via long polling")
	infra.GoRecoverable(-1, "poll_updates", func() {
		poll(ctx, botAPI, dispatcher)
	})
	return nil
}

// poll feeds the dispatcher until ctx is done, reconnecting after api errors.
func poll(ctx context.Context, botAPI *api.BotAPI, dispatcher *bot.Dispatcher) {
	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = 60

	for {
		updates, errs := bot.GetUpdatesChans(ctx, botAPI, updateConfig)
		for update := range updates {
			if update.UpdateID >= updateConfig.Offset {
				updateConfig.Offset = update.UpdateID + 1
			}
			if err := dispatcher.Dispatch(ctx, update); err != nil {
				log.WithFields(log.Fields{"update_id": update.UpdateID, "error": err.Error()}).Error("cant dispatch update")
			}
		}
		err := <-errs
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.WithField("error", err.Error()).Error("bot api get updates error")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(pollRetryDelay):
		}
	}
}
