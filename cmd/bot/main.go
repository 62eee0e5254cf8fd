package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-bot/internal/app"
	"github.com/dvloznov/finance-bot/internal/config"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/telegram"
)

func main() {
	envFile := flag.String("env", "", "Path to a .env file (default: ./.env if present)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(os.Stdout, cfg.LogLevel)

	if err := cfg.Validate("TELEGRAM_BOT_TOKEN"); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise services")
	}

	api, err := telegram.Connect(cfg.Telegram.Token, cfg.Telegram.Debug)
	if err != nil {
		_ = a.Close()
		log.Fatal().Err(err).Msg("Failed to connect to Telegram")
	}
	log.Info().Str("bot", api.Self.UserName).Msg("Connected to Telegram")

	transport := telegram.New(api, a.Bot, log.With().Str("component", "telegram").Logger())
	a.SetNotifier(transport)

	if err := a.StartExports(ctx); err != nil {
		_ = a.Close()
		log.Fatal().Err(err).Msg("Failed to start export workers")
	}

	go a.SweepSessions(ctx, cfg.Session.SelectionTTL)

	go func() {
		log.Info().Dur("interval", cfg.Reminder.Interval).Msg("Starting reminder loop")
		if err := a.Reminders.Run(ctx, cfg.Reminder.Interval); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Reminder loop stopped with error")
		}
	}()

	log.Info().Str("store", cfg.Store.Driver).Msg("Bot is running")
	runErr := transport.Run(ctx)

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := a.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}

	if errors.Is(runErr, domain.ErrTransportAuthInvalid) {
		log.Fatal().Err(runErr).Msg("Telegram rejected the bot token")
	}
	log.Info().Msg("Bot exited")
}
