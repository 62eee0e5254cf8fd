// Package app wires configuration into the services the binaries run.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-bot/internal/accounts"
	"github.com/dvloznov/finance-bot/internal/analysis"
	"github.com/dvloznov/finance-bot/internal/bot"
	"github.com/dvloznov/finance-bot/internal/config"
	"github.com/dvloznov/finance-bot/internal/coordinator"
	"github.com/dvloznov/finance-bot/internal/export"
	bqinfra "github.com/dvloznov/finance-bot/internal/infra/bigquery"
	"github.com/dvloznov/finance-bot/internal/infra/gcs"
	"github.com/dvloznov/finance-bot/internal/infra/notion"
	"github.com/dvloznov/finance-bot/internal/jobs/inmemory"
	"github.com/dvloznov/finance-bot/internal/ledger"
	"github.com/dvloznov/finance-bot/internal/reminder"
	"github.com/dvloznov/finance-bot/internal/session"
	"github.com/dvloznov/finance-bot/internal/store"
	"github.com/dvloznov/finance-bot/internal/store/bolt"
	"github.com/dvloznov/finance-bot/internal/store/memory"
	"github.com/dvloznov/finance-bot/internal/store/sqlite"
)

const queueBuffer = 100

// App holds the wired services. Optional parts are nil when unconfigured.
type App struct {
	Config      *config.Config
	Store       store.Store
	Accounts    *accounts.Registry
	Ledger      *ledger.Ledger
	Coordinator *coordinator.Coordinator
	Sessions    *session.Registry
	Reminders   *reminder.Scheduler
	Jobs        *inmemory.Store
	Queue       *inmemory.Queue
	Exports     *export.Service
	BigQuery    *bqinfra.Exporter
	Bot         *bot.Handler

	closers []func() error
	logger  zerolog.Logger
}

// OpenStore opens the ledger backend named by cfg.Driver.
func OpenStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.NewStore(), nil
	case config.DriverBolt, config.DriverSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating store dir: %w", err)
			}
		}
		if cfg.Driver == config.DriverBolt {
			return bolt.Open(cfg.Path)
		}
		return sqlite.Open(cfg.Path)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// New opens the store and builds every service cfg enables.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	s, err := OpenStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}

	a := &App{Config: cfg, Store: s, logger: logger}
	a.closers = append(a.closers, s.Close)

	a.Accounts = accounts.NewRegistry(s)
	a.Ledger = ledger.New(s)
	a.Coordinator = coordinator.New(s, a.Accounts, a.Ledger, logger.With().Str("component", "coordinator").Logger())
	a.Sessions = session.NewRegistry(cfg.Session.SelectionTTL)
	a.Reminders = reminder.NewScheduler(s, nil, logger.With().Str("component", "reminder").Logger())

	sinks, err := a.buildSinks(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Jobs = inmemory.NewStore()
	a.Queue = inmemory.NewQueue(queueBuffer, cfg.Export.Workers, a.Jobs, logger.With().Str("component", "queue").Logger())
	a.Exports = export.NewService(a.Coordinator, logger.With().Str("component", "export").Logger(), sinks...)

	a.Bot = bot.New(a.Coordinator, a.Accounts, a.Sessions, logger.With().Str("component", "bot").Logger()).
		WithCooldown(session.NewCooldown(cfg.Session.Cooldown)).
		WithReminders(a.Reminders)
	if len(sinks) > 0 {
		a.Bot.WithExports(a.Queue)
	}

	if cfg.Gemini.APIKey != "" {
		gen, err := analysis.NewGeminiGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("creating Gemini client: %w", err)
		}
		a.Bot.WithAnalyzer(analysis.NewService(gen, logger.With().Str("component", "analysis").Logger()))
	} else {
		logger.Warn().Msg("GEMINI_API_KEY not set - /analyze is disabled")
	}

	return a, nil
}

func (a *App) buildSinks(ctx context.Context) ([]export.Sink, error) {
	cfg := a.Config.Export
	var sinks []export.Sink

	if cfg.Dir != "" {
		sinks = append(sinks, export.FileSink{Dir: cfg.Dir})
	}

	if cfg.Bucket != "" {
		up, err := gcs.NewUploader(ctx, cfg.Bucket)
		if err != nil {
			return nil, fmt.Errorf("creating GCS uploader: %w", err)
		}
		a.closers = append(a.closers, up.Close)
		sinks = append(sinks, up)
	}

	if cfg.BQProject != "" {
		bq, err := bqinfra.NewExporter(ctx, cfg.BQProject, cfg.BQDataset, cfg.BQTable)
		if err != nil {
			return nil, fmt.Errorf("creating BigQuery exporter: %w", err)
		}
		a.closers = append(a.closers, bq.Close)
		a.BigQuery = bq
		sinks = append(sinks, bq)
	}

	if cfg.NotionEnabled() {
		sinks = append(sinks, notion.NewExporter(
			notion.NewClient(cfg.NotionToken),
			cfg.NotionDBID,
			a.logger.With().Str("component", "notion").Logger(),
		))
	}

	names := make([]string, len(sinks))
	for i, s := range sinks {
		names[i] = s.Name()
	}
	a.logger.Info().Strs("sinks", names).Msg("Export sinks configured")
	return sinks, nil
}

// Notifier delivers text to a chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// SetNotifier routes export results and due reminders to n.
func (a *App) SetNotifier(n Notifier) {
	a.Exports.WithNotifier(n)
	a.Reminders.WithNotifier(n)
}

// StartExports launches the export workers.
func (a *App) StartExports(ctx context.Context) error {
	return a.Queue.Start(ctx, a.Exports.Handle)
}

// SweepSessions drops expired selections every interval until ctx ends.
func (a *App) SweepSessions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.Sessions.Sweep(); n > 0 {
				a.logger.Debug().Int("sessions", n).Msg("Swept idle sessions")
			}
		}
	}
}

// Shutdown drains the export queue, then closes everything.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Queue != nil {
		if err := a.Queue.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping job queue: %w", err))
		}
	}
	if err := a.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases the store and cloud clients, last opened first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
