package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"FREDflow/internal/collector"
	"FREDflow/internal/config"
	"FREDflow/internal/destination"
	"FREDflow/internal/logging"
	"FREDflow/internal/metrics"
	"FREDflow/internal/notifier"
	"FREDflow/internal/pipeline"
	"FREDflow/internal/state"
	"FREDflow/internal/upsert"
)

// app is everything a subcommand needs, built from config.
type app struct {
	cfg          *config.Config
	logger       *zap.Logger
	registry     *config.Registry
	store        *state.FileStore
	destinations []destination.Destination
	metrics      *metrics.Metrics
	notifier     *notifier.TelegramNotifier
}

// loadApp reads configuration and the CSV registry. Configuration errors are
// returned as-is and end the process.
func loadApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.dryRun {
		cfg.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	reg, err := config.LoadRegistry(cfg.ConfigDir, cfg.Provider.APIKey)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	store, err := state.NewFileStore(cfg.StateDir)
	if err != nil {
		return nil, err
	}

	logger.Info("configuration loaded",
		zap.String("config_dir", cfg.ConfigDir),
		zap.String("state_dir", cfg.StateDir),
		zap.Int("series", len(reg.Series)),
		zap.Int("destinations", len(reg.Destinations)),
		zap.Bool("dry_run", cfg.DryRun))

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		store:    store,
		metrics:  metrics.New(),
	}
	if cfg.NotifyEnabled() {
		a.notifier = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Provider.Proxy, logger)
	}
	return a, nil
}

// connect opens every configured destination. A destination that cannot be
// opened is logged and left out; the others still sync. In dry-run mode the
// targets are opened read-only and wrapped so nothing is written.
func (a *app) connect(ctx context.Context) {
	for _, d := range a.registry.Destinations {
		if a.cfg.DryRun {
			a.destinations = append(a.destinations, a.openDryRun(ctx, d))
			continue
		}
		dest, err := destination.Open(ctx, d)
		if err != nil {
			a.logger.Error("open destination", zap.String("destination", d.Name), zap.Error(err))
			continue
		}
		a.logger.Info("destination ready",
			zap.String("destination", dest.Name()),
			zap.String("kind", dest.Descriptor().Title))
		a.destinations = append(a.destinations, dest)
	}
}

// openDryRun falls back to a dry run without bookmarks when the target cannot
// be read, so every row of the series is reported.
func (a *app) openDryRun(ctx context.Context, d config.Destination) destination.Destination {
	dest, err := destination.OpenReadOnly(ctx, d)
	if err != nil {
		a.logger.Warn("dry run without bookmarks", zap.String("destination", d.Name), zap.Error(err))
		return destination.NewDryRun(d.Name, nil, a.logger)
	}
	return destination.NewDryRun(d.Name, dest, a.logger)
}

func (a *app) runner() *pipeline.Runner {
	provider := collector.NewFREDProvider(a.cfg.Provider.BaseURL, a.registry.APIKey, a.cfg.Provider.Proxy)
	return &pipeline.Runner{
		Store:        a.store,
		Collector:    collector.NewCollector(provider, a.logger),
		Engine:       upsert.NewEngine(a.logger, a.metrics),
		Destinations: a.destinations,
		Sleep:        a.cfg.Sleep,
		Skip:         a.cfg.Skipped(),
		Logger:       a.logger,
		Metrics:      a.metrics,
	}
}

// notify sends the run report when Telegram is configured. Send failures are
// logged only.
func (a *app) notify(ctx context.Context, report *pipeline.Report) {
	if a.notifier == nil || report == nil {
		return
	}
	if err := a.notifier.SendWithRetry(ctx, notifier.FormatRunReport(report), 3); err != nil {
		a.logger.Error("send run report", zap.Error(err))
	}
}

func (a *app) close() {
	for _, d := range a.destinations {
		if err := d.Close(); err != nil {
			a.logger.Warn("close destination", zap.String("destination", d.Name()), zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
