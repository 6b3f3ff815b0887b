package main

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"FREDflow/internal/config"
	"FREDflow/internal/model"
	"FREDflow/internal/scheduler"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync on a cron schedule and expose metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer a.close()
			a.connect(ctx)

			runner := a.runner()
			sched := scheduler.NewScheduler(ctx, a.logger)
			if err := sched.Register(a.cfg.Schedule.Cron, func(ctx context.Context) error {
				// Registry files are re-read so edits apply on the next tick.
				report, err := runner.Run(ctx, reloadSeries(a))
				a.notify(ctx, report)
				return err
			}); err != nil {
				return err
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", a.metrics.Handler())
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})
			srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				a.logger.Info("metrics listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("metrics server", zap.Error(err))
				}
			}()

			sched.Start()
			if a.cfg.Schedule.RunOnStart {
				a.logger.Info("run_on_start enabled, executing sync now")
				go sched.RunNow()
			}

			a.logger.Info("fredflow is running, press Ctrl+C to stop")
			<-ctx.Done()

			a.logger.Info("shutdown signal received, stopping")
			sched.Stop()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

// reloadSeries falls back to the last good registry when the file is broken.
func reloadSeries(a *app) []model.Series {
	series, err := config.LoadSeries(filepath.Join(a.cfg.ConfigDir, config.SeriesFile))
	if err != nil {
		a.logger.Warn("reload series registry, keeping previous", zap.Error(err))
		return a.registry.Series
	}
	a.registry.Series = series
	return series
}
