// Package pipeline runs one sync pass over every configured series.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"FREDflow/internal/bookmark"
	"FREDflow/internal/collector"
	"FREDflow/internal/destination"
	"FREDflow/internal/metrics"
	"FREDflow/internal/model"
	"FREDflow/internal/state"
	"FREDflow/internal/upsert"
)

// Runner wires the collector, state store and destinations together.
// Series are processed one at a time in registry order.
type Runner struct {
	Store        state.Store
	Collector    *collector.Collector
	Engine       *upsert.Engine
	Destinations []destination.Destination
	Sleep        time.Duration // fixed pause after each fetched series
	Skip         map[string]bool
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Now          func() time.Time

	pause func(ctx context.Context, d time.Duration) error
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run reconciles the registry with persisted state and syncs every series.
// Only a failure to read or reconcile state, or cancellation of ctx, ends
// the run early; per-series and per-destination errors are logged and
// reported.
func (r *Runner) Run(ctx context.Context, registry []model.Series) (*Report, error) {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	report := &Report{RunID: uuid.NewString(), Started: now()}
	logger := r.Logger.With(zap.String("run_id", report.RunID))
	logger.Info("run started", zap.Int("series", len(registry)), zap.Int("destinations", len(r.Destinations)))

	known, err := r.Store.List()
	if err != nil {
		return report, fmt.Errorf("load state: %w", err)
	}
	states, rec, err := state.Reconcile(registry, known, r.Store, logger)
	if err != nil {
		return report, err
	}
	report.Reconciliation = rec
	for _, id := range rec.Retained {
		logger.Info("series no longer configured, keeping state", zap.String("series", id))
	}

	col := *r.Collector
	col.Logger = logger
	eng := *r.Engine
	eng.Logger = logger

	pause := r.pause
	if pause == nil {
		pause = sleepCtx
	}

	for i, st := range states {
		if err := ctx.Err(); err != nil {
			return r.finish(report, logger, now), err
		}
		sr := r.runSeries(ctx, logger, &col, &eng, st)
		report.Series = append(report.Series, sr)

		// The pause follows the whole series, destinations included.
		if sr.Outcome != OutcomeSkipped && i < len(states)-1 && r.Sleep > 0 {
			if err := pause(ctx, r.Sleep); err != nil {
				return r.finish(report, logger, now), err
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return r.finish(report, logger, now), err
	}
	return r.finish(report, logger, now), nil
}

func (r *Runner) finish(report *Report, logger *zap.Logger, now func() time.Time) *Report {
	report.Finished = now()
	r.Metrics.RunFinished(report.Finished.Sub(report.Started), report.Finished)
	logger.Info("run finished",
		zap.Duration("elapsed", report.Finished.Sub(report.Started)),
		zap.Int("series", len(report.Series)),
		zap.Int("failures", report.Failures()))
	return report
}

func (r *Runner) runSeries(ctx context.Context, logger *zap.Logger, col *collector.Collector, eng *upsert.Engine, st *model.SeriesState) SeriesReport {
	s := st.Series
	sr := SeriesReport{ID: s.ID}
	logger = logger.With(zap.String("series", s.ID))

	if r.Skip[s.ID] {
		logger.Info("series on skip list")
		sr.Outcome = OutcomeSkipped
		r.Metrics.Fetch(string(OutcomeSkipped))
		return sr
	}

	res := col.Fetch(ctx, st)
	sr.Outcome = outcomeOf(res.Kind)
	sr.Fetched = res.Fetched
	sr.Kept = len(res.Observations)
	r.Metrics.Fetch(string(sr.Outcome))

	if res.Kind == collector.KindFailure {
		logger.Error("fetch failed", zap.Error(res.Err))
		sr.Error = res.Err.Error()
		return sr
	}

	if res.Kind == collector.KindEmpty {
		logger.Info("no values returned, state not saved", zap.Int("fetched", res.Fetched))
		return sr
	}

	if err := r.Store.Save(st); err != nil {
		logger.Error("save state", zap.Error(err))
	}

	sr.Destinations = make(map[string]DestinationReport, len(r.Destinations))
	for _, dest := range r.Destinations {
		sr.Destinations[dest.Name()] = r.syncDestination(ctx, logger, eng, dest, s, res.Observations)
	}
	return sr
}

func (r *Runner) syncDestination(ctx context.Context, logger *zap.Logger, eng *upsert.Engine, dest destination.Destination, s model.Series, obs []model.Observation) DestinationReport {
	var dr DestinationReport
	logger = logger.With(zap.String("destination", dest.Name()))

	bm, err := bookmark.Resolve(ctx, dest, s)
	if err != nil {
		logger.Error("resolve bookmark", zap.Error(err))
		r.Metrics.DestinationError(dest.Name())
		dr.Error = err.Error()
		return dr
	}
	if bm != nil {
		logger.Debug("bookmark",
			zap.String("date", bm.Format(model.DateLayout)),
			zap.String("cutoff", bookmark.Cutoff(*bm, s.Lookback).Format(model.DateLayout)))
	}

	res, err := eng.Upsert(ctx, dest, s, bm, obs)
	dr.Upserted, dr.Skipped, dr.Failed = res.Upserted, res.Skipped, res.Failed
	if err != nil {
		logger.Error("upsert", zap.Error(err))
		r.Metrics.DestinationError(dest.Name())
		dr.Error = err.Error()
	}
	return dr
}
