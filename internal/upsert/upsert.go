// Package upsert merges a window of observations into one destination and
// records the attempt in the destination's run log.
package upsert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"FREDflow/internal/bookmark"
	"FREDflow/internal/destination"
	"FREDflow/internal/metrics"
	"FREDflow/internal/model"
)

// Result reports what one Upsert call did.
type Result struct {
	Submitted int  // observations in the window
	Upserted  int  // merges committed; this is the logged tally
	Skipped   int  // merges that affected no rows, or had no routine
	Failed    int  // merges that returned an error
	Logged    bool // a run log entry was opened
}

// Engine merges observations row by row.
type Engine struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func NewEngine(logger *zap.Logger, m *metrics.Metrics) *Engine {
	return &Engine{Logger: logger, Metrics: m, Now: time.Now}
}

// Upsert sends the observations at or after the lookback cutoff to dest.
// Every row is merged in its own transaction. The run log entry is opened
// before the first row and closed with the number of committed rows after
// the last one. An empty window touches nothing.
func (e *Engine) Upsert(ctx context.Context, dest destination.Destination, s model.Series, bm *time.Time, obs []model.Observation) (Result, error) {
	logger := e.Logger.With(zap.String("series", s.ID), zap.String("destination", dest.Name()))

	window := bookmark.Window(obs, bm, s.Lookback)
	res := Result{Submitted: len(window)}
	if len(window) == 0 {
		logger.Info("nothing to upsert")
		return res, nil
	}

	sess, err := dest.Open(ctx)
	if err != nil {
		return res, err
	}
	defer sess.Close()

	if err := sess.OpenLog(ctx, s.ID, e.Now()); err != nil {
		return res, fmt.Errorf("open run log: %w", err)
	}
	res.Logged = true
	logger.Info("upserting", zap.Int("rows", len(window)))

	routine, ok := destination.RoutineFor(s.Granularity)
	if !ok {
		logger.Warn("no merge routine for granularity", zap.String("granularity", string(s.Granularity)))
	}

	var runErr error
	for _, o := range window {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if !ok {
			res.Skipped++
			continue
		}
		date := o.DateString()
		n, err := sess.Merge(ctx, routine, s.ID, date, o.Value)
		switch {
		case err != nil:
			res.Failed++
			logger.Error("merge failed", zap.String("date", date), zap.Error(err))
		case n > 0:
			res.Upserted++
		default:
			res.Skipped++
			logger.Warn("merge affected no rows", zap.String("date", date), zap.String("value", o.Value.String()))
		}
	}

	// The log is closed even when the run was cancelled mid-series.
	closeCtx := context.WithoutCancel(ctx)
	if err := sess.CloseLog(closeCtx, s.ID, res.Upserted, e.Now()); err != nil {
		logger.Error("close run log", zap.Error(err))
		if runErr == nil {
			runErr = fmt.Errorf("close run log: %w", err)
		}
	}

	e.Metrics.Rows(dest.Name(), res.Upserted, res.Skipped, res.Failed)
	logger.Info("upsert finished",
		zap.Int("upserted", res.Upserted),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	return res, runErr
}
