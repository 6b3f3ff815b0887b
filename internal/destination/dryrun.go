package destination

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"FREDflow/internal/model"
)

// DryRun reads bookmarks and counts from an optional inner destination but
// never writes through it; merges and run log entries are only logged. The
// inner destination should come from OpenReadOnly.
type DryRun struct {
	Label  string
	Inner  Destination
	Logger *zap.Logger
}

// NewDryRun wraps inner, which may be nil when the target cannot be read.
func NewDryRun(label string, inner Destination, logger *zap.Logger) *DryRun {
	return &DryRun{Label: label, Inner: inner, Logger: logger}
}

func (d *DryRun) Name() string {
	if d.Label != "" {
		return d.Label + " (dry run)"
	}
	return "dry run"
}

func (d *DryRun) Descriptor() model.Descriptor {
	return model.Descriptor{Kind: "DRY", Title: "Dry Run"}
}

func (d *DryRun) Bookmark(ctx context.Context, seriesID string) (*time.Time, error) {
	if d.Inner == nil {
		return nil, nil
	}
	return d.Inner.Bookmark(ctx, seriesID)
}

func (d *DryRun) Count(ctx context.Context, seriesID string) (int64, error) {
	if d.Inner == nil {
		return 0, nil
	}
	return d.Inner.Count(ctx, seriesID)
}

func (d *DryRun) Ping(ctx context.Context) (bool, error) {
	if d.Inner == nil {
		return true, nil
	}
	return d.Inner.Ping(ctx)
}

func (d *DryRun) Open(context.Context) (Session, error) {
	return &dryRunSession{logger: d.Logger.With(zap.String("destination", d.Name()))}, nil
}

func (d *DryRun) Close() error {
	if d.Inner == nil {
		return nil
	}
	return d.Inner.Close()
}

type dryRunSession struct {
	logger *zap.Logger
}

func (s *dryRunSession) OpenLog(_ context.Context, seriesID string, start time.Time) error {
	s.logger.Info("would open run log", zap.String("series", seriesID), zap.Time("start", start))
	return nil
}

func (s *dryRunSession) Merge(_ context.Context, r Routine, seriesID, date string, value decimal.Decimal) (int64, error) {
	s.logger.Debug("would merge",
		zap.String("series", seriesID),
		zap.String("routine", string(r)),
		zap.String("date", date),
		zap.String("value", value.String()))
	return 1, nil
}

func (s *dryRunSession) CloseLog(_ context.Context, seriesID string, tally int, stop time.Time) error {
	s.logger.Info("would close run log", zap.String("series", seriesID), zap.Int("row_tally", tally), zap.Time("stop", stop))
	return nil
}

func (s *dryRunSession) Close() error { return nil }
