package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"FREDflow/internal/collector"
	"FREDflow/internal/config"
	"FREDflow/internal/destination"
	"FREDflow/internal/metrics"
	"FREDflow/internal/model"
	"FREDflow/internal/state"
	"FREDflow/internal/upsert"
)

type fixture struct {
	runner   *Runner
	provider *collector.MockProvider
	store    *state.FileStore
	dest     *destination.SQLDestination
	dbPath   string
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	store, err := state.NewFileStore(filepath.Join(dir, "state"))
	require.NoError(t, err)

	dbPath := filepath.Join(dir, "fred.db")
	dest, err := destination.Open(ctx, config.Destination{Driver: "sqlite", Host: dbPath, Name: "local"})
	require.NoError(t, err)
	t.Cleanup(func() { dest.Close() })

	provider := &collector.MockProvider{
		Data:   map[string][]collector.RawObservation{},
		Errors: map[string]error{},
	}
	logger := zap.NewNop()
	m := metrics.New()

	return &fixture{
		runner: &Runner{
			Store:        store,
			Collector:    collector.NewCollector(provider, logger),
			Engine:       upsert.NewEngine(logger, m),
			Destinations: []destination.Destination{dest},
			Skip:         map[string]bool{},
			Logger:       logger,
			Metrics:      m,
		},
		provider: provider,
		store:    store,
		dest:     dest,
		dbPath:   dbPath,
		metrics:  m,
	}
}

func raw(pairs ...string) []collector.RawObservation {
	out := make([]collector.RawObservation, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		d, _ := time.Parse(model.DateLayout, pairs[i])
		out = append(out, collector.RawObservation{Date: d, Value: pairs[i+1]})
	}
	return out
}

// logRows reads the run log through a separate handle on the same file.
func logRows(t *testing.T, path, series string) (open, closed, tally int) {
	t.Helper()
	db, err := sqlx.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Get(&open, `SELECT COUNT(*) FROM fredflow_logs WHERE fred_series = ? AND stop_tstamp IS NULL`, series))
	require.NoError(t, db.Get(&closed, `SELECT COUNT(*) FROM fredflow_logs WHERE fred_series = ? AND stop_tstamp IS NOT NULL`, series))
	require.NoError(t, db.Get(&tally, `SELECT COALESCE(SUM(row_tally), 0) FROM fredflow_logs WHERE fred_series = ?`, series))
	return open, closed, tally
}

func TestRun_FirstSyncDropsMissingValues(t *testing.T) {
	f := newFixture(t)
	f.provider.Data["UNRATE"] = raw("2024-01-01", "3.7", "2024-01-02", "NaN", "2024-01-03", "3.8")
	registry := []model.Series{{ID: "UNRATE", Name: "Unemployment Rate", Granularity: model.Daily, Lookback: 0}}

	report, err := f.runner.Run(context.Background(), registry)
	require.NoError(t, err)

	require.Len(t, report.Series, 1)
	sr := report.Series[0]
	assert.Equal(t, OutcomeData, sr.Outcome)
	assert.Equal(t, 3, sr.Fetched)
	assert.Equal(t, 2, sr.Kept)
	assert.Equal(t, DestinationReport{Upserted: 2}, sr.Destinations["local"])
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, []string{"UNRATE"}, report.Reconciliation.Added)

	n, err := f.dest.Count(context.Background(), "UNRATE")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	open, closed, tally := logRows(t, f.dbPath, "UNRATE")
	assert.Zero(t, open)
	assert.Equal(t, 1, closed)
	assert.Equal(t, 2, tally)

	st, err := f.store.Load("UNRATE")
	require.NoError(t, err)
	assert.Equal(t, 1, st.FetchCount)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.RowsUpserted.WithLabelValues("local")))
}

func TestRun_ProviderErrorDoesNotStopOtherSeries(t *testing.T) {
	f := newFixture(t)
	f.provider.Errors["AAA"] = errors.New("HTTP 500")
	f.provider.Data["BBB"] = raw("2024-01-01", "1.5")
	registry := []model.Series{
		{ID: "AAA", Granularity: model.Daily},
		{ID: "BBB", Granularity: model.Daily},
	}

	report, err := f.runner.Run(context.Background(), registry)
	require.NoError(t, err)

	require.Len(t, report.Series, 2)
	assert.Equal(t, OutcomeFailure, report.Series[0].Outcome)
	assert.Equal(t, "HTTP 500", report.Series[0].Error)
	assert.Equal(t, OutcomeData, report.Series[1].Outcome)
	assert.Equal(t, 1, report.Failures())
	assert.Equal(t, map[string]int{"local": 1}, report.Upserted())

	_, err = f.store.Load("AAA")
	require.ErrorIs(t, err, state.ErrNotFound)
	_, err = f.store.Load("BBB")
	require.NoError(t, err)
}

func TestRun_EmptyFetchWritesNoLog(t *testing.T) {
	f := newFixture(t)
	f.provider.Data["DFF"] = raw("2024-01-01", ".", "2024-01-02", "")
	registry := []model.Series{{ID: "DFF", Granularity: model.Daily}}

	report, err := f.runner.Run(context.Background(), registry)
	require.NoError(t, err)

	assert.Equal(t, OutcomeEmpty, report.Series[0].Outcome)
	assert.Empty(t, report.Series[0].Destinations)

	open, closed, _ := logRows(t, f.dbPath, "DFF")
	assert.Zero(t, open+closed)

	_, err = f.store.Load("DFF")
	require.ErrorIs(t, err, state.ErrNotFound)
}

func TestRun_EmptyFetchKeepsExistingState(t *testing.T) {
	f := newFixture(t)
	last := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	st := model.NewSeriesState(model.Series{ID: "DFF", Granularity: model.Daily})
	st.RecordFetch(last)
	require.NoError(t, f.store.Save(st))
	f.provider.Data["DFF"] = raw("2024-06-01", "NaN")

	_, err := f.runner.Run(context.Background(), []model.Series{{ID: "DFF", Granularity: model.Daily}})
	require.NoError(t, err)

	saved, err := f.store.Load("DFF")
	require.NoError(t, err)
	assert.Equal(t, 1, saved.FetchCount)
	assert.True(t, saved.LastFetch.Equal(last))
}

func TestRun_PausesAfterEachFetchedSeries(t *testing.T) {
	f := newFixture(t)
	f.runner.Sleep = 6 * time.Second
	f.runner.Skip = map[string]bool{"SKIP1": true}
	var order []string
	f.runner.pause = func(_ context.Context, d time.Duration) error {
		assert.Equal(t, 6*time.Second, d)
		order = append(order, "pause")
		return nil
	}
	f.provider.Errors["AAA"] = errors.New("HTTP 500")
	f.provider.Data["BBB"] = raw("2024-01-01", "1")
	f.provider.Data["CCC"] = raw("2024-01-01", "2")
	registry := []model.Series{
		{ID: "AAA", Granularity: model.Daily},
		{ID: "SKIP1", Granularity: model.Daily},
		{ID: "BBB", Granularity: model.Daily},
		{ID: "CCC", Granularity: model.Daily},
	}

	report, err := f.runner.Run(context.Background(), registry)
	require.NoError(t, err)
	require.Len(t, report.Series, 4)

	// after AAA and BBB; none after the skipped series or the last one
	assert.Equal(t, []string{"pause", "pause"}, order)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, f.provider.Calls)
}

func TestRun_CancelledDuringPause(t *testing.T) {
	f := newFixture(t)
	f.runner.Sleep = time.Hour
	f.provider.Data["AAA"] = raw("2024-01-01", "1")
	f.provider.Data["BBB"] = raw("2024-01-01", "2")
	ctx, cancel := context.WithCancel(context.Background())
	f.runner.pause = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepCtx(ctx, d)
	}

	report, err := f.runner.Run(ctx, []model.Series{
		{ID: "AAA", Granularity: model.Daily},
		{ID: "BBB", Granularity: model.Daily},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, report.Series, 1)
	assert.Equal(t, []string{"AAA"}, f.provider.Calls)
}

func TestRun_SkipList(t *testing.T) {
	f := newFixture(t)
	f.runner.Skip = map[string]bool{"GDP": true}
	f.provider.Data["GDP"] = raw("2024-01-01", "27000.5")
	registry := []model.Series{{ID: "GDP", Granularity: model.Quarterly}}

	report, err := f.runner.Run(context.Background(), registry)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSkipped, report.Series[0].Outcome)
	assert.Empty(t, f.provider.Calls)
}

func TestRun_SecondRunUsesBookmark(t *testing.T) {
	f := newFixture(t)
	registry := []model.Series{{ID: "DFF", Granularity: model.Daily, Lookback: 1}}
	f.provider.Data["DFF"] = raw("2024-05-30", "5.33", "2024-05-31", "5.33", "2024-06-01", "5.33")

	_, err := f.runner.Run(context.Background(), registry)
	require.NoError(t, err)

	f.provider.Data["DFF"] = raw("2024-05-30", "5.33", "2024-05-31", "5.32", "2024-06-01", "5.33", "2024-06-02", "5.31")
	report, err := f.runner.Run(context.Background(), registry)
	require.NoError(t, err)

	// bookmark 2024-06-01, lookback 1: 05-31 onward is resent
	assert.Equal(t, 3, report.Series[0].Destinations["local"].Upserted)

	n, err := f.dest.Count(context.Background(), "DFF")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	_, closed, tally := logRows(t, f.dbPath, "DFF")
	assert.Equal(t, 2, closed)
	assert.Equal(t, 6, tally)
}

func TestRun_LookbackDriftIsSaved(t *testing.T) {
	f := newFixture(t)
	st := model.NewSeriesState(model.Series{ID: "GDP", Granularity: model.Quarterly, Lookback: 90})
	require.NoError(t, f.store.Save(st))
	f.runner.Skip = map[string]bool{"GDP": true}

	report, err := f.runner.Run(context.Background(), []model.Series{{ID: "GDP", Granularity: model.Quarterly, Lookback: 180}})
	require.NoError(t, err)
	assert.Equal(t, []string{"GDP"}, report.Reconciliation.Reconfigured)

	saved, err := f.store.Load("GDP")
	require.NoError(t, err)
	assert.Equal(t, 180, saved.Series.Lookback)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t)
	f.provider.Data["DFF"] = raw("2024-01-01", "1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.runner.Run(ctx, []model.Series{{ID: "DFF", Granularity: model.Daily}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Series)
	assert.Empty(t, f.provider.Calls)
}
