package collector

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"FREDflow/internal/model"
)

// Kind classifies the outcome of a fetch.
type Kind int

const (
	KindData Kind = iota
	KindEmpty
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindEmpty:
		return "empty"
	default:
		return "failure"
	}
}

// Result is the outcome of Fetch. Observations is set only for KindData and
// Err only for KindFailure.
type Result struct {
	Kind         Kind
	Observations []model.Observation
	Fetched      int // rows returned by the provider before filtering
	Err          error
}

// Collector fetches series history and keeps fetch bookkeeping on the state.
type Collector struct {
	Provider Provider
	Logger   *zap.Logger
	Now      func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(provider Provider, logger *zap.Logger) *Collector {
	return &Collector{Provider: provider, Logger: logger, Now: time.Now}
}

// Fetch retrieves the whole history of the series and drops missing values.
// Any completed provider call updates the fetch timestamps and count on st,
// even when nothing remains; a failed call leaves st alone. Persisting st is
// the caller's decision.
func (c *Collector) Fetch(ctx context.Context, st *model.SeriesState) Result {
	id := st.Series.ID
	c.Logger.Info("fetching series", zap.String("series", id), zap.String("name", st.Series.Name))

	raw, err := c.Provider.Observations(ctx, id)
	if err != nil {
		return Result{Kind: KindFailure, Err: err}
	}
	st.RecordFetch(c.Now())

	obs := make([]model.Observation, 0, len(raw))
	for _, r := range raw {
		v, ok := parseValue(r.Value)
		if !ok {
			continue
		}
		obs = append(obs, model.Observation{Date: r.Date, Value: v})
	}
	c.Logger.Debug("fetched values",
		zap.String("series", id),
		zap.Int("fetched", len(raw)),
		zap.Int("kept", len(obs)))

	if len(obs) == 0 {
		return Result{Kind: KindEmpty, Fetched: len(raw)}
	}
	return Result{Kind: KindData, Observations: obs, Fetched: len(raw)}
}

// parseValue returns false for FRED's "." marker, blanks, NaN and anything
// else that is not a finite number.
func parseValue(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", ".", "nan", "na", "null", "inf", "+inf", "-inf":
		return decimal.Decimal{}, false
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return v, true
}
