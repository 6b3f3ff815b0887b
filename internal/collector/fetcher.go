package collector

import (
	"context"
	"time"
)

// RawObservation is one provider row before filtering. Value keeps the
// provider's text so missing markers can be recognised.
type RawObservation struct {
	Date  time.Time
	Value string
}

// Provider retrieves the full observation history of a series.
type Provider interface {
	Observations(ctx context.Context, seriesID string) ([]RawObservation, error)
	Name() string
}
