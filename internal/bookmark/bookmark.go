// Package bookmark decides which observations still need to be sent to a
// destination.
package bookmark

import (
	"context"
	"time"

	"FREDflow/internal/destination"
	"FREDflow/internal/model"
)

// Resolve returns the newest release date already stored for the series, or
// nil when the destination has no rows for it.
func Resolve(ctx context.Context, dest destination.Destination, s model.Series) (*time.Time, error) {
	return dest.Bookmark(ctx, s.ID)
}

// Cutoff is the bookmark moved back by lookback days.
func Cutoff(bm time.Time, lookback int) time.Time {
	return bm.AddDate(0, 0, -lookback)
}

// Window keeps the observations dated on or after the cutoff. A nil bookmark
// keeps everything.
func Window(obs []model.Observation, bm *time.Time, lookback int) []model.Observation {
	if bm == nil {
		return obs
	}
	cutoff := Cutoff(*bm, lookback)
	out := make([]model.Observation, 0, len(obs))
	for _, o := range obs {
		if !o.Date.Before(cutoff) {
			out = append(out, o)
		}
	}
	return out
}
