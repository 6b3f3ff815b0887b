package state

import (
	"fmt"

	"go.uber.org/zap"

	"FREDflow/internal/model"
)

// Reconciliation summarises what Reconcile changed.
type Reconciliation struct {
	Added        []string
	Reconfigured []string
	Retained     []string // known to state but no longer in the registry
}

// Reconcile matches the configured series against persisted state. New series
// get a fresh state that is not saved until its first successful fetch. A
// known series whose configured lookback drifted has the new lookback saved
// immediately; nothing else about it changes. States for series missing from
// the registry are left alone and are not returned.
//
// The returned slice follows registry order.
func Reconcile(registry []model.Series, known map[string]*model.SeriesState, store Store, logger *zap.Logger) ([]*model.SeriesState, Reconciliation, error) {
	var rec Reconciliation
	states := make([]*model.SeriesState, 0, len(registry))
	configured := make(map[string]bool, len(registry))

	for _, s := range registry {
		configured[s.ID] = true
		st, ok := known[s.ID]
		if !ok {
			logger.Info("new series", zap.String("series", s.ID), zap.String("name", s.Name))
			states = append(states, model.NewSeriesState(s))
			rec.Added = append(rec.Added, s.ID)
			continue
		}
		if st.Series.Lookback != s.Lookback {
			logger.Info("reconfiguring lookback",
				zap.String("series", s.ID),
				zap.Int("from", st.Series.Lookback),
				zap.Int("to", s.Lookback))
			st.Series.Lookback = s.Lookback
			if err := store.Save(st); err != nil {
				return nil, rec, fmt.Errorf("save reconfigured %s: %w", s.ID, err)
			}
			rec.Reconfigured = append(rec.Reconfigured, s.ID)
		} else {
			logger.Debug("no lookback parameter changes", zap.String("series", s.ID))
		}
		states = append(states, st)
	}

	for _, id := range SortedIDs(known) {
		if !configured[id] {
			rec.Retained = append(rec.Retained, id)
		}
	}
	return states, rec, nil
}
