package pipeline

import (
	"time"

	"FREDflow/internal/collector"
	"FREDflow/internal/state"
)

// Outcome is what happened to one series during a run.
type Outcome string

const (
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailure Outcome = "failure"
	OutcomeEmpty   Outcome = "empty"
	OutcomeData    Outcome = "data"
)

func outcomeOf(k collector.Kind) Outcome {
	switch k {
	case collector.KindData:
		return OutcomeData
	case collector.KindEmpty:
		return OutcomeEmpty
	default:
		return OutcomeFailure
	}
}

// DestinationReport is the result of syncing one series into one destination.
type DestinationReport struct {
	Upserted int    `json:"upserted"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	Error    string `json:"error,omitempty"`
}

// SeriesReport is the result of one series.
type SeriesReport struct {
	ID           string                       `json:"id"`
	Outcome      Outcome                      `json:"outcome"`
	Fetched      int                          `json:"fetched"`
	Kept         int                          `json:"kept"`
	Error        string                       `json:"error,omitempty"`
	Destinations map[string]DestinationReport `json:"destinations,omitempty"`
}

// Report summarises a run.
type Report struct {
	RunID          string               `json:"run_id"`
	Started        time.Time            `json:"started"`
	Finished       time.Time            `json:"finished"`
	Reconciliation state.Reconciliation `json:"reconciliation"`
	Series         []SeriesReport       `json:"series"`
}

// Upserted totals committed rows per destination.
func (r *Report) Upserted() map[string]int {
	out := make(map[string]int)
	for _, s := range r.Series {
		for name, d := range s.Destinations {
			out[name] += d.Upserted
		}
	}
	return out
}

// Failures counts series that failed to fetch plus series/destination pairs
// that errored.
func (r *Report) Failures() int {
	n := 0
	for _, s := range r.Series {
		if s.Outcome == OutcomeFailure {
			n++
		}
		for _, d := range s.Destinations {
			if d.Error != "" {
				n++
			}
		}
	}
	return n
}
