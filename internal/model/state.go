package model

import "time"

// SeriesState is the persisted fetch history of one series.
type SeriesState struct {
	Series     Series     `json:"series"`
	FirstFetch *time.Time `json:"first_fetch,omitempty"`
	LastFetch  *time.Time `json:"last_fetch,omitempty"`
	FetchCount int        `json:"fetch_count"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewSeriesState returns a state that has never been fetched.
func NewSeriesState(s Series) *SeriesState {
	return &SeriesState{Series: s}
}

// RecordFetch marks a successful provider call at t.
func (st *SeriesState) RecordFetch(t time.Time) {
	if st.FirstFetch == nil {
		first := t
		st.FirstFetch = &first
	}
	last := t
	st.LastFetch = &last
	st.FetchCount++
}

// WaitDays returns the whole days elapsed since the last fetch, or nil if the
// series was never fetched.
func (st *SeriesState) WaitDays(now time.Time) *int {
	if st.LastFetch == nil {
		return nil
	}
	days := int(now.Sub(*st.LastFetch).Hours() / 24)
	return &days
}
