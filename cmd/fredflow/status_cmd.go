package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"FREDflow/internal/model"
	"FREDflow/internal/state"
)

type statusRow struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Configured bool       `json:"configured"`
	Lookback   int        `json:"lookback"`
	FetchCount int        `json:"fetch_count"`
	LastFetch  *time.Time `json:"last_fetch,omitempty"`
	WaitDays   *int       `json:"wait_days,omitempty"`
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show persisted fetch state of every series",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			known, err := a.store.List()
			if err != nil {
				return err
			}
			rows := statusRows(a.registry.Series, known, time.Now())
			if asJSON {
				return writeJSON(rows)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SERIES\tCONFIGURED\tLOOKBACK\tFETCHES\tLAST FETCH\tWAIT DAYS")
			for _, r := range rows {
				last, wait := "-", "-"
				if r.LastFetch != nil {
					last = r.LastFetch.Local().Format(time.DateTime)
				}
				if r.WaitDays != nil {
					wait = fmt.Sprint(*r.WaitDays)
				}
				fmt.Fprintf(w, "%s\t%t\t%d\t%d\t%s\t%s\n", r.ID, r.Configured, r.Lookback, r.FetchCount, last, wait)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

// statusRows lists configured series in registry order, then state kept for
// series that are no longer configured.
func statusRows(registry []model.Series, known map[string]*model.SeriesState, now time.Time) []statusRow {
	rows := make([]statusRow, 0, len(known)+len(registry))
	seen := make(map[string]bool, len(registry))
	for _, s := range registry {
		seen[s.ID] = true
		r := statusRow{ID: s.ID, Name: s.Name, Configured: true, Lookback: s.Lookback}
		if st, ok := known[s.ID]; ok {
			r.FetchCount = st.FetchCount
			r.LastFetch = st.LastFetch
			r.WaitDays = st.WaitDays(now)
		}
		rows = append(rows, r)
	}
	for _, id := range state.SortedIDs(known) {
		if seen[id] {
			continue
		}
		st := known[id]
		rows = append(rows, statusRow{
			ID:         id,
			Name:       st.Series.Name,
			Lookback:   st.Series.Lookback,
			FetchCount: st.FetchCount,
			LastFetch:  st.LastFetch,
			WaitDays:   st.WaitDays(now),
		})
	}
	return rows
}
