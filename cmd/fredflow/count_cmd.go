package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCountCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count [series...]",
		Short: "Print stored row counts per series and destination",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer a.close()
			a.connect(cmd.Context())

			ids := args
			if len(ids) == 0 {
				for _, s := range a.registry.Series {
					ids = append(ids, s.ID)
				}
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SERIES\tDESTINATION\tROWS")
			for _, id := range ids {
				for _, d := range a.destinations {
					n, err := d.Count(cmd.Context(), id)
					if err != nil {
						a.logger.Error("count", zap.String("series", id), zap.String("destination", d.Name()), zap.Error(err))
						fmt.Fprintf(w, "%s\t%s\terror\n", id, d.Name())
						continue
					}
					fmt.Fprintf(w, "%s\t%s\t%d\n", id, d.Name(), n)
				}
			}
			return w.Flush()
		},
	}
}
