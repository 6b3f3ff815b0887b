package main

import (
	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sync every configured series once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer a.close()
			a.connect(cmd.Context())

			report, err := a.runner().Run(cmd.Context(), a.registry.Series)
			a.notify(cmd.Context(), report)
			if err != nil {
				return err
			}
			if quiet {
				return nil
			}
			return writeJSON(report)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the run report")
	return cmd
}
