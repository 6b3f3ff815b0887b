package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that every destination answers its liveness query",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer a.close()
			a.connect(cmd.Context())

			down := len(a.registry.Destinations) - len(a.destinations)
			for _, d := range a.destinations {
				ok, err := d.Ping(cmd.Context())
				if err != nil || !ok {
					down++
					a.logger.Error("destination down", zap.String("destination", d.Name()), zap.Error(err))
					fmt.Printf("%-24s %s  DOWN\n", d.Name(), d.Descriptor().Kind)
					continue
				}
				fmt.Printf("%-24s %s  OK\n", d.Name(), d.Descriptor().Kind)
			}
			if down > 0 {
				return fmt.Errorf("%d destination(s) unreachable", down)
			}
			return nil
		},
	}
}
