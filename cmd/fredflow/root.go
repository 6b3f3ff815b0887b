package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

type rootOptions struct {
	configPath string
	dryRun     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "fredflow",
		Short:         "Incremental sync of FRED economic series into relational databases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cfgPath := defaultConfigPath
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", cfgPath, "Path to config.yaml (env CONFIG_PATH)")
	cmd.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "Log merges instead of writing them")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newPingCmd(opts))
	cmd.AddCommand(newCountCmd(opts))
	return cmd
}

func execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		stop()
		os.Exit(1)
	}
}
