package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/tally/internal/api"
	"github.com/zulandar/tally/internal/notify"
	"github.com/zulandar/tally/internal/provision"
	"github.com/zulandar/tally/internal/scheduler"
	"github.com/zulandar/tally/internal/taskgen"
)

func newServeCmd() *cobra.Command {
	var (
		configPath   string
		port         int
		includeSelf  bool
		requireScope bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serves the cycle, survey, result-entry and scoring API. When
schedule.regenerate is set, open cycles are regenerated on that schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, taskgen.Options{
				IncludeSelf:        includeSelf,
				RequireBranchScope: requireScope,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides api.port)")
	cmd.Flags().BoolVar(&includeSelf, "self", false, "generate teacher self-assessment tasks")
	cmd.Flags().BoolVar(&requireScope, "require-scope", false, "refuse cycles with an empty branch scope")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, gen taskgen.Options) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.API.Port
	}
	out := cmd.OutOrStdout()

	notifier, err := notify.FromConfig(cfg.Notify)
	if err != nil {
		return err
	}
	opts := api.StartOpts{
		DB:       gormDB,
		Port:     port,
		Out:      out,
		Generate: gen,
		Notifier: notifier,
	}
	if cfg.Provision.URL != "" {
		client, err := provision.New(cfg.Provision)
		if err != nil {
			return err
		}
		opts.Provisioner = client
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if expr := cfg.Schedule.Regenerate; expr != "" {
		sched := scheduler.New(gormDB, notifier, gen)
		if err := sched.Start(expr); err != nil {
			return err
		}
		defer sched.Stop()
		fmt.Fprintf(out, "Regenerating open cycles on %q (next run in %s)\n", expr, scheduler.NextRun(expr))
	}

	return api.Start(ctx, opts)
}
