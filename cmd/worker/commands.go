package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"studium/internal/config"
	"studium/internal/logger"
	"studium/internal/queue"
)

// newBroker connects to the configured broker and result backend.
var newBroker = func(cfg *config.AppConfig) (queue.Broker, error) {
	return queue.NewRedisBroker(cfg.BrokerURL(), cfg.ResultBackendURL())
}

// env is what every subcommand needs once configuration is loaded.
type env struct {
	cfg    *config.AppConfig
	log    *slog.Logger
	broker queue.Broker
	queue  queue.Config
}

func setup(logLevel string) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = strings.ToLower(logLevel)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	lg, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	b, err := newBroker(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}
	return &env{cfg: cfg, log: lg, broker: b, queue: queue.ConfigFrom(cfg.Queue)}, nil
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           "worker",
		Short:         "Studium background task worker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	cmd.AddCommand(runCmd(&logLevel), debugCmd(&logLevel), resultCmd(&logLevel))
	return cmd
}

func runCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Consume the task queue until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(*logLevel)
			if err != nil {
				return err
			}
			defer e.broker.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := e.broker.Ping(pctx); err != nil {
				return fmt.Errorf("broker unreachable: %w", err)
			}

			w := queue.NewWorker(e.broker, e.queue, e.log)
			w.Register(queue.DebugTask, queue.Debug(e.log))
			return w.Run(ctx)
		},
	}
}

func debugCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "debug",
		Short: "Enqueue the debug task and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(*logLevel)
			if err != nil {
				return err
			}
			defer e.broker.Close()

			id, err := queue.NewClient(e.broker, e.queue).Enqueue(cmd.Context(), queue.DebugTask, map[string]string{
				"source": "cli",
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func resultCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "result <task-id>",
		Short: "Print the stored result of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(*logLevel)
			if err != nil {
				return err
			}
			defer e.broker.Close()

			r, err := queue.NewClient(e.broker, e.queue).Result(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(r)
		},
	}
}
