package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/internal/billingadjustment"
	"github.com/amrherek/OJO-DynamicDiscount/internal/clock"
	"github.com/amrherek/OJO-DynamicDiscount/internal/config"
	"github.com/amrherek/OJO-DynamicDiscount/internal/coordinator"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount"
	"github.com/amrherek/OJO-DynamicDiscount/internal/guard"
	"github.com/amrherek/OJO-DynamicDiscount/internal/migration"
	"github.com/amrherek/OJO-DynamicDiscount/internal/observability"
	"github.com/amrherek/OJO-DynamicDiscount/internal/processing"
	"github.com/amrherek/OJO-DynamicDiscount/internal/redis"
	"github.com/amrherek/OJO-DynamicDiscount/internal/request"
	"github.com/amrherek/OJO-DynamicDiscount/internal/scheduler"
	"github.com/amrherek/OJO-DynamicDiscount/internal/seed"
	"github.com/amrherek/OJO-DynamicDiscount/internal/server"
	"github.com/amrherek/OJO-DynamicDiscount/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dyndisc",
		Short:         "Dynamic discount processor",
		Version:       readVersionFromEnv(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newServeCmd(), newProcessCmd(), newUnlockCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema and seed the process registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), 2*time.Minute, migration.Module)
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP trigger and the status reporter",
		RunE: func(cmd *cobra.Command, args []string) error {
			fx.New(append(processorOptions(), scheduler.Module, server.Module)...).Run()
			return nil
		},
	}
}

func newProcessCmd() *cobra.Command {
	var mode, input string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one discount cycle in the foreground",
		Example: "  dyndisc process --mode new --input 05\n" +
			"  dyndisc process --mode resume --input 42",
		RunE: func(cmd *cobra.Command, args []string) error {
			var coord *coordinator.Coordinator
			app := fx.New(append(processorOptions(), fx.Populate(&coord))...)
			if err := app.Err(); err != nil {
				return err
			}
			startCtx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			if err := app.Start(startCtx); err != nil {
				return fmt.Errorf("start: %w", err)
			}
			defer func() { _ = app.Stop(context.Background()) }()

			runCtx := cmd.Context()
			if timeout > 0 {
				var stop context.CancelFunc
				runCtx, stop = context.WithTimeout(runCtx, timeout)
				defer stop()
			}
			res := coord.ProcessDiscounts(runCtx, mode, input)
			fmt.Fprintf(cmd.OutOrStdout(), "action=%s mode=%s request_id=%d status=%s processed=%d skipped=%d failed=%d\n",
				res.Action, res.Mode, res.RequestID, res.Status,
				res.Summary.Processed, res.Summary.Skipped, res.Summary.Failed)
			if res.Action == coordinator.ActionError {
				return fmt.Errorf("run failed: %s", res.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "new (c) or resume (r)")
	cmd.Flags().StringVar(&input, "input", "", "bill cycle code for new runs, request id for resumes")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the run after this long (0 waits forever)")
	_ = cmd.MarkFlagRequired("mode")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Clear a process registry claim left behind by a crashed run",
		RunE: func(cmd *cobra.Command, args []string) error {
			var conn *gorm.DB
			var cfg config.Config
			app := fx.New(
				config.Module,
				observability.Module,
				db.Module,
				fx.Populate(&conn, &cfg),
			)
			if err := app.Err(); err != nil {
				return err
			}
			owner, err := seed.ReleaseStaleOwner(cmd.Context(), conn, cfg.Guard.Component)
			if err != nil {
				return err
			}
			if owner == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "component %s was not claimed\n", cfg.Guard.Component)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "released component %s held by %s\n", cfg.Guard.Component, owner)
			return nil
		},
	}
}

// processorOptions wires everything a discount run needs.
func processorOptions() []fx.Option {
	return []fx.Option{
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		redis.Module,
		migration.Module,
		guard.Module,
		request.Module,
		discount.Module,
		billingadjustment.Module,
		processing.Module,
		coordinator.Module,
	}
}

func runOnce(ctx context.Context, timeout time.Duration, opts ...fx.Option) error {
	app := fx.New(append([]fx.Option{
		config.Module,
		observability.Module,
		db.Module,
	}, opts...)...)

	startCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	return app.Stop(context.Background())
}

func registerSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
