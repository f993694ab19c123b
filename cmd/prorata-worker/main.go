package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"prorata/internal/cli"
	"prorata/internal/core"
	applog "prorata/internal/log"
	"prorata/internal/report"
	"prorata/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(slog.LevelInfo, applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)
	logger.SetLevel(cfg.Level())

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	logger.Info("Starting prorata-worker", applog.FieldOperation, applog.OpStartup)

	res := cli.InitBackend(context.Background(), logger, cfg)
	if res.AMQP == nil {
		logger.Error("AMQP broker unreachable", "url", cfg.AMQPURL)
		_ = res.Cleanup()
		os.Exit(1)
	}

	if cfg.ReportsDir != "" {
		if err := os.MkdirAll(cfg.ReportsDir, 0o755); err != nil {
			logger.Error("Cannot create reports directory", "path", cfg.ReportsDir, applog.FieldError, err)
			_ = res.Cleanup()
			os.Exit(1)
		}
	}

	processor := services.NewRecomputeProcessor(res.Stats, monthHandler(logger, cfg.ReportsDir), services.DefaultRecomputeProcessorConfig())

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := processor.Stop(stopCtx); err != nil {
			logger.Warn("Recompute processor did not stop cleanly", applog.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Warn("Cleanup failed", applog.FieldError, err)
		}
	})

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start recompute processor", applog.FieldError, err)
		os.Exit(1)
	}

	go func() {
		if err := res.AMQP.ConsumeExpenseEvents(ctx, processor.HandleEvent); err != nil && ctx.Err() == nil {
			logger.Error("Consumer stopped", applog.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("prorata-worker stopped", applog.FieldOperation, applog.OpShutdown)
}

// monthHandler logs the refreshed totals and, with a reports directory,
// writes an XLSX snapshot per month.
func monthHandler(logger *applog.Logger, dir string) services.MonthHandler {
	return func(ctx context.Context, o core.MonthOverview) error {
		logger.ForMonth(o.Month.Year, int(o.Month.Month)).InfoContext(ctx, "Month recomputed",
			"total_cents", o.Total.Cents,
			"repeaters", len(o.Repeaters))

		if dir == "" {
			return nil
		}
		data, err := report.MonthXLSX(o)
		if err != nil {
			return fmt.Errorf("build %s snapshot: %w", o.Month, err)
		}
		path := filepath.Join(dir, o.Month.String()+".xlsx")
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", tmp, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return err
		}
		logger.WithComponent(applog.ComponentReport).DebugContext(ctx, "Month snapshot written",
			applog.FieldOperation, applog.OpExport,
			"path", path)
		return nil
	}
}
