// Package main implements a service that watches the Hallym University notice
// board and sends a notification when new notices are posted.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"noticeboard-notifier/app"
	"noticeboard-notifier/config"
	"noticeboard-notifier/poll"
	"noticeboard-notifier/server"
)

func main() {
	if err := run(os.Getenv("NOTICEBOARD_CONFIG")); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snapshots, closeSnapshots, err := app.NewSnapshots(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("snapshot storage: %w", err)
	}
	defer closeSnapshots()

	sender, err := app.NewNotifier(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("notifier: %w", err)
	}

	scr := app.NewScraper(cfg, logger)
	controller := app.NewController(cfg, scr, snapshots, sender, logger)

	scheduler, err := poll.New(controller, cfg.Poll.Spec, cfg.Location(), cfg.Poll.Timeout, logger)
	if err != nil {
		return err
	}

	// The first page is loaded before serving so /notices is never empty on a healthy start.
	if err := scheduler.CheckNow(ctx); err != nil {
		logger.Warn("Initial check failed", "error", err)
	}

	if cfg.Poll.Enabled {
		scheduler.Start(ctx)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := scheduler.Stop(stopCtx); err != nil {
				logger.Warn("Poll scheduler did not stop cleanly", "error", err)
			}
		}()
	} else {
		logger.Info("Scheduled polling disabled, use /pollz to trigger checks")
	}

	srv := server.New(&server.Config{
		Board:   controller,
		Details: scr,
		Poller:  scheduler,
		Logger:  logger,
	})
	if err := srv.ListenAndServe(ctx, cfg.Port); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
