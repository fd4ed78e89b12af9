// Command engine runs the aurora alert engine: it samples the NOAA SWPC
// OVATION grid for every reference city, fans out push notifications by the
// configured strategy, and runs the throttle-release and subscription-expiry
// jobs on their intervals.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/auroralabs/aurora-alerts/internal/adapter/fcm"
	httpadapter "github.com/auroralabs/aurora-alerts/internal/adapter/http"
	kafkaadapter "github.com/auroralabs/aurora-alerts/internal/adapter/kafka"
	"github.com/auroralabs/aurora-alerts/internal/adapter/store"
	"github.com/auroralabs/aurora-alerts/internal/adapter/swpc"
	"github.com/auroralabs/aurora-alerts/internal/config"
	"github.com/auroralabs/aurora-alerts/internal/domain"
	"github.com/auroralabs/aurora-alerts/internal/lifecycle"
	"github.com/auroralabs/aurora-alerts/internal/observability"
	"github.com/auroralabs/aurora-alerts/internal/planner"
	"github.com/auroralabs/aurora-alerts/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	metrics := observability.NewMetrics()

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.Error("failed to open subscriber store", "path", cfg.Store.Path, "error", err)
		os.Exit(1)
	}

	transport, err := fcm.NewClient(cfg.FCM.ProjectID, cfg.FCM.CredentialsFile, cfg.FCM.DryRun, cfg.FCM.Timeout, logger)
	if err != nil {
		logger.Error("failed to build fcm client", "error", err)
		os.Exit(1)
	}
	if cfg.FCM.DryRun {
		logger.Info("fcm dry run enabled, no pushes will be delivered")
	}

	swpcClient := swpc.NewClient(cfg.SWPC.BaseURL, cfg.SWPC.Timeout, cfg.SWPC.MaxRetries, logger, metrics)
	grids := swpc.NewCachedGridFetcher(swpcClient, cfg.SWPC.GridCacheTTL, nil, metrics)

	// Audit publishing is feature-flagged on brokers being configured.
	var audit domain.AuditSink = domain.NopAuditSink{}
	if cfg.Kafka.Enabled() {
		audit = kafkaadapter.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, logger)
		logger.Info("audit publishing enabled", "topic", cfg.Kafka.AuditTopic)
	} else {
		logger.Info("audit publishing disabled")
	}

	fanout := planner.New(db, transport, grids, audit, cfg.Env, cfg.Fanout.FreeTierThreshold, logger, metrics)
	manager := lifecycle.NewManager(db, audit, logger, metrics)
	strategy := planner.Strategy(cfg.Fanout.Strategy)

	sched := scheduler.New(cfg.Jobs.RunTimeout, logger, metrics)
	addJob(sched, logger, "fanout", cfg.Jobs.FanoutInterval, func(ctx context.Context) error {
		_, err := fanout.Fanout(ctx, strategy, nil)
		return err
	})
	addJob(sched, logger, "throttle_reset", cfg.Jobs.ThrottleResetInterval, func(ctx context.Context) error {
		_, err := manager.ResetThrottles(ctx)
		return err
	})
	addJob(sched, logger, "subscription_expiry", cfg.Jobs.ExpiryInterval, func(ctx context.Context) error {
		_, err := manager.ExpireSubscriptions(ctx)
		return err
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, db, fanout, manager, grids, swpcClient, strategy, cfg.Blend, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := sched.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := audit.Close(); err != nil {
		logger.Error("audit sink close error", "error", err)
	}
	if err := db.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// addJob registers a job unless its interval is zero, which disables it.
func addJob(sched *scheduler.Scheduler, logger *slog.Logger, name string, interval time.Duration, run func(context.Context) error) {
	if interval <= 0 {
		logger.Info("job disabled", "job", name)
		return
	}
	if err := sched.Add(scheduler.Job{Name: name, Interval: interval, Run: run}); err != nil {
		logger.Error("failed to register job", "job", name, "error", err)
		os.Exit(1)
	}
	logger.Info("job registered", "job", name, "interval", interval)
}
