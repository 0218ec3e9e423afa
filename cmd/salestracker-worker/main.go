package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"salestracker/internal/amqp"
	"salestracker/internal/backend"
	"salestracker/internal/cache"
	"salestracker/internal/cli"
	"salestracker/internal/connectivity"
	"salestracker/internal/events"
	"salestracker/internal/lock"
	applog "salestracker/internal/log"
	"salestracker/internal/services"
	"salestracker/internal/worker"
)

// The worker drains the shared pending queue. It flushes on AMQP flush
// requests, on reconnect and on the sync interval.
func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentWorker)

	logger.Info("Starting salestracker-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	queue := cli.InitQueue(cfg.SQLiteDBPath)
	defer queue.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid record store configuration", applog.FieldError, err)
		os.Exit(1)
	}
	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	result, err := backend.NewFactory(logger.Logger).CreateBackend(startCtx, backendCfg)
	startCancel()
	if err != nil {
		logger.Error("Failed to create record store", applog.FieldError, err, "backend", cfg.RecordBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() { _ = result.Cleanup() }()
	}

	var (
		locker    services.FlushLocker
		snapshots *cache.RedisSnapshot
	)
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("Redis unavailable, flushing without cross-process lock", applog.FieldError, err)
		} else {
			defer rdb.Close()
			locker = lock.NewRedisLocker(rdb, "", 0)
			snapshots = cache.NewRedisSnapshot(rdb, cfg.SnapshotCacheTTL)
		}
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	monitor := connectivity.NewMonitor(connectivity.Online)
	bus := events.NewBus()
	engine := services.NewSyncEngine(queue, result.Store, monitor, bus, locker, services.SyncEngineConfig{
		Interval: cfg.SyncInterval,
	})
	flushWorker := worker.NewFlushWorker(engine, queue)

	ctx, done := cli.GracefulShutdown(30*time.Second, func(shutdownCtx context.Context) {
		logger.Info("Shutting down worker...")
		if err := engine.Stop(shutdownCtx); err != nil {
			logger.Warn("Sync engine stop failed", applog.FieldError, err)
		}
		if err := monitor.Stop(shutdownCtx); err != nil {
			logger.Warn("Connectivity monitor stop failed", applog.FieldError, err)
		}
	})

	if err := monitor.Start(ctx, result.Store, cfg.ProbeInterval, 5*time.Second); err != nil {
		logger.Error("Failed to start connectivity monitor", applog.FieldError, err)
		os.Exit(1)
	}
	if err := engine.Start(ctx); err != nil {
		logger.Error("Failed to start sync engine", applog.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Performing startup flush check...")
	if err := flushWorker.StartupCheck(ctx); err != nil {
		logger.Error("Failed startup flush check", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if snapshots != nil {
		invalidator := worker.NewSnapshotInvalidator(bus, snapshots)
		g.Go(func() error { return invalidator.Run(gctx) })
	}
	g.Go(func() error {
		err := amqpClient.RunFlushConsumer(gctx, flushWorker.HandleFlushRequest)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Flush request consumption failed", applog.FieldError, err)
		os.Exit(1)
	}
	<-done
	logger.Info("Worker shutdown complete")
}
