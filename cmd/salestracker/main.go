package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"salestracker/internal/amqp"
	"salestracker/internal/backend"
	"salestracker/internal/cache"
	"salestracker/internal/cli"
	"salestracker/internal/connectivity"
	"salestracker/internal/core"
	"salestracker/internal/events"
	apphttp "salestracker/internal/http"
	"salestracker/internal/lock"
	applog "salestracker/internal/log"
	"salestracker/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentApp)

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
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Record store cleanup failed", applog.FieldError, err)
			}
		}()
	}
	store := result.Store

	initial := connectivity.Online
	if cfg.StartOffline {
		initial = connectivity.Offline
	}
	monitor := connectivity.NewMonitor(initial)
	bus := events.NewBus()

	// Redis is optional: without it the snapshot lives in process and flushes
	// are only guarded in process.
	var (
		snapshots cache.SnapshotCache
		locker    services.FlushLocker
		rdb       *redis.Client
	)
	if cfg.RedisAddr != "" {
		rdb, err = cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("Redis unavailable, using in-process snapshot cache", applog.FieldError, err, "addr", cfg.RedisAddr)
		} else {
			snapshots = cache.NewRedisSnapshot(rdb, cfg.SnapshotCacheTTL)
			locker = lock.NewRedisLocker(rdb, "", 0)
			logger.Info("Redis connected", "addr", cfg.RedisAddr)
		}
	}
	var snapshotMem *cache.MemorySnapshot
	if snapshots == nil {
		snapshotMem = cache.NewMemorySnapshot(cfg.SnapshotCacheTTL)
		snapshots = snapshotMem
	}

	// AMQP is optional. The publisher stays a nil interface when it is not
	// configured.
	var publisher services.SalePublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, flush requests stay local", applog.FieldError, err)
		} else {
			publisher = client
			logger.Info("AMQP connected", "exchange", cfg.AMQPExchange)
		}
	}

	window := core.Window{Days: cfg.DailyWindowDays, Months: cfg.MonthWindowMonths, Weeks: cfg.WeekWindowWeeks}
	dashboard := services.NewDashboardService(store, snapshots, bus, services.DashboardConfig{
		PollInterval: cfg.DashboardPollInterval,
		Window:       window,
	})
	sales := services.NewSalesService(store, queue, monitor, bus, publisher)
	engine := services.NewSyncEngine(queue, store, monitor, bus, locker, services.SyncEngineConfig{
		Interval: cfg.SyncInterval,
	})

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Sales:     sales,
		Dashboard: dashboard,
		Sync:      engine,
		Queue:     queue,
		Monitor:   monitor,
		Store:     store,
		Cache:     snapshots,
		Backend:   cfg.RecordBackend,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := engine.Stop(shutdownCtx); err != nil {
			logger.Warn("Sync engine stop failed", applog.FieldError, err)
		}
		if err := dashboard.Stop(shutdownCtx); err != nil {
			logger.Warn("Dashboard stop failed", applog.FieldError, err)
		}
		if err := monitor.Stop(shutdownCtx); err != nil {
			logger.Warn("Connectivity monitor stop failed", applog.FieldError, err)
		}
		if err := sales.Close(); err != nil {
			logger.Warn("Publisher close failed", applog.FieldError, err)
		}
		if rdb != nil {
			_ = rdb.Close()
		}
	})

	if snapshotMem != nil {
		m := cache.NewManager()
		m.Register(snapshotMem.Cleaner())
		m.StartCleanup(5 * time.Minute)
		defer m.Stop()
	}

	if err := monitor.Start(ctx, store, cfg.ProbeInterval, 5*time.Second); err != nil {
		logger.Error("Failed to start connectivity monitor", applog.FieldError, err)
		os.Exit(1)
	}
	if err := engine.Start(ctx); err != nil {
		logger.Error("Failed to start sync engine", applog.FieldError, err)
		os.Exit(1)
	}
	if err := dashboard.Start(ctx); err != nil {
		logger.Error("Failed to start dashboard", applog.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting sales tracker server",
			"port", cfg.Port,
			"backend", cfg.RecordBackend,
			"state", monitor.State())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// Drain anything a previous run left queued.
		if _, err := engine.Flush(gctx); err != nil {
			logger.Warn("Startup flush failed, entries stay queued", applog.FieldError, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	slog.Info("Server stopped gracefully")
}
