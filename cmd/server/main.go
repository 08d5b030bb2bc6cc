package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mergestat/timediff"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/t77yq/trendloop/internal/app"
	"github.com/t77yq/trendloop/internal/config"
	"github.com/t77yq/trendloop/internal/logfile"
	"github.com/t77yq/trendloop/internal/metrics"
	"github.com/t77yq/trendloop/internal/monitor"
	"github.com/t77yq/trendloop/internal/pipeline"
	"github.com/t77yq/trendloop/internal/scheduler"
	"github.com/t77yq/trendloop/internal/storage"
)

const historyRetention = 30 * 24 * time.Hour

func main() {
	cfg, err := config.Load("./config")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logfile.Open(filepath.Join(cfg.LogDir, "master_agent.log"), logfile.DefaultConfig)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()

	// Initialize logger
	logger, err := app.NewLogger(cfg.LogFormat, zapcore.AddSync(logFile))
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	events, closeEvents, err := app.Events(cfg.NATSURL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer closeEvents()

	history, err := storage.NewSQLiteRunHistory(logger, cfg.HistoryPath())
	if err != nil {
		logger.Fatal("Failed to create run history storage", zap.Error(err))
	}
	defer history.Close()

	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr)
		go func() {
			logger.Info("Serving metrics", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	c := app.New(cfg, events, logger)

	tasks := []scheduler.Task{
		pipeline.NewContentTask(c.Publisher, c.Queue, c.Batch, events, logger),
		pipeline.NewSEOTask(c.Site, logger),
		pipeline.NewSocialTask(cfg.DocsDir, c.Twitter, c.Pinterest, c.Telegram, c.Channels, logger),
		pipeline.NewHeartbeatTask(monitor.NewCollector("/", logger), logger),
	}

	loop := scheduler.NewLoop(scheduler.NewStateStore(cfg.StatePath()), history, events, logger)
	for _, task := range tasks {
		expr := cfg.Schedules[task.Name()]
		if expr == "" {
			expr = scheduler.DefaultSchedules[task.Name()]
		}
		spec, err := scheduler.ParseSpec(task.Name(), expr)
		if err != nil {
			logger.Fatal("Invalid schedule", zap.Error(err))
		}
		spec.Advisory = task.Name() == scheduler.TaskHeartbeat
		if err := loop.Register(spec, task); err != nil {
			logger.Fatal("Failed to register task", zap.Error(err))
		}
		logger.Info("Task registered", zap.String("task", spec.Name), zap.String("schedule", spec.Expr))
	}

	if err := loop.Load(); err != nil {
		logger.Fatal("Failed to load schedule state", zap.Error(err))
	}

	// Cleanup run history older than 30 days
	go func() {
		cleanupTicker := time.NewTicker(24 * time.Hour)
		defer cleanupTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-cleanupTicker.C:
				n, err := history.DeleteBefore(ctx, time.Now().Add(-historyRetention))
				if err != nil {
					logger.Error("Failed to cleanup old run history", zap.Error(err))
					continue
				}
				logger.Info("Run history pruned", zap.Int64("deleted", n))
			}
		}
	}()

	started := time.Now()
	logger.Info("TrendLoop master scheduler starting",
		zap.String("docs", cfg.DocsDir),
		zap.String("state", cfg.StatePath()))

	if err := loop.Run(ctx); err != nil {
		logger.Fatal("Scheduler failed", zap.Error(err))
	}

	logger.Info("Server shutting down gracefully",
		zap.Int("cycles", loop.Cycles()),
		zap.String("started", timediff.TimeDiff(started)))
}
