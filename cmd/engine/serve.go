package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/fantasy-edge/internal/api"
	"github.com/yourusername/fantasy-edge/internal/database"
	"github.com/yourusername/fantasy-edge/internal/health"
	"github.com/yourusername/fantasy-edge/internal/learning"
	"github.com/yourusername/fantasy-edge/internal/metrics"
	"github.com/yourusername/fantasy-edge/internal/ml"
	"github.com/yourusername/fantasy-edge/internal/repository"
	"github.com/yourusername/fantasy-edge/internal/risk"
	"github.com/yourusername/fantasy-edge/internal/scheduler"
	"github.com/yourusername/fantasy-edge/internal/service"
	"github.com/yourusername/fantasy-edge/internal/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the prediction and risk API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func runServe(ctx context.Context) error {
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"log_level":   cfg.App.LogLevel,
		"version":     Version,
	}).Info("Prediction engine starting")

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}
	if err := tracing.Initialize(cfg.Tracing, appLog); err != nil {
		return err
	}

	db, err := database.Initialize(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	appLog.Info("Database connection established")

	repos, err := repository.NewRepositories(db)
	if err != nil {
		return err
	}

	tracker := learning.NewTracker(cfg.Learning, repos.Prediction, appLog)
	history, err := repos.Prediction.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load prediction history: %w", err)
	}
	appLog.WithField("restored", tracker.Restore(history)).Info("Accuracy buckets restored")

	registry, err := buildRegistry(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := registry.Close(); err != nil {
			appLog.WithError(err).Error("Failed to release models")
		}
	}()
	metrics.UpdateModelsLoaded(registry.Len())

	predictions := service.NewPredictionService(buildCombiner(registry), tracker, appLog)

	var (
		sink risk.AlertSink = &risk.MemoryAlertSink{}
		rdb  *redis.Client
	)
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		sink = risk.NewRedisAlertSink(rdb, cfg.Redis.AlertStream, cfg.Redis.StreamMaxLen)
	} else {
		appLog.Warn("Redis address not configured; alerts are kept in memory only")
	}
	riskManager := risk.NewManager(cfg.Risk, repos.RiskProfile, sink, appLog)
	riskManager.SetResultStore(repos.BetResult)
	settled, err := repos.BetResult.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load bet results: %w", err)
	}
	appLog.WithField("restored", riskManager.Restore(ctx, settled)).Info("Risk ledgers restored")

	trainer := ml.NewTrainingClient(cfg.Training, appLog)
	defer trainer.Close()
	coordinator := service.NewRetrainCoordinator(tracker, trainer, registry, appLog)

	sched := scheduler.NewScheduler(coordinator, appLog)
	if err := sched.ScheduleRetrainSweep(cfg.Learning.SweepSchedule); err != nil {
		return err
	}
	if err := sched.ScheduleJobPolling(cfg.Learning.JobPollSchedule); err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			appLog.WithError(err).Error("Scheduler did not stop cleanly")
		}
	}()

	checks := map[string]health.Pinger{"postgres": health.PingFunc(db.HealthCheck)}
	if rdb != nil {
		checks["redis"] = health.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	healthServer := health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Commit:      GitCommit,
		Port:        strconv.Itoa(cfg.API.HealthPort),
		Logger:      appLog,
		Checks:      checks,
	})
	if err := healthServer.Start(ctx); err != nil {
		return err
	}

	servers := []*http.Server{{
		Addr:        fmt.Sprintf(":%d", cfg.API.Port),
		Handler:     tracing.Middleware(cfg.App.Name, api.NewHandler(riskManager, predictions, tracker, appLog).Router(cfg.API.AllowedOrigins)),
		ReadTimeout: time.Duration(cfg.API.ReadTimeoutSeconds) * time.Second,
	}}
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		servers = append(servers, &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			appLog.WithField("addr", srv.Addr).Info("HTTP listener starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("listener %s: %w", srv.Addr, err)
			}
		}()
	}

	healthServer.SetReady(true)
	appLog.WithFields(logrus.Fields{
		"models":       registry.Len(),
		"api_port":     cfg.API.Port,
		"next_retrain": sched.GetNextRun(),
	}).Info("Prediction engine running")

	var runErr error
	select {
	case <-ctx.Done():
		appLog.Info("Shutdown signal received")
	case runErr = <-errCh:
		appLog.WithError(runErr).Error("Listener failed")
	}

	healthServer.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.WithError(err).WithField("addr", srv.Addr).Error("Listener did not shut down cleanly")
		}
	}

	appLog.Info("Prediction engine shut down")
	return runErr
}
