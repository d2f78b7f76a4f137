package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/api/router"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/appointments"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/availability"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/booking"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/capacity"
	appconfig "github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/config"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/observability/metrics"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/productivity"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/schedule"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/scheduling"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/staff"
	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting scheduling engine API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Repositories: Postgres when DATABASE_URL is set, otherwise the
	// in-memory stores (local development and tests).
	var (
		scheduleRepo schedule.Repository
		apptRepo     appointments.Repository
		typeRepo     appointments.TypeRepository
		roster       staff.Repository
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create postgres pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("failed to ping postgres", "error", err)
			os.Exit(1)
		}
		scheduleRepo = schedule.NewPostgresRepository(pool)
		apptRepo = appointments.NewPostgresRepository(pool)
		typeRepo = appointments.NewPostgresTypeRepository(pool)
		roster = staff.NewPostgresRepository(pool)
		logger.Info("using postgres repositories")
	} else {
		scheduleRepo = schedule.NewInMemoryRepository()
		apptRepo = appointments.NewInMemoryRepository()
		typeRepo = appointments.NewInMemoryTypeRepository()
		roster = staff.NewInMemoryRepository()
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
	}

	// Capacity snapshot cache is optional; without Redis every read
	// recomputes from the stores.
	var snapshotCache *capacity.SnapshotCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, capacity cache disabled", "error", err)
		} else {
			tracer := otel.Tracer("capacity-cache")
			snapshotCache = capacity.NewSnapshotCache(redisClient, cfg.CapacityCacheTTL, tracer)
			logger.Info("capacity snapshot cache enabled", "ttl", cfg.CapacityCacheTTL)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	schedMetrics := metrics.NewSchedulingMetrics(registry)

	engine := availability.NewEngine(scheduleRepo, apptRepo, roster, availability.Policy{
		PendingTimeOffBlocks: cfg.TimeOffPendingBlocks,
	})
	capman := capacity.NewManager(engine, apptRepo, typeRepo, roster, snapshotCache, cfg.AvgRevenuePerMinuteCents, schedMetrics, logger)
	optimizer := scheduling.NewOptimizer(engine, capman, roster, typeRepo)
	tracker := productivity.NewTracker(apptRepo, typeRepo, roster, cfg.RevenueFallbackExpected)
	bookingSvc := booking.NewService(apptRepo, typeRepo, roster, scheduleRepo, engine, optimizer, capman, schedMetrics, logger)

	routerCfg := &router.Config{
		Logger:              logger,
		BookingHandler:      booking.NewHandler(bookingSvc, logger),
		ScheduleHandler:     schedule.NewHandler(scheduleRepo, capman, logger),
		CapacityHandler:     capacity.NewHandler(capman, logger),
		ProductivityHandler: productivity.NewHandler(tracker, logger),
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminAuthSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
