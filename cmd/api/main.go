package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/atlashealth/booking-platform/internal/api/router"
	"github.com/atlashealth/booking-platform/internal/appointments"
	appconfig "github.com/atlashealth/booking-platform/internal/config"
	"github.com/atlashealth/booking-platform/internal/observability/metrics"
	"github.com/atlashealth/booking-platform/internal/schedule"
	"github.com/atlashealth/booking-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"timezone", cfg.ClinicTimezone,
	)

	// Scheduling core
	normalizer, err := schedule.NewNormalizer(cfg.ClinicTimezone)
	if err != nil {
		logger.Error("failed to load clinic timezone", "error", err)
		os.Exit(1)
	}
	layout, err := schedule.NewLayout(normalizer, schedule.Window{
		StartHour:     cfg.CalendarStartHour,
		EndHour:       cfg.CalendarEndHour,
		PixelsPerHour: cfg.CalendarPixelsPerHour,
	})
	if err != nil {
		logger.Error("invalid calendar window", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Postgres pool. The session timezone is pinned so that the naive
	// local timestamps written by InsertDrafts resolve in the clinic
	// timezone and nothing else.
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("invalid DATABASE_URL", "error", err)
		os.Exit(1)
	}
	poolCfg.ConnConfig.RuntimeParams["timezone"] = cfg.DBSessionTimezone
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := appointments.NewRepository(pool)
	sessionTZ, err := repo.SessionTimezone(ctx)
	if err != nil {
		logger.Error("failed to read session timezone", "error", err)
		os.Exit(1)
	}
	if sessionTZ != cfg.ClinicTimezone {
		logger.Error("database session timezone does not match clinic timezone",
			"session", sessionTZ, "clinic", cfg.ClinicTimezone)
		os.Exit(1)
	}

	// Optional Redis cache for month views
	var cache *appointments.MonthCache
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, month views uncached", "error", err)
		} else {
			cache = appointments.NewMonthCache(client, cfg.MonthCacheTTL)
		}
	}

	// Metrics
	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)

	// Service and handlers
	svc := appointments.NewService(repo, normalizer, layout, cache, bookingMetrics, logger)
	handler := appointments.NewHandler(svc, logger)

	// Setup router
	r := router.New(&router.Config{
		Logger:              logger,
		AppointmentsHandler: handler,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		HealthCheck: func(req *http.Request) error {
			pingCtx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			return pool.Ping(pingCtx)
		},
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
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

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
