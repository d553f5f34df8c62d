package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"github.com/adshield/fraud-service/internal/client"
	"github.com/adshield/fraud-service/internal/config"
	"github.com/adshield/fraud-service/internal/enrichment"
	"github.com/adshield/fraud-service/internal/handler"
	"github.com/adshield/fraud-service/internal/middleware"
	"github.com/adshield/fraud-service/internal/repository"
	"github.com/adshield/fraud-service/internal/service"
	"github.com/adshield/fraud-service/internal/telemetry"
	"github.com/adshield/fraud-service/internal/util/logger"
)

var version = "development"

func main() {
	configPath := "config/app-config.yaml"

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		panic(fmt.Errorf("failed to load config: %w", err))
	}

	logger.ReplaceGlobal(&logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rcli, err := client.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatalf("Redis init failed: %v", err)
	}
	defer rcli.Close()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("DB open error: %v", err)
	}
	defer db.Close()

	analyticsRepo := repository.NewPostgresAnalyticsRepository(db)

	counters := service.NewRedisCounterStore(rcli)
	reputation := service.NewRedisReputationStore(rcli)
	lastClicks := service.NewRedisLastClickStore(rcli)

	checker := service.NewSignalChecker(counters, reputation, lastClicks, analyticsRepo, service.Thresholds{
		MaxClicksPerUserHour:   cfg.Fraud.MaxClicksPerUserHour,
		MaxClicksPerIPHour:     cfg.Fraud.MaxClicksPerIPHour,
		MaxClicksPerDeviceHour: cfg.Fraud.MaxClicksPerDeviceHour,
		MaxClicksPerAdUserDay:  cfg.Fraud.MaxClicksPerAdUserDay,
		MinClickInterval:       cfg.Fraud.MinClickInterval,
		SuspiciousCTRPercent:   cfg.Fraud.SuspiciousCTRPercent,
	})
	detector := service.NewDetector(checker, cfg.Fraud.FraudScoreThreshold)

	alertShipper, err := telemetry.NewKafkaAlertShipper(cfg.Alerts)
	if err != nil {
		logger.Fatalf("Kafka alert shipper init failed: %v", err)
	}
	alertShipper.Start()

	tracker := service.NewTracker(analyticsRepo, reputation, counters, alertShipper)

	enricher, err := enrichment.NewGeoIPEnricher(enrichment.Config{
		CityDBPath: cfg.Enrichment.CityDBPath,
		ASNDBPath:  cfg.Enrichment.ASNDBPath,
		Pepper:     []byte(cfg.Enrichment.ServerPepper),
	})
	if err != nil {
		logger.Fatalf("GeoIP enricher init failed: %v", err)
	}
	defer enricher.Close()

	pipeline := service.NewPipeline(enricher, detector, tracker, counters, analyticsRepo)

	sweeper := service.NewRetentionSweeper(analyticsRepo, service.RetentionConfig{
		Enabled:       cfg.Retention.Enabled,
		ClickTTL:      cfg.Retention.ClickTTL,
		ActivityTTL:   cfg.Retention.ActivityTTL,
		SweepInterval: cfg.Retention.SweepInterval,
		BatchSize:     cfg.Retention.BatchSize,
	})
	sweeper.Start()

	limiter := middleware.NewRateLimiter(middleware.LimiterConfig{
		RatePerInterval: cfg.RateLimit.RatePerInterval,
		Interval:        cfg.RateLimit.Interval,
		Burst:           cfg.RateLimit.Burst,
		Redis:           rcli,
		KeyPrefix:       cfg.RateLimit.KeyPrefix,
		BucketTTL:       cfg.RateLimit.BucketTTL,
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer, chimw.Timeout(10*time.Second))
	r.Use(chimw.Logger)

	healthHandler := handler.NewHealthHandler(cfg.Env, version, rcli, db)
	r.Handle("/health", healthHandler)
	r.HandleFunc("/ready", healthHandler.ReadinessHandler)
	r.HandleFunc("/live", healthHandler.LivenessHandler)

	fraudHandler := handler.NewFraudHandler(pipeline, tracker, analyticsRepo)
	r.Route("/api", func(rt chi.Router) {
		rt.Use(limiter.Handler)
		fraudHandler.Routes(rt)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Infof("Starting fraud service on %s", addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown error: %v", err)
	}
	sweeper.Stop(shutdownCtx)
	alertShipper.Stop(shutdownCtx)
}
