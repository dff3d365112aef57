package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	httpadapter "github.com/couchcryptid/road-risk-playground/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/road-risk-playground/internal/adapter/kafka"
	"github.com/couchcryptid/road-risk-playground/internal/adapter/mapbox"
	"github.com/couchcryptid/road-risk-playground/internal/adapter/riskapi"
	"github.com/couchcryptid/road-risk-playground/internal/config"
	"github.com/couchcryptid/road-risk-playground/internal/domain"
	"github.com/couchcryptid/road-risk-playground/internal/observability"
	"github.com/couchcryptid/road-risk-playground/internal/orchestrator"
	"github.com/couchcryptid/road-risk-playground/internal/session"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Risk backend (degraded when RISK_API_BASE_URL is unset).
	var assessor domain.RiskAssessor
	if cfg.RiskAPIEnabled() {
		assessor = riskapi.NewClient(cfg.RiskAPIBaseURL, cfg.RiskAPITimeout, logger)
		logger.Info("risk api enabled", "base_url", cfg.RiskAPIBaseURL, "timeout", cfg.RiskAPITimeout)
	} else {
		logger.Warn("risk api disabled, selections will not be assessed")
	}

	// Server-side geocoding (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var (
		sink      orchestrator.AssessmentSink
		publisher *kafkaadapter.Publisher
	)
	if cfg.KafkaEnabled() {
		publisher = kafkaadapter.NewPublisher(cfg, logger, metrics)
		sink = publisher
		logger.Info("assessment publisher enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAssessmentTopic)
	}

	sessions := session.NewFactory(assessor, sink, cfg.TravelLocation, logger, metrics)
	live := httpadapter.NewLiveHandler(sessions, geocoder, cfg.AllowedOrigins, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, sessions, live, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	live.Close()
	if err := sessions.Drain(shutdownCtx); err != nil {
		logger.Error("session drain error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
