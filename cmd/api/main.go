// Package main provides the entrypoint for the air quality API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/yevgetman/air-quality-api/internal/adapter"
	"github.com/yevgetman/air-quality-api/internal/adapter/airnow"
	"github.com/yevgetman/air-quality-api/internal/adapter/airvisual"
	"github.com/yevgetman/air-quality-api/internal/adapter/eccc"
	"github.com/yevgetman/air-quality-api/internal/adapter/openweathermap"
	"github.com/yevgetman/air-quality-api/internal/adapter/purpleair"
	"github.com/yevgetman/air-quality-api/internal/adapter/waqi"
	"github.com/yevgetman/air-quality-api/internal/api"
	"github.com/yevgetman/air-quality-api/internal/api/middleware"
	"github.com/yevgetman/air-quality-api/internal/auth"
	"github.com/yevgetman/air-quality-api/internal/config"
	"github.com/yevgetman/air-quality-api/internal/database"
	"github.com/yevgetman/air-quality-api/internal/forecast"
	"github.com/yevgetman/air-quality-api/internal/fusion"
	"github.com/yevgetman/air-quality-api/internal/location"
	"github.com/yevgetman/air-quality-api/internal/location/nominatim"
	"github.com/yevgetman/air-quality-api/internal/orchestrator"
	"github.com/yevgetman/air-quality-api/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// healthFlushInterval is how often in-memory health counters are
// persisted.
const healthFlushInterval = time.Minute

func main() {
	const serviceName = "air-quality-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting air quality API")

	// Get configuration from environment
	cfg := config.FromEnv()

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Adapter infrastructure: response logs, health tracking
	logRepo := adapter.NewPostgresLogRepository(pool)
	healthRepo := adapter.NewPostgresHealthRepository(pool)
	tracker := adapter.NewTracker(log)
	go tracker.StartFlusher(ctx, healthRepo, healthFlushInterval)

	// Provider adapters. Adapters without a configured key register
	// anyway and report unavailable; ECCC needs no key.
	adapters := []adapter.Adapter{
		airnow.New(airnow.Config{
			APIKey:        cfg.AirNowAPIKey,
			Timeout:       cfg.RequestTimeout,
			MaxRetries:    uint64(cfg.MaxRetries),
			BackoffFactor: cfg.BackoffFactor,
			Logs:          logRepo,
			Health:        tracker,
			Logger:        log,
		}),
		eccc.New(eccc.Config{
			Timeout:       cfg.RequestTimeout,
			MaxRetries:    uint64(cfg.MaxRetries),
			BackoffFactor: cfg.BackoffFactor,
			Logs:          logRepo,
			Health:        tracker,
			Logger:        log,
		}),
		purpleair.New(purpleair.Config{
			APIKey:             cfg.PurpleAirAPIKey,
			Timeout:            cfg.RequestTimeout,
			MaxRetries:         uint64(cfg.MaxRetries),
			BackoffFactor:      cfg.BackoffFactor,
			Logs:               logRepo,
			Health:             tracker,
			Logger:             log,
			ApplyEPACorrection: cfg.PurpleAirEPACorrection,
			MinConfidence:      cfg.PurpleAirMinConfidence,
		}),
		openweathermap.New(openweathermap.Config{
			APIKey:        cfg.OpenWeatherMapAPIKey,
			Timeout:       cfg.RequestTimeout,
			MaxRetries:    uint64(cfg.MaxRetries),
			BackoffFactor: cfg.BackoffFactor,
			Logs:          logRepo,
			Health:        tracker,
			Logger:        log,
		}),
		waqi.New(waqi.Config{
			APIKey:        cfg.WAQIAPIKey,
			Timeout:       cfg.RequestTimeout,
			MaxRetries:    uint64(cfg.MaxRetries),
			BackoffFactor: cfg.BackoffFactor,
			Logs:          logRepo,
			Health:        tracker,
			Logger:        log,
		}),
		airvisual.New(airvisual.Config{
			APIKey:        cfg.AirVisualAPIKey,
			Timeout:       cfg.RequestTimeout,
			MaxRetries:    uint64(cfg.MaxRetries),
			BackoffFactor: cfg.BackoffFactor,
			Logs:          logRepo,
			Health:        tracker,
			Logger:        log,
		}),
	}
	for _, a := range adapters {
		info := a.Info()
		log.Info().
			Str("source", info.Code).
			Bool("available", a.Available()).
			Msg("adapter registered")
	}

	// Location resolution
	geocoder := nominatim.NewClient(nominatim.ClientConfig{
		UserAgent: serviceName + "/" + Version,
	})
	resolver := location.NewResolver(location.ResolverConfig{
		Geocoder: geocoder,
		Cache:    location.NewPostgresCacheRepository(pool),
		Regions:  location.NewPostgresRegionRepository(pool),
		CacheTTL: cfg.LocationCacheTTL,
		Logger:   log,
	})

	// Fusion engine
	engine := fusion.NewEngine(fusion.EngineConfig{
		MaxDataAge:       cfg.MaxDataAge,
		PreferredDataAge: cfg.PreferredDataAge,
		SearchRadiusKm:   cfg.SearchRadiusKm,
		CacheTTL:         cfg.ResponseCacheTTL,
		Weights:          fusion.NewPostgresWeightRepository(pool),
		Cache:            fusion.NewPostgresCacheRepository(pool),
		Logs:             fusion.NewPostgresLogRepository(pool),
		Logger:           log,
	})

	// Forecast aggregation
	aggregator := forecast.NewAggregator(forecast.AggregatorConfig{
		CacheTTL: cfg.ResponseCacheTTL,
		Cache:    forecast.NewPostgresCacheRepository(pool),
		Logger:   log,
	})

	// Orchestrator ties it together
	orch := orchestrator.New(orchestrator.Config{
		Resolver:   resolver,
		Engine:     engine,
		Aggregator: aggregator,
		Adapters:   adapters,
		Logger:     log,
	})

	// Admin JWT service
	jwtSigningKey := cfg.AdminJWTSigningKey
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default admin JWT signing key - not secure for production")
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: jwtSigningKey,
		Issuer:     "https://api.air-quality.dev",
		Audience:   serviceName,
	})

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:      Version,
		BuildTime:    BuildTime,
		Logger:       log,
		ServiceName:  serviceName,
		Metrics:      metrics,
		JWTService:   jwtService,
		Orchestrator: orch,
		Adapters:     adapters,
		Tracker:      tracker,
		Engine:       engine,
		Ready:        pool.Ping,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	// Persist the final health counters before exit.
	tracker.Flush(shutdownCtx, healthRepo)

	log.Info().Msg("server stopped")
}
