// Package main provides the entrypoint for the background worker.
package main

import (
	"context"
	"fmt"
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
	"github.com/yevgetman/air-quality-api/internal/config"
	"github.com/yevgetman/air-quality-api/internal/database"
	"github.com/yevgetman/air-quality-api/internal/forecast"
	"github.com/yevgetman/air-quality-api/internal/fusion"
	"github.com/yevgetman/air-quality-api/internal/location"
	"github.com/yevgetman/air-quality-api/internal/location/nominatim"
	"github.com/yevgetman/air-quality-api/internal/orchestrator"
	"github.com/yevgetman/air-quality-api/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// tickerInterval drives the local fallback loop when Pub/Sub is not
// configured: warm on every tick, flush health alongside.
const tickerInterval = 5 * time.Minute

func main() {
	const serviceName = "air-quality-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting air quality worker")

	cfg := config.FromEnv()

	// Worker also exposes a health endpoint for the platform's probes.
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	logRepo := adapter.NewPostgresLogRepository(pool)
	healthRepo := adapter.NewPostgresHealthRepository(pool)
	tracker := adapter.NewTracker(log)

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

	resolver := location.NewResolver(location.ResolverConfig{
		Geocoder: nominatim.NewClient(nominatim.ClientConfig{
			UserAgent: serviceName + "/" + Version,
		}),
		Cache:    location.NewPostgresCacheRepository(pool),
		Regions:  location.NewPostgresRegionRepository(pool),
		CacheTTL: cfg.LocationCacheTTL,
		Logger:   log,
	})

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

	aggregator := forecast.NewAggregator(forecast.AggregatorConfig{
		CacheTTL: cfg.ResponseCacheTTL,
		Cache:    forecast.NewPostgresCacheRepository(pool),
		Logger:   log,
	})

	orch := orchestrator.New(orchestrator.Config{
		Resolver:   resolver,
		Engine:     engine,
		Aggregator: aggregator,
		Adapters:   adapters,
		Logger:     log,
	})

	warmJob := worker.NewWarmJob(worker.WarmJobConfig{
		Logger:       log,
		Orchestrator: orch,
	})
	flushJob := worker.NewFlushJob(tracker, healthRepo, log)

	// Health check server for Cloud Run
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":%q}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Prefer Pub/Sub-driven jobs; fall back to a local ticker loop when no
	// subscription is configured.
	if cfg.PubSubProjectID != "" && cfg.PubSubSubscription != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			WarmJob:          warmJob,
			FlushJob:         flushJob,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Fatal().Err(err).Msg("pubsub receive failed")
			}
		}()
	} else {
		log.Info().
			Dur("interval", tickerInterval).
			Msg("pubsub not configured, using local ticker")

		go func() {
			ticker := time.NewTicker(tickerInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					warmJob.Run(ctx)
					if err := flushJob.Run(ctx); err != nil {
						log.Error().Err(err).Msg("health flush failed")
					}
				}
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	// Persist the final health counters before exit.
	tracker.Flush(shutdownCtx, healthRepo)

	log.Info().Msg("worker stopped")
}
