// Package config reads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the tunable settings read once at startup.
type Config struct {
	// Provider credentials. An absent key disables the provider's adapter
	// rather than failing startup.
	AirNowAPIKey         string
	PurpleAirAPIKey      string
	OpenWeatherMapAPIKey string
	WAQIAPIKey           string
	AirVisualAPIKey      string

	// Upstream HTTP behavior.
	MaxRetries     int
	BackoffFactor  float64
	RequestTimeout time.Duration

	// Fusion tuning.
	MaxDataAge       time.Duration
	PreferredDataAge time.Duration
	SearchRadiusKm   float64
	ResponseCacheTTL time.Duration
	LocationCacheTTL time.Duration

	// PurpleAir specifics.
	PurpleAirEPACorrection bool
	PurpleAirMinConfidence float64

	// Admin auth.
	AdminJWTSigningKey string

	// Pub/Sub for the background worker; empty disables the subscription.
	PubSubProjectID    string
	PubSubSubscription string
}

// FromEnv creates a Config from environment variables, applying defaults.
func FromEnv() Config {
	maxRetries, _ := strconv.Atoi(getEnvOrDefault("MAX_RETRIES", "3"))
	backoff, _ := strconv.ParseFloat(getEnvOrDefault("RETRY_BACKOFF_FACTOR", "2"), 64)
	requestTimeout := secondsOrDefault("REQUEST_TIMEOUT", 10*time.Second)

	maxAgeHours, _ := strconv.Atoi(getEnvOrDefault("MAX_DATA_AGE_HOURS", "3"))
	preferredMinutes, _ := strconv.Atoi(getEnvOrDefault("PREFERRED_DATA_AGE_MINUTES", "30"))
	radius, _ := strconv.ParseFloat(getEnvOrDefault("DEFAULT_SEARCH_RADIUS_KM", "25"), 64)
	responseTTL := secondsOrDefault("RESPONSE_CACHE_TTL", 600*time.Second)
	locationTTL := secondsOrDefault("LOCATION_CACHE_TTL", 86400*time.Second)

	epaCorrection, _ := strconv.ParseBool(getEnvOrDefault("PURPLEAIR_EPA_CORRECTION", "true"))
	minConfidence, _ := strconv.ParseFloat(getEnvOrDefault("PURPLEAIR_MIN_CONFIDENCE", "80"), 64)

	return Config{
		AirNowAPIKey:         os.Getenv("AIRNOW_API_KEY"),
		PurpleAirAPIKey:      os.Getenv("PURPLEAIR_API_KEY"),
		OpenWeatherMapAPIKey: os.Getenv("OPENWEATHERMAP_API_KEY"),
		WAQIAPIKey:           os.Getenv("WAQI_API_KEY"),
		AirVisualAPIKey:      os.Getenv("AIRVISUAL_API_KEY"),

		MaxRetries:     maxRetries,
		BackoffFactor:  backoff,
		RequestTimeout: requestTimeout,

		MaxDataAge:       time.Duration(maxAgeHours) * time.Hour,
		PreferredDataAge: time.Duration(preferredMinutes) * time.Minute,
		SearchRadiusKm:   radius,
		ResponseCacheTTL: responseTTL,
		LocationCacheTTL: locationTTL,

		PurpleAirEPACorrection: epaCorrection,
		PurpleAirMinConfidence: minConfidence,

		AdminJWTSigningKey: os.Getenv("ADMIN_JWT_SIGNING_KEY"),

		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
	}
}

// secondsOrDefault reads a duration expressed as whole seconds.
func secondsOrDefault(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
