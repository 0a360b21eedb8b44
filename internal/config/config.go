package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Place index backing store: Postgres when DatabaseURL is set, otherwise
	// an in-memory index loaded from PlacesFile.
	DatabaseURL string
	PlacesFile  string

	// LocationIQ oracle configuration. The oracle is disabled when no API
	// key is set; resolution then stops after the fuzzy stage.
	LocationIQKey     string
	LocationIQBaseURL string
	LocationIQTimeout time.Duration
	OracleCountry     string
	OracleCacheSize   int
	OracleCacheTTL    time.Duration

	// Optional shared oracle cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Matching behavior.
	FuzzyThreshold      float64
	SimilarityTolerance float64
	SuggestionThreshold float64
	StrictDirections    bool
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	oracleTimeout, err := envDuration("LOCATIONIQ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	// 30 days: oracle answers for administrative place names are effectively
	// static.
	cacheTTL, err := envDuration("ORACLE_CACHE_TTL", 720*time.Hour)
	if err != nil {
		return nil, err
	}

	fuzzyThreshold, err := envFloat("FUZZY_THRESHOLD", 0.85)
	if err != nil {
		return nil, err
	}
	similarityTolerance, err := envFloat("SIMILARITY_TOLERANCE", 0.05)
	if err != nil {
		return nil, err
	}
	suggestionThreshold, err := envFloat("SUGGESTION_THRESHOLD", 0.5)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatabaseURL: os.Getenv("DATABASE_URL"),
		PlacesFile:  os.Getenv("PLACES_FILE"),

		LocationIQKey:     os.Getenv("LOCATIONIQ_KEY"),
		LocationIQBaseURL: envOrDefault("LOCATIONIQ_BASE_URL", "https://us1.locationiq.com/v1"),
		LocationIQTimeout: oracleTimeout,
		OracleCountry:     envOrDefault("ORACLE_COUNTRY", "pk"),
		OracleCacheSize:   envInt("ORACLE_CACHE_SIZE", 1000),
		OracleCacheTTL:    cacheTTL,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		FuzzyThreshold:      fuzzyThreshold,
		SimilarityTolerance: similarityTolerance,
		SuggestionThreshold: suggestionThreshold,
		StrictDirections:    os.Getenv("STRICT_DIRECTIONS") == "true",
	}

	if cfg.DatabaseURL == "" && cfg.PlacesFile == "" {
		return nil, errors.New("either DATABASE_URL or PLACES_FILE is required")
	}
	if cfg.FuzzyThreshold <= 0 || cfg.FuzzyThreshold > 1 {
		return nil, errors.New("FUZZY_THRESHOLD must be in (0, 1]")
	}
	if cfg.SuggestionThreshold > cfg.FuzzyThreshold {
		return nil, errors.New("SUGGESTION_THRESHOLD must not exceed FUZZY_THRESHOLD")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func envFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}
