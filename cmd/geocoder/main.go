package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	httpadapter "github.com/disasterwatch/geocoder/internal/adapter/http"
	"github.com/disasterwatch/geocoder/internal/adapter/locationiq"
	"github.com/disasterwatch/geocoder/internal/adapter/postgres"
	"github.com/disasterwatch/geocoder/internal/adapter/rediscache"
	"github.com/disasterwatch/geocoder/internal/config"
	"github.com/disasterwatch/geocoder/internal/domain"
	"github.com/disasterwatch/geocoder/internal/geocoder"
	"github.com/disasterwatch/geocoder/internal/index"
	"github.com/disasterwatch/geocoder/internal/observability"
	"github.com/disasterwatch/geocoder/internal/resolver"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	placeIndex, cleanup, err := buildIndex(cfg, logger)
	if err != nil {
		logger.Error("failed to build place index", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	oracle := buildOracle(cfg, metrics, logger)

	nameResolver := resolver.NewNameResolver(placeIndex, oracle, resolver.Config{
		FuzzyThreshold:      cfg.FuzzyThreshold,
		SimilarityTolerance: cfg.SimilarityTolerance,
		SuggestionThreshold: cfg.SuggestionThreshold,
	}, logger)
	gridFilter := resolver.NewSpatialGridFilter(placeIndex, logger)

	engine := geocoder.New(placeIndex, nameResolver, gridFilter, cfg.StrictDirections, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, engine, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// buildIndex selects the place index backend: Postgres when configured, an
// in-memory snapshot otherwise.
func buildIndex(cfg *config.Config, logger *slog.Logger) (domain.PlaceIndex, func(), error) {
	if cfg.DatabaseURL != "" {
		store, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("place index backed by postgres")
		return store, func() { store.Close() }, nil
	}

	places, err := index.LoadGeoJSON(cfg.PlacesFile)
	if err != nil {
		return nil, nil, err
	}
	mem, err := index.NewMemory(places)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("place index loaded from file", "file", cfg.PlacesFile, "places", mem.Len())
	return mem, func() {}, nil
}

// buildOracle assembles the external geocoder chain: LocationIQ client
// behind either a shared Redis cache or the in-process TTL cache. Returns
// nil when no API key is configured, which disables the fallback stage.
func buildOracle(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) domain.Oracle {
	if cfg.LocationIQKey == "" {
		logger.Info("external oracle disabled, no LOCATIONIQ_KEY")
		return nil
	}

	client := locationiq.NewClient(cfg.LocationIQKey, cfg.LocationIQBaseURL, cfg.OracleCountry,
		cfg.LocationIQTimeout, metrics, logger)

	if cfg.RedisAddr != "" {
		rdb := rediscache.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		logger.Info("oracle cache backed by redis", "addr", cfg.RedisAddr, "ttl", cfg.OracleCacheTTL)
		return rediscache.New(client, rdb, cfg.OracleCacheTTL, metrics, logger)
	}

	logger.Info("oracle cache in-process", "size", cfg.OracleCacheSize, "ttl", cfg.OracleCacheTTL)
	return locationiq.NewCachedOracle(client, cfg.OracleCacheSize, cfg.OracleCacheTTL,
		clockwork.NewRealClock(), metrics)
}
