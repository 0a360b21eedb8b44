// Package rediscache provides a Redis-backed cache decorator for the
// external geocoding oracle, for deployments where multiple geocoder
// replicas should share one oracle cache.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/disasterwatch/geocoder/internal/adapter/locationiq"
	"github.com/disasterwatch/geocoder/internal/domain"
	"github.com/disasterwatch/geocoder/internal/observability"
)

const keyPrefix = "geocoder:oracle:"

// Oracle wraps a domain.Oracle with a Redis cache. Redis failures degrade
// gracefully: a broken cache logs a warning and falls through to the inner
// oracle, never failing the resolution.
type Oracle struct {
	inner   domain.Oracle
	client  *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Redis cache decorator around an oracle.
func New(inner domain.Oracle, client *redis.Client, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Oracle {
	return &Oracle{inner: inner, client: client, ttl: ttl, metrics: metrics, logger: logger}
}

// NewClient builds a Redis client from address, password, and database
// number.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func (o *Oracle) Geocode(ctx context.Context, name string) ([]domain.Coordinate, error) {
	key := keyPrefix + locationiq.CacheKey(name)

	raw, err := o.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var coords []domain.Coordinate
		if jsonErr := json.Unmarshal([]byte(raw), &coords); jsonErr == nil {
			o.metrics.OracleCache.WithLabelValues("hit").Inc()
			return coords, nil
		}
		o.logger.Warn("discarding corrupt oracle cache entry", "key", key)
	case errors.Is(err, redis.Nil):
		// Plain miss.
	default:
		o.logger.Warn("oracle cache read failed", "key", key, "error", err)
	}
	o.metrics.OracleCache.WithLabelValues("miss").Inc()

	coords, err := o.inner.Geocode(ctx, name)
	if err != nil {
		return coords, err
	}

	if raw, jsonErr := json.Marshal(coords); jsonErr == nil {
		// Committed with a background context so a cancelled request still
		// persists completed oracle work.
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if setErr := o.client.Set(writeCtx, key, raw, o.ttl).Err(); setErr != nil {
			o.logger.Warn("oracle cache write failed", "key", key, "error", setErr)
		}
	}
	return coords, nil
}
