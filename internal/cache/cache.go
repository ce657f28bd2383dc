// Package cache holds short-lived read caches for dimensions, products and
// feedback list pages. Values are stored as JSON in Redis or in process.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/david/feedback-triage/internal/logger"
	"github.com/david/feedback-triage/internal/metrics"
)

const (
	DimensionsTTL   = 10 * time.Minute
	ProductsTTL     = 10 * time.Minute
	FeedbackPageTTL = 30 * time.Second

	KeyDimensions  = "dimensions:all"
	KeyProducts    = "products:all"
	FeedbackPrefix = "feedback:"
)

type Cache interface {
	// Get decodes the cached value into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// FeedbackKey derives a stable page key from any JSON-encodable request.
func FeedbackKey(request any) string {
	raw, err := json.Marshal(request)
	if err != nil {
		return ""
	}
	sum := sha1.Sum(raw)
	return FeedbackPrefix + hex.EncodeToString(sum[:])
}

// Load returns the cached value for key or calls load and stores its result.
// Cache errors are logged and treated as misses.
func Load[T any](ctx context.Context, c Cache, log *logger.Logger, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if c != nil && key != "" {
		ok, err := c.Get(ctx, key, &cached)
		if err != nil {
			log.Warn("cache get failed", "key", key, "error", err)
		} else if ok {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if c != nil && key != "" {
		if err := c.Set(ctx, key, value, ttl); err != nil {
			log.Warn("cache set failed", "key", key, "error", err)
		}
	}
	return value, nil
}

// Invalidate drops keys and prefixes, logging failures.
func Invalidate(ctx context.Context, c Cache, log *logger.Logger, keys []string, prefixes ...string) {
	if c == nil {
		return
	}
	if len(keys) > 0 {
		if err := c.Delete(ctx, keys...); err != nil {
			log.Warn("cache delete failed", "keys", keys, "error", err)
		}
	}
	for _, p := range prefixes {
		if err := c.DeletePrefix(ctx, p); err != nil {
			log.Warn("cache prefix delete failed", "prefix", p, "error", err)
		}
	}
}
