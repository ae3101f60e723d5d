package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/features"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

// DefaultPredictionTTL bounds how long a cached prediction is served.
const DefaultPredictionTTL = 10 * time.Minute

// RedisCache stores prediction responses keyed by model version and feature vector.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a prediction cache. A non-positive ttl uses DefaultPredictionTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultPredictionTTL
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

// Key returns the cache key for a vector scored by the given model version.
// Entries of an older version are never read again once the version changes.
func Key(version string, fv features.FeatureVector) string {
	h := sha256.New()
	for _, v := range fv.Values() {
		fmt.Fprintf(h, "%x;", v)
	}
	return fmt.Sprintf("prediction:%s:%s", version, hex.EncodeToString(h.Sum(nil)))
}

// Get returns the cached response, or ok=false on a miss.
func (c *RedisCache) Get(ctx context.Context, version string, fv features.FeatureVector) (*models.PredictionResponse, bool, error) {
	data, err := c.client.Get(ctx, Key(version, fv)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading prediction cache: %w", err)
	}

	var resp models.PredictionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false, fmt.Errorf("unmarshaling cached prediction: %w", err)
	}
	return &resp, true, nil
}

// Set stores a response.
func (c *RedisCache) Set(ctx context.Context, version string, fv features.FeatureVector, resp *models.PredictionResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshaling prediction: %w", err)
	}
	return c.client.Set(ctx, Key(version, fv), data, c.ttl).Err()
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
