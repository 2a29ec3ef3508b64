package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/milifusa/mumpabackend-sub000/internal"
	"github.com/milifusa/mumpabackend-sub000/internal/prediction"
)

// PredictionCache keeps recently computed predictions in Redis for a
// short TTL so bursts of dashboard refreshes do not retrain the model.
// Cache failures are logged and treated as misses.
type PredictionCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger internal.Logger
}

func NewPredictionCache(addr string, ttl time.Duration, logger internal.Logger) *PredictionCache {
	return &PredictionCache{
		rdb:    redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
		logger: logger,
	}
}

func key(childID string) string {
	return "prediction:" + childID
}

func (c *PredictionCache) Get(ctx context.Context, childID string) (*prediction.SleepPrediction, bool) {
	raw, err := c.rdb.Get(ctx, key(childID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warnf("cache: get failed for child %s: %v", childID, err)
		}
		return nil, false
	}
	var pred prediction.SleepPrediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		c.logger.Warnf("cache: corrupt entry for child %s: %v", childID, err)
		return nil, false
	}
	return &pred, true
}

func (c *PredictionCache) Set(ctx context.Context, childID string, pred *prediction.SleepPrediction) {
	raw, err := json.Marshal(pred)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key(childID), raw, c.ttl).Err(); err != nil {
		c.logger.Warnf("cache: set failed for child %s: %v", childID, err)
	}
}

func (c *PredictionCache) Invalidate(ctx context.Context, childID string) {
	if err := c.rdb.Del(ctx, key(childID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warnf("cache: invalidate failed for child %s: %v", childID, err)
	}
}

func (c *PredictionCache) Close() error {
	return c.rdb.Close()
}
