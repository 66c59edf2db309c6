// Package cache keeps the current snapshot of each project in redis so
// editor loads skip the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/neoncad/engine/internal/canvas"
	appErr "github.com/neoncad/engine/pkg/errors"
	"github.com/neoncad/engine/pkg/logger"
)

// SnapshotCache stores the current snapshot of a project. Get returns
// nil, nil on a miss.
type SnapshotCache interface {
	Get(ctx context.Context, projectID uuid.UUID) (*Entry, error)
	Set(ctx context.Context, projectID uuid.UUID, e Entry) error
	Delete(ctx context.Context, projectID uuid.UUID) error
}

// Entry is a cached snapshot with the version it came from.
type Entry struct {
	Version  int             `json:"version"`
	Checksum string          `json:"checksum"`
	Snapshot canvas.Snapshot `json:"snapshot"`
}

const keyPrefix = "neoncad:snapshot:"

func key(projectID uuid.UUID) string { return keyPrefix + projectID.String() }

type redisCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

// NewRedis returns a cache backed by rdb. A zero ttl keeps entries until
// they are replaced or deleted.
func NewRedis(rdb *redis.Client, ttl time.Duration, log *zap.Logger) SnapshotCache {
	return &redisCache{rdb: rdb, ttl: ttl, log: logger.OrNop(log).Named("cache")}
}

var _ SnapshotCache = (*redisCache)(nil)

func (c *redisCache) Get(ctx context.Context, projectID uuid.UUID) (*Entry, error) {
	b, err := c.rdb.Get(ctx, key(projectID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "cache get failed")
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		// A corrupt entry is a miss; drop it so the next save rewrites it.
		c.log.Warn("discarding undecodable cache entry", zap.String("project_id", projectID.String()), zap.Error(err))
		_ = c.rdb.Del(ctx, key(projectID)).Err()
		return nil, nil
	}
	return &e, nil
}

func (c *redisCache) Set(ctx context.Context, projectID uuid.UUID, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "encode cache entry")
	}
	if err := c.rdb.Set(ctx, key(projectID), b, c.ttl).Err(); err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "cache set failed")
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, projectID uuid.UUID) error {
	if err := c.rdb.Del(ctx, key(projectID)).Err(); err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "cache delete failed")
	}
	return nil
}

// Noop is used when redis is not configured. Every Get misses.
type Noop struct{}

var _ SnapshotCache = Noop{}

func (Noop) Get(context.Context, uuid.UUID) (*Entry, error)  { return nil, nil }
func (Noop) Set(context.Context, uuid.UUID, Entry) error     { return nil }
func (Noop) Delete(context.Context, uuid.UUID) error         { return nil }
