package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "github.com/neoncad/engine/pkg/errors"
)

func TestNoopAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	var c SnapshotCache = Noop{}

	require.NoError(t, c.Set(ctx, id, Entry{Version: 3}))
	e, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.NoError(t, c.Delete(ctx, id))
}

func TestRedisUnreachableIsUnavailable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewRedis(rdb, time.Minute, nil)

	_, err := c.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeUnavailable))

	err = c.Set(context.Background(), uuid.New(), Entry{})
	assert.True(t, appErr.IsCode(err, appErr.CodeUnavailable))
}

func TestKeyIsNamespaced(t *testing.T) {
	id := uuid.MustParse("7d3c1e2a-0000-4000-8000-000000000001")
	assert.Equal(t, "neoncad:snapshot:7d3c1e2a-0000-4000-8000-000000000001", key(id))
}
