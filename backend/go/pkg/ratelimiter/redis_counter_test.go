package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisWindowCounter_HonorsCeiling(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	q := NewRedisWindowCounter(client, "quota:gemini", 2, 24*time.Hour)

	ok, err := q.Available(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, q.Record(ctx))
	require.NoError(t, q.Record(ctx))

	ok, err = q.Available(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 24*time.Hour, mr.TTL("quota:gemini"))
}

func TestRedisWindowCounter_ExpiresWithWindow(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	q := NewRedisWindowCounter(client, "quota:hf", 1, time.Hour)

	require.NoError(t, q.Record(ctx))
	ok, _ := q.Available(ctx)
	assert.False(t, ok)

	mr.FastForward(time.Hour)
	ok, err := q.Available(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisWindowCounter_Allow(t *testing.T) {
	_, client := newTestRedis(t)
	q := NewRedisWindowCounter(client, "limit:api", 3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, q.Allow(), "request %d", i+1)
	}
	assert.False(t, q.Allow())
}

func TestRedisWindowCounter_FailsClosed(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	q := NewRedisWindowCounter(client, "quota:down", 10, time.Hour)
	mr.Close()

	ok, err := q.Available(ctx)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.False(t, q.Allow())
}

func TestRedisWindowCounter_RestoresMissingTTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	q := NewRedisWindowCounter(client, "quota:stuck", 5, 24*time.Hour)

	// A counter whose EXPIRE never landed.
	require.NoError(t, mr.Set("quota:stuck", "5"))
	assert.Equal(t, time.Duration(0), mr.TTL("quota:stuck"))

	require.NoError(t, q.Record(ctx))
	assert.Equal(t, 24*time.Hour, mr.TTL("quota:stuck"))

	mr.FastForward(24 * time.Hour)
	ok, err := q.Available(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisWindowCounter_AllowKeepsWindow(t *testing.T) {
	mr, client := newTestRedis(t)
	q := NewRedisWindowCounter(client, "limit:ttl", 2, time.Minute)

	assert.True(t, q.Allow())
	mr.FastForward(30 * time.Second)
	assert.True(t, q.Allow())
	assert.Equal(t, 30*time.Second, mr.TTL("limit:ttl"))
}
