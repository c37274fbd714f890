package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signage-sync/internal/platform/logger"
)

type catalogRow struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func setupMiniRedis[V any](t *testing.T) (*miniredis.Miniredis, *Redis[V]) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedis[V](client, "signage:", logger.Discard())
}

func TestRedis_SetGet_roundtrip(t *testing.T) {
	mr, c := setupMiniRedis[[]catalogRow](t)

	rows := []catalogRow{{ID: 1, Title: "Welcome"}, {ID: 2, Title: "Open house"}}
	c.Set("approved_media", rows, 5)

	got, ok := c.Get("approved_media")
	require.True(t, ok)
	assert.Equal(t, rows, got)
	assert.True(t, mr.Exists("signage:approved_media"), "keys are namespaced with the prefix")
}

func TestRedis_expiry(t *testing.T) {
	mr, c := setupMiniRedis[string](t)

	c.Set("k", "v", 1)
	assert.True(t, c.Has("k"))

	mr.FastForward(61 * time.Second)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.False(t, c.Has("k"))
}

func TestRedis_ttl_zero_persists(t *testing.T) {
	mr, c := setupMiniRedis[string](t)

	c.Set("k", "v", 0)
	mr.FastForward(48 * time.Hour)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, time.Duration(0), mr.TTL("signage:k"))
}

func TestRedis_Del_and_Clear(t *testing.T) {
	mr, c := setupMiniRedis[string](t)
	require.NoError(t, mr.Set("other:k", "untouched"))

	c.Set("a", "1", 5)
	c.Set("b", "2", 5)

	c.Del("a")
	c.Del("a")
	assert.False(t, c.Has("a"))

	c.Clear()
	assert.False(t, c.Has("b"))
	assert.True(t, mr.Exists("other:k"), "Clear only removes prefixed keys")
}

func TestRedis_undecodable_value_reads_absent(t *testing.T) {
	mr, c := setupMiniRedis[[]catalogRow](t)
	require.NoError(t, mr.Set("signage:approved_media", "{not json"))

	_, ok := c.Get("approved_media")
	assert.False(t, ok)
}

func TestRedis_unreachable_reads_absent(t *testing.T) {
	mr, c := setupMiniRedis[string](t)
	c.Set("k", "v", 5)
	mr.Close()

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.False(t, c.Has("k"))
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := DialRedis(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	c := NewRedis[string](client, "", logger.Discard())
	assert.NoError(t, c.Ping(context.Background()))
}

func TestRedis_breaker_opens_and_recovers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedisWithBreaker[string](client, "signage:", logger.Discard(),
		BreakerConfig{FailureThreshold: 2, Timeout: 50 * time.Millisecond})

	c.Set("k", "v", 5)
	assert.Equal(t, "closed", c.BreakerState())

	mr.Close()
	_, ok := c.Get("k")
	assert.False(t, ok)
	c.Set("k", "w", 5)
	assert.Equal(t, "open", c.BreakerState())

	_, ok = c.Get("k")
	assert.False(t, ok, "open breaker reports a miss")

	require.NoError(t, mr.Restart())
	require.Eventually(t, func() bool {
		v, ok := c.Get("k")
		return ok && v == "v"
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "closed", c.BreakerState())
}

func TestRedis_misses_do_not_trip_breaker(t *testing.T) {
	_, c := setupMiniRedis[string](t)
	for range 10 {
		_, ok := c.Get("absent")
		assert.False(t, ok)
	}
	assert.Equal(t, "closed", c.BreakerState())
}
