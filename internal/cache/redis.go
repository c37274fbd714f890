package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
)

const redisOpTimeout = 2 * time.Second

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // host:port
	Password string
	DB       int
}

// Redis is a Cache backed by Redis. Values are stored as JSON; expiry is
// delegated to Redis key TTLs, so several service instances share one view.
//
// Every command runs through a circuit breaker. While it is open, reads
// report a miss and writes are dropped without touching the network, so an
// unreachable Redis degrades to store reads instead of a timeout per poll.
type Redis[V any] struct {
	client *redis.Client
	prefix string
	log    *slog.Logger
	cb     *gobreaker.CircuitBreaker[any]
}

// BreakerConfig tunes the circuit breaker guarding Redis commands.
type BreakerConfig struct {
	FailureThreshold uint32        // consecutive failures before opening
	Timeout          time.Duration // open duration before a half-open probe
}

// DefaultBreakerConfig returns the breaker settings used by NewRedis.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 3, Timeout: 30 * time.Second}
}

// DialRedis connects to Redis and verifies the connection with PING.
func DialRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(errors.New("redis connection failed"), err)
	}
	return client, nil
}

// NewRedis wraps an existing client. Keys are namespaced with prefix.
func NewRedis[V any](client *redis.Client, prefix string, log *slog.Logger) *Redis[V] {
	return NewRedisWithBreaker[V](client, prefix, log, DefaultBreakerConfig())
}

// NewRedisWithBreaker is NewRedis with explicit breaker settings.
func NewRedisWithBreaker[V any](client *redis.Client, prefix string, log *slog.Logger, bc BreakerConfig) *Redis[V] {
	if bc.FailureThreshold == 0 {
		bc.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if bc.Timeout <= 0 {
		bc.Timeout = DefaultBreakerConfig().Timeout
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 1,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			level := slog.LevelWarn
			if to == gobreaker.StateClosed {
				level = slog.LevelInfo
			}
			log.Log(context.Background(), level, "cache circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return &Redis[V]{client: client, prefix: prefix, log: log, cb: cb}
}

// BreakerState reports the breaker state: "closed", "half-open" or "open".
func (c *Redis[V]) BreakerState() string {
	return c.cb.State().String()
}

// exec runs fn through the breaker with the per-command timeout.
func (c *Redis[V]) exec(fn func(ctx context.Context) (any, error)) (any, error) {
	return c.cb.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
		defer cancel()
		return fn(ctx)
	})
}

func (c *Redis[V]) warn(msg, key string, err error) {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.log.Debug(msg, slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	c.log.Warn(msg, slog.String("key", key), slog.String("error", err.Error()))
}

// Get implements Cache.Get. Transport and decode failures read as absent.
func (c *Redis[V]) Get(key string) (V, bool) {
	var zero V
	res, err := c.exec(func(ctx context.Context) (any, error) {
		raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			return []byte(nil), nil
		}
		return raw, err
	})
	if err != nil {
		c.warn("redis get failed", key, err)
		return zero, false
	}
	raw, _ := res.([]byte)
	if raw == nil {
		return zero, false
	}

	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		c.warn("redis value decode failed", key, err)
		return zero, false
	}
	return v, true
}

// Set implements Cache.Set.
func (c *Redis[V]) Set(key string, value V, ttlMinutes int) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.warn("redis value encode failed", key, err)
		return
	}

	var ttl time.Duration
	if ttlMinutes > 0 {
		ttl = time.Duration(ttlMinutes) * time.Minute
	}
	if _, err := c.exec(func(ctx context.Context) (any, error) {
		return nil, c.client.Set(ctx, c.prefix+key, raw, ttl).Err()
	}); err != nil {
		c.warn("redis set failed", key, err)
	}
}

// Del implements Cache.Del.
func (c *Redis[V]) Del(key string) {
	if _, err := c.exec(func(ctx context.Context) (any, error) {
		return nil, c.client.Del(ctx, c.prefix+key).Err()
	}); err != nil {
		c.warn("redis delete failed", key, err)
	}
}

// Has implements Cache.Has.
func (c *Redis[V]) Has(key string) bool {
	res, err := c.exec(func(ctx context.Context) (any, error) {
		return c.client.Exists(ctx, c.prefix+key).Result()
	})
	if err != nil {
		c.warn("redis exists failed", key, err)
		return false
	}
	n, _ := res.(int64)
	return n > 0
}

// Clear implements Cache.Clear. Only keys under the configured prefix are
// removed. A scan failure counts once against the breaker.
func (c *Redis[V]) Clear() {
	_, err := c.cb.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				c.log.Warn("redis clear failed", slog.String("key", iter.Val()), slog.String("error", err.Error()))
			}
		}
		return nil, iter.Err()
	})
	if err != nil {
		c.warn("redis scan failed", c.prefix+"*", err)
	}
}

// Ping checks that Redis is reachable.
func (c *Redis[V]) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
