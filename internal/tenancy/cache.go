package tenancy

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"

	"gymcrm-calls/internal/metrics"
	"gymcrm-calls/internal/phone"
	"gymcrm-calls/pkg/logger"
)

// Resolver is the lookup contract shared by the Postgres reader and the cache.
type Resolver interface {
	DirectorByPhone(ctx context.Context, phone string) (int64, bool, error)
	ClientByPhone(ctx context.Context, directorID int64, phone string) (int64, bool, error)
	HasClient(ctx context.Context, directorID, clientID int64) (bool, error)
}

const keyPrefix = "tenancy:gym:"

// CachedResolver puts a Redis read-through cache in front of the gym to
// director lookup. Only owned numbers are cached: a miss always reaches the
// wrapped resolver, so a gym line added in the CRM is picked up on its first
// call. Redis is optional at runtime: any cache failure, or an open breaker,
// falls through to the wrapped resolver. Client lookups are never cached.
type CachedResolver struct {
	next Resolver
	rdb  *redis.Client
	ttl  time.Duration
	cb   *gobreaker.CircuitBreaker[string]
}

func NewCachedResolver(next Resolver, rdb *redis.Client, ttl time.Duration) *CachedResolver {
	const name = "tenant-cache"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		// A cache miss is not a failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &CachedResolver{next: next, rdb: rdb, ttl: ttl, cb: cb}
}

func (c *CachedResolver) DirectorByPhone(ctx context.Context, p string) (int64, bool, error) {
	p = phone.Normalize(p)
	if p == "" {
		return 0, false, nil
	}
	key := keyPrefix + p
	log := logger.From(ctx)

	v, err := c.cb.Execute(func() (string, error) {
		return c.rdb.Get(ctx, key).Result()
	})
	switch {
	case err == nil:
		if id, ok := decodeDirector(v); ok {
			metrics.TenantCache.WithLabelValues("hit").Inc()
			return id, true, nil
		}
		log.Warn("tenant cache: corrupt entry", "key", key)
	case errors.Is(err, redis.Nil):
		metrics.TenantCache.WithLabelValues("miss").Inc()
	default:
		metrics.TenantCache.WithLabelValues("error").Inc()
		log.Warn("tenant cache unavailable, reading database", "error", err)
	}

	id, ok, err := c.next.DirectorByPhone(ctx, p)
	if err != nil || !ok {
		return 0, false, err
	}

	_, setErr := c.cb.Execute(func() (string, error) {
		return "", c.rdb.Set(ctx, key, strconv.FormatInt(id, 10), c.ttl).Err()
	})
	if setErr != nil {
		log.Debug("tenant cache write skipped", "error", setErr)
	}
	return id, ok, nil
}

func (c *CachedResolver) ClientByPhone(ctx context.Context, directorID int64, p string) (int64, bool, error) {
	return c.next.ClientByPhone(ctx, directorID, p)
}

func (c *CachedResolver) HasClient(ctx context.Context, directorID, clientID int64) (bool, error) {
	return c.next.HasClient(ctx, directorID, clientID)
}

// Invalidate drops the cached owner of a gym line, in both 7/8 forms. The CRM
// calls it when a gym line moves to another director.
func (c *CachedResolver) Invalidate(ctx context.Context, p string) error {
	variants := phone.Variants(p)
	if len(variants) == 0 {
		return nil
	}
	keys := make([]string, len(variants))
	for i, v := range variants {
		keys[i] = keyPrefix + v
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func decodeDirector(v string) (int64, bool) {
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
