package tenancy

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	*MemoryResolver
	directorCalls atomic.Int32
}

func (c *countingResolver) DirectorByPhone(ctx context.Context, p string) (int64, bool, error) {
	c.directorCalls.Add(1)
	return c.MemoryResolver.DirectorByPhone(ctx, p)
}

func newCached(t *testing.T) (*CachedResolver, *countingResolver, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	src := &countingResolver{MemoryResolver: NewMemoryResolver()}
	src.AddGym(Gym{ID: 1, Phone: "74950000001", DirectorID: 7})
	src.AddClient(Client{ID: 42, Phone: "89161234567", DirectorID: 7})
	return NewCachedResolver(src, rdb, time.Minute), src, mr
}

func TestCachedResolver_ReadThrough(t *testing.T) {
	c, src, mr := newCached(t)
	ctx := context.Background()

	id, ok, err := c.DirectorByPhone(ctx, "84950000001")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)

	id, ok, err = c.DirectorByPhone(ctx, "84950000001")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, int32(1), src.directorCalls.Load())

	v, err := mr.Get(keyPrefix + "84950000001")
	require.NoError(t, err)
	assert.Equal(t, "7", v)
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"84950000001"))
}

func TestCachedResolver_MissesAreNotCached(t *testing.T) {
	c, src, mr := newCached(t)
	ctx := context.Background()

	_, ok, err := c.DirectorByPhone(ctx, "74950000099")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(keyPrefix+"74950000099"))

	src.AddGym(Gym{ID: 2, Phone: "74950000099", DirectorID: 9})

	id, ok, err := c.DirectorByPhone(ctx, "74950000099")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)
	assert.Equal(t, int32(2), src.directorCalls.Load())
}

func TestCachedResolver_ZeroEntryReadsDatabase(t *testing.T) {
	c, src, mr := newCached(t)
	require.NoError(t, mr.Set(keyPrefix+"74950000001", "0"))

	id, ok, err := c.DirectorByPhone(context.Background(), "74950000001")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, int32(1), src.directorCalls.Load())
}

func TestCachedResolver_FallsBackWhenRedisDown(t *testing.T) {
	_, src, _ := newCached(t)
	dead := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = dead.Close() })
	c := NewCachedResolver(src, dead, time.Minute)

	id, ok, err := c.DirectorByPhone(context.Background(), "74950000001")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, int32(1), src.directorCalls.Load())
}

func TestCachedResolver_CorruptEntryIgnored(t *testing.T) {
	c, src, mr := newCached(t)
	require.NoError(t, mr.Set(keyPrefix+"74950000001", "garbage"))

	id, ok, err := c.DirectorByPhone(context.Background(), "74950000001")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, int32(1), src.directorCalls.Load())
}

func TestCachedResolver_ClientLookupsBypassCache(t *testing.T) {
	c, _, mr := newCached(t)

	id, ok, err := c.ClientByPhone(context.Background(), 7, "79161234567")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
	assert.Empty(t, mr.Keys())

	has, err := c.HasClient(context.Background(), 7, 42)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestCachedResolver_Invalidate(t *testing.T) {
	c, src, mr := newCached(t)
	ctx := context.Background()

	_, _, err := c.DirectorByPhone(ctx, "74950000001")
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "84950000001"))
	assert.False(t, mr.Exists(keyPrefix+"74950000001"))

	// The line moved to another director in the CRM.
	src.gyms[0].DirectorID = 11

	id, _, err := c.DirectorByPhone(ctx, "74950000001")
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.Equal(t, int32(2), src.directorCalls.Load())
}
