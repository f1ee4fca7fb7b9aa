package store

import (
	"context"
	"testing"
	"time"

	"procurement-core/internal/domain/entity"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T) (*RedisGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisGuard(rdb, "test", time.Minute), mr
}

func TestRedisGuard_ClaimIsExclusive(t *testing.T) {
	g, _ := newGuard(t)
	ctx := context.Background()

	ok, err := g.Claim(ctx, "r1", "v1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Claim(ctx, "r1", "v1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.Claim(ctx, "r1", "v2")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, g.Release(ctx, "r1", "v1"))
	ok, err = g.Claim(ctx, "r1", "v1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGuard_ClaimExpires(t *testing.T) {
	g, mr := newGuard(t)
	ctx := context.Background()

	ok, err := g.Claim(ctx, "r1", "v1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = g.Claim(ctx, "r1", "v1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGuard_ReleaseLeavesOtherOwnersClaim(t *testing.T) {
	g, mr := newGuard(t)
	other := NewRedisGuard(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test", time.Minute)
	ctx := context.Background()

	ok, err := other.Claim(ctx, "r1", "v1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, g.Release(ctx, "r1", "v1"))
	ok, err = g.Claim(ctx, "r1", "v1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisGuard_ScanLease(t *testing.T) {
	g, mr := newGuard(t)
	ctx := context.Background()

	lease, ok, err := g.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = g.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	lease.Release()
	assert.False(t, mr.Exists("test:mailbox:scan"))

	_, ok, err = g.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGuard_ScanLease_Extend(t *testing.T) {
	g, mr := newGuard(t)
	ctx := context.Background()

	lease, ok, err := g.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(50 * time.Second)
	require.NoError(t, lease.Extend(ctx, time.Minute))
	mr.FastForward(50 * time.Second)
	assert.True(t, mr.Exists("test:mailbox:scan"))

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, lease.Extend(ctx, time.Minute), entity.ErrScanLeaseLost)

	// Another replica took over; the old holder must not extend or release it.
	other, ok, err := g.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.ErrorIs(t, lease.Extend(ctx, time.Minute), entity.ErrScanLeaseLost)
	lease.Release()
	assert.True(t, mr.Exists("test:mailbox:scan"))
	other.Release()
}
