package throttle

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestPrecheck(t *testing.T) (*RedisPrecheck, func()) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	precheck := NewRedisPrecheck(rdb)

	return precheck, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestRedisPrecheck_NilClient_FailsOpen(t *testing.T) {
	p := NewRedisPrecheck(nil)
	allowed, retryAfter := p.Allow(context.Background(), 1)
	require.True(t, allowed)
	require.Zero(t, retryAfter)
}

func TestRedisPrecheck_UnconfiguredBucket_FailsOpen(t *testing.T) {
	p, cleanup := newTestPrecheck(t)
	defer cleanup()

	allowed, _ := p.Allow(context.Background(), 42)
	require.True(t, allowed)
}

func TestRedisPrecheck_DeniesAfterCapacityExhausted(t *testing.T) {
	p, cleanup := newTestPrecheck(t)
	defer cleanup()

	p.SetBucket(7, 2) // 2 requests/minute

	ctx := context.Background()
	allowed1, _ := p.Allow(ctx, 7)
	allowed2, _ := p.Allow(ctx, 7)
	allowed3, retryAfter := p.Allow(ctx, 7)

	require.True(t, allowed1)
	require.True(t, allowed2)
	require.False(t, allowed3)
	require.Positive(t, retryAfter)
}
