package guard_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amrherek/OJO-DynamicDiscount/internal/clock"
	"github.com/amrherek/OJO-DynamicDiscount/internal/guard"
	"github.com/amrherek/OJO-DynamicDiscount/internal/testutil"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBRegistrySingleOwner(t *testing.T) {
	db := testutil.OpenSQLite(t)
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	reg, err := guard.NewDBRegistry(db, clk, "dyn_disc")
	require.NoError(t, err)

	assertSingleOwner(t, reg)
}

func TestDBRegistryUnknownComponentNeverClaims(t *testing.T) {
	db := testutil.OpenSQLite(t)
	reg, err := guard.NewDBRegistry(db, clock.New(), "other")
	require.NoError(t, err)

	ok, err := reg.Claim(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisRegistrySingleOwner(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reg, err := guard.NewRedisRegistry(client, "dyndisc:process", time.Hour)
	require.NoError(t, err)

	assertSingleOwner(t, reg)
}

func TestRedisRegistryExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reg, err := guard.NewRedisRegistry(client, "dyndisc:process", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := reg.Claim(ctx, "crashed")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = reg.Claim(ctx, "next")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewRejectsMissingDeps(t *testing.T) {
	_, err := guard.NewRedisRegistry(nil, "k", time.Minute)
	assert.ErrorIs(t, err, guard.ErrInvalidConfig)

	_, err = guard.NewDBRegistry(nil, clock.New(), "dyn_disc")
	assert.ErrorIs(t, err, guard.ErrInvalidConfig)
}

func assertSingleOwner(t *testing.T, reg guard.Registry) {
	t.Helper()
	ctx := context.Background()

	owner, err := reg.ActiveOwner(ctx)
	require.NoError(t, err)
	assert.Empty(t, owner)

	ok, err := reg.Claim(ctx, "first")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = reg.Claim(ctx, "second")
	require.NoError(t, err)
	assert.False(t, ok)

	owner, err = reg.ActiveOwner(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", owner)

	assert.ErrorIs(t, reg.Release(ctx, "second"), guard.ErrNotOwner)
	require.NoError(t, reg.Release(ctx, "first"))

	owner, err = reg.ActiveOwner(ctx)
	require.NoError(t, err)
	assert.Empty(t, owner)

	ok, err = reg.Claim(ctx, "second")
	require.NoError(t, err)
	assert.True(t, ok)
}
