//go:build integration

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraflow/pkg/testutil/containers"
)

func TestRedisLockExcludes(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	l := NewRedis(rc.Client, WithTTL(2*time.Second), WithRetryInterval(5*time.Millisecond))

	unlock, err := l.Lock(ctx, "item-1")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, "item-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()

	unlock2, err := l.Lock(ctx, "item-1")
	require.NoError(t, err)
	unlock2()
}

func TestRedisLockDoesNotReleaseForeignToken(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	l := NewRedis(rc.Client, WithTTL(50*time.Millisecond))
	unlock, err := l.Lock(ctx, "item-2")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	other, err := l.Lock(ctx, "item-2")
	require.NoError(t, err)

	unlock()
	exists, err := rc.Client.Exists(ctx, "libraflow:lock:item-2").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
	other()
}
