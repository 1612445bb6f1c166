package persistence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/config"
)

func TestNewRedisWithoutAddr(t *testing.T) {
	assert.Nil(t, NewRedis(config.RedisConfig{}, zap.NewNop()))

	var r *Redis
	_, err := r.AcquireLease(context.Background(), "k", time.Second)
	require.Error(t, err)
}

func TestLeaseIsExclusive(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	r := NewRedis(config.RedisConfig{Addr: addr}, zap.NewNop())
	t.Cleanup(r.Close)

	ctx := context.Background()
	key := "test:lease:" + uuid.NewString()

	first, err := r.AcquireLease(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := r.AcquireLease(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.Nil(t, second, "key is held by the first lease")

	require.NoError(t, first.Release(ctx))
	require.NoError(t, first.Release(ctx))

	third, err := r.AcquireLease(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, third)
	require.NoError(t, third.Release(ctx))
}
