//go:build integration
// +build integration

package auth

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisTokenStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	store := NewRedisTokenStore(client)
	token := "integration-" + time.Now().Format(time.RFC3339Nano)

	require.NoError(t, store.MarkValid(ctx, token, time.Minute))
	ok, err := store.IsValid(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Revoke(ctx, token, time.Minute))
	ok, err = store.IsValid(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
	revoked, err := store.IsRevoked(ctx, token)
	require.NoError(t, err)
	assert.True(t, revoked)
}
