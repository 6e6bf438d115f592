package redisstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-portal-auth/storage/redisstore"
)

func TestStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("PORTAL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PORTAL_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client, err := redisstore.Dial(ctx, addr, os.Getenv("PORTAL_TEST_REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	defer client.Close()

	store := redisstore.New(client, uuid.NewString())

	_, ok, err := store.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "auth_token", "abc"))
	value, ok, err := store.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", value)

	other := redisstore.New(client, uuid.NewString())
	_, ok, err = other.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Remove(ctx, "auth_token"))
	require.NoError(t, store.Remove(ctx, "auth_token"))
	_, ok, err = store.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.False(t, ok)
}
