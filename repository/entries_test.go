package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEntryStore(t *testing.T, namespace string) (*EntryStore, func()) {
	store, closeDB, err := OpenSQLite(context.Background(), "file:"+t.TempDir()+"/entries.db", namespace)
	require.NoError(t, err)
	return store, func() { _ = closeDB() }
}

func TestEntryStoreSetGetRemove(t *testing.T) {
	store, cleanup := setupEntryStore(t, "portal-a")
	defer cleanup()

	ctx := context.Background()

	_, ok, err := store.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "auth_token", "first"))
	require.NoError(t, store.Set(ctx, "auth_token", "second"))

	value, ok, err := store.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", value)

	require.NoError(t, store.Remove(ctx, "auth_token"))
	require.NoError(t, store.Remove(ctx, "auth_token"))

	_, ok, err = store.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEntryStoreNamespacesAreIsolated(t *testing.T) {
	dsn := "file:" + t.TempDir() + "/portal.db"
	ctx := context.Background()

	a, closeA, err := OpenSQLite(ctx, dsn, "portal-a")
	require.NoError(t, err)
	defer closeA()

	b, closeB, err := OpenSQLite(ctx, dsn, "portal-b")
	require.NoError(t, err)
	defer closeB()

	require.NoError(t, a.Set(ctx, "auth_token", "token-a"))

	_, ok, err := b.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.False(t, ok)

	value, ok, err := a.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "token-a", value)
}

func TestEntryStoreDefaultNamespace(t *testing.T) {
	store, cleanup := setupEntryStore(t, "")
	defer cleanup()
	assert.Equal(t, "default", store.Namespace())
}
