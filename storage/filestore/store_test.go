package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/goliatone/go-portal-auth/storage/filestore"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := filestore.New(path, "portal")

	_, ok, err := store.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "auth_token", "abc"))
	require.NoError(t, store.Set(ctx, "auth_user", `{"id":5}`))

	reopened := filestore.New(path, "portal")
	value, ok, err := reopened.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", value)

	require.NoError(t, reopened.Remove(ctx, "auth_token"))
	require.NoError(t, reopened.Remove(ctx, "auth_token"))

	_, ok, err = store.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.False(t, ok)

	user, ok, err := store.Get(ctx, "auth_user")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":5}`, user)
}

func TestStoreFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions only")
	}
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	store := filestore.New(path, "portal")

	require.NoError(t, store.Set(ctx, "auth_token", "abc"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStoreNamespacesShareFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	a := filestore.New(path, "a")
	b := filestore.New(path, "b")

	require.NoError(t, a.Set(ctx, "auth_token", "token-a"))
	require.NoError(t, b.Set(ctx, "auth_token", "token-b"))

	va, _, err := a.Get(ctx, "auth_token")
	require.NoError(t, err)
	vb, _, err := b.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.Equal(t, "token-a", va)
	assert.Equal(t, "token-b", vb)
}

func TestStoreCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	store := filestore.New(path, "portal")

	_, ok, err := store.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.False(t, ok)

	kept, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(kept))

	require.NoError(t, store.Set(ctx, "auth_token", "fresh"))
	value, ok, err := store.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fresh", value)
}

func TestStoreCorruptFileCanBeCleared(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("]]"), 0o600))
	store := filestore.New(path, "portal")

	require.NoError(t, store.Remove(ctx, "auth_token"))
	require.NoError(t, store.Remove(ctx, "auth_user"))

	_, ok, err := store.Get(ctx, "auth_user")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestControllerOverCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	ctrl := auth.NewController(nil, filestore.New(path, "portal"), auth.WithLogger(auth.NoopLogger()))
	require.NoError(t, ctrl.RestoreSession(ctx))
	require.NoError(t, ctrl.Logout(ctx))
	assert.Equal(t, auth.SessionAnonymous, ctrl.Session().Status())
}
