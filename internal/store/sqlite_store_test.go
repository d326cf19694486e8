package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestSQLite(t *testing.T, path string) *SQLiteStore {
	s, err := OpenSQLite(path, 20*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_SetGetDelete(t *testing.T) {
	s := openTestSQLite(t, filepath.Join(t.TempDir(), "client.db"))
	ctx := context.Background()

	_, err := s.Get(ctx, "auth_token")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "auth_token", "abc"))
	require.NoError(t, s.Set(ctx, "auth_token", "def"))

	got, err := s.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.Equal(t, "def", got)

	require.NoError(t, s.Delete(ctx, "auth_token", "missing"))
	_, err = s.Get(ctx, "auth_token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.db")
	ctx := context.Background()

	first, err := OpenSQLite(path, 0, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, first.SetMany(ctx, map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, first.Close())

	second := openTestSQLite(t, path)
	got, err := second.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestSQLiteStore_WatchAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.db")
	tab1 := openTestSQLite(t, path)
	tab2 := openTestSQLite(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, tab2.Set(ctx, "before", "ignored"))

	changes, err := tab1.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, tab1.Set(ctx, "own", "x"))
	require.NoError(t, tab2.Set(ctx, "marketplace_cart", "[]"))

	select {
	case c := <-changes:
		assert.Equal(t, "marketplace_cart", c.Key)
		assert.Equal(t, tab2.Origin(), c.Origin)
	case <-time.After(2 * time.Second):
		t.Fatal("expected change from second handle")
	}
}

func TestSQLiteStore_UpdateSetsAndDeletesTogether(t *testing.T) {
	s := openTestSQLite(t, filepath.Join(t.TempDir(), "client.db"))
	ctx := context.Background()

	require.NoError(t, s.SetMany(ctx, map[string]string{"auth_token": "old", "auth_user": "u"}))
	require.NoError(t, s.Update(ctx, map[string]string{"auth_token": "new"}, []string{"auth_user"}))

	got, err := s.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.Equal(t, "new", got)
	_, err = s.Get(ctx, "auth_user")
	assert.ErrorIs(t, err, ErrNotFound)
}
