package session

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-storefront/library"
	"library-storefront/storage"
)

func testKey(t *testing.T) *[keyLength]byte {
	t.Helper()
	key, err := LoadOrCreateKey(t.TempDir())
	require.NoError(t, err)
	return key
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "1", ExpiresAt: jwt.NewNumericDate(exp)}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return token
}

func TestSetAndReload(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	key := testKey(t)

	s := New(store, key, nil)
	assert.Equal(t, "", s.Token())
	assert.False(t, s.Authenticated())

	user := &library.User{ID: 1, Name: "Reader", Role: "USER"}
	require.NoError(t, s.Set(ctx, "opaque-token", time.Now().Add(time.Hour), user))
	assert.Equal(t, "opaque-token", s.Token())

	sealed, err := store.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(sealed, []byte("opaque-token")), "token is sealed at rest")

	reloaded := New(store, key, nil)
	reloaded.Load(ctx)
	assert.Equal(t, "opaque-token", reloaded.Token())
	got, ok := reloaded.User()
	require.True(t, ok)
	assert.Equal(t, "Reader", got.Name)
}

func TestExpiryFromJWTClaim(t *testing.T) {
	ctx := context.Background()
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	token := signedToken(t, exp)

	s := New(storage.NewMemory(), testKey(t), nil)
	require.NoError(t, s.Set(ctx, token, time.Time{}, nil))
	assert.True(t, s.ExpiresAt().Equal(exp))
	assert.Equal(t, token, s.Token())
}

func TestExpiredTokens(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected by Set", func(t *testing.T) {
		s := New(storage.NewMemory(), testKey(t), nil)
		err := s.Set(ctx, signedToken(t, time.Now().Add(-time.Minute)), time.Time{}, nil)
		assert.ErrorIs(t, err, ErrExpired)
		assert.False(t, s.Authenticated())
	})

	t.Run("dropped on read", func(t *testing.T) {
		s := New(storage.NewMemory(), testKey(t), nil)
		now := time.Now()
		s.now = func() time.Time { return now }
		require.NoError(t, s.Set(ctx, "tok", now.Add(time.Minute), nil))

		now = now.Add(2 * time.Minute)
		assert.Equal(t, "", s.Token())
	})

	t.Run("discarded silently on load", func(t *testing.T) {
		store := storage.NewMemory()
		key := testKey(t)
		s := New(store, key, nil)
		require.NoError(t, s.Set(ctx, "tok", time.Now().Add(time.Minute), nil))

		later := New(store, key, nil)
		later.now = func() time.Time { return time.Now().Add(time.Hour) }
		later.Load(ctx)
		assert.False(t, later.Authenticated())

		_, err := store.Get(ctx, StorageKey)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestLoadWithWrongKeySignsOut(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, New(store, testKey(t), nil).Set(ctx, "tok", time.Time{}, nil))

	other := New(store, testKey(t), nil)
	other.Load(ctx)
	assert.False(t, other.Authenticated())
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	s := New(store, testKey(t), nil)
	require.NoError(t, s.Set(ctx, "tok", time.Time{}, nil))
	assert.ErrorIs(t, s.Set(ctx, "", time.Time{}, nil), ErrEmptyToken)

	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, "", s.Token())
	_, err := store.Get(ctx, StorageKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLoadOrCreateKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	first, err := LoadOrCreateKey(dir)
	require.NoError(t, err)
	second, err := LoadOrCreateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, *first, *second)

	info, err := os.Stat(filepath.Join(dir, KeyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, os.WriteFile(filepath.Join(dir, KeyFile), []byte("short"), 0o600))
	_, err = LoadOrCreateKey(dir)
	assert.Error(t, err)
}
