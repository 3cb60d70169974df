package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), mr.Addr(), "", 0, "library-test")
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, mr
}

func TestRedisRoundTrip(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	_, err := r.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.Put(ctx, "cart", []byte("x")))
	got, err := r.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))

	raw, err := mr.Get("library-test:cart")
	require.NoError(t, err)
	assert.Equal(t, "x", raw, "keys carry the prefix")

	require.NoError(t, r.Delete(ctx, "cart"))
	_, err = r.Get(ctx, "cart")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, r.Delete(ctx, "cart"), "deleting a missing key is fine")
}

func TestRedisDefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), mr.Addr(), "", 0, "")
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	require.NoError(t, r.Put(context.Background(), "token", []byte("sealed")))
	assert.True(t, mr.Exists("library:token"))
}

func TestRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(context.Background(), addr, "", 0, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect redis")
}

func TestRedisFailuresAreWrapped(t *testing.T) {
	r, mr := newTestRedis(t)
	mr.SetError("ERR injected failure")

	_, err := r.Get(context.Background(), "cart")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), `get "cart"`)
}
