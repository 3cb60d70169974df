package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempDB(t *testing.T) *SQLite {
	t.Helper()
	dir := t.TempDir()
	db, err := NewSQLite(filepath.Join(dir, "nested", "client.db"))
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLitePutGetDelete(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()

	if _, err := db.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	require.NoError(t, db.Put(ctx, "cart", []byte(`{"items":[]}`)))
	require.NoError(t, db.Put(ctx, "cart", []byte(`{"items":[1]}`)))

	got, err := db.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, `{"items":[1]}`, string(got))

	require.NoError(t, db.Delete(ctx, "cart"))
	require.NoError(t, db.Delete(ctx, "cart"))
	_, err = db.Get(ctx, "cart")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.db")
	ctx := context.Background()

	db, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, db.Put(ctx, "token", []byte("abc")))
	require.NoError(t, db.Close())

	db, err = NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	got, err := db.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestSQLitePutFailureIsWrapped(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	mock.ExpectPrepare("SELECT value FROM kv")
	put := mock.ExpectPrepare("INSERT INTO kv")
	mock.ExpectPrepare("DELETE FROM kv")
	put.ExpectExec().WillReturnError(errors.New("disk I/O error"))

	db, err := FromDB(conn)
	require.NoError(t, err)

	err = db.Put(context.Background(), "cart", []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `put "cart"`)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteGetFailureIsNotNotFound(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	get := mock.ExpectPrepare("SELECT value FROM kv")
	mock.ExpectPrepare("INSERT INTO kv")
	mock.ExpectPrepare("DELETE FROM kv")
	get.ExpectQuery().WithArgs("cart").WillReturnError(errors.New("database is locked"))

	db, err := FromDB(conn)
	require.NoError(t, err)

	_, err = db.Get(context.Background(), "cart")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestMemoryCopiesValues(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	buf := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", buf))
	buf[0] = 'z'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	require.NoError(t, m.Delete(ctx, "k"))
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}
