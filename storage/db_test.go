package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	require.NoError(t, db.Put([]byte("order/0"), []byte("payload")))

	got, err := db.Get([]byte("order/0"))
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)

	ok, err := db.Has([]byte("order/0"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, db.Delete([]byte("order/0")))
	ok, err = db.Has([]byte("order/0"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemDBMissingKey(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	value := []byte("escrow")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'X'

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("escrow"), got)
}

func TestLevelDBRoundTrip(t *testing.T) {
	dir := t.TempDir()
	db, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("bid/7"), []byte("amount")))

	got, err := db.Get([]byte("bid/7"))
	require.NoError(t, err)
	require.Equal(t, []byte("amount"), got)

	_, err = db.Get([]byte("absent"))
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, db.Delete([]byte("bid/7")))
	ok, err := db.Has([]byte("bid/7"))
	require.NoError(t, err)
	require.False(t, ok)
}
