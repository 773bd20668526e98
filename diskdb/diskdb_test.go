// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package diskdb

import (
	"testing"

	"github.com/luxfi/database"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, dir string) *Database {
	t.Helper()
	db, err := Open(dir)
	require.NoError(t, err)
	return db
}

func TestReadWrite(t *testing.T) {
	db := openTemp(t, t.TempDir())
	defer db.Close()

	_, err := db.Get([]byte("k"))
	require.ErrorIs(t, err, database.ErrNotFound)
	has, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	value, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)

	require.NoError(t, db.Delete([]byte("k")))
	_, err = db.Get([]byte("k"))
	require.ErrorIs(t, err, database.ErrNotFound)
}

func TestPrefixIteration(t *testing.T) {
	db := openTemp(t, t.TempDir())
	defer db.Close()

	for _, k := range []string{"ab3", "aa1", "ab1", "ab2", "b"} {
		require.NoError(t, db.Put([]byte(k), []byte("v"+k)))
	}

	it := db.NewIteratorWithPrefix([]byte("ab"))
	defer it.Release()

	var keys, values []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
		values = append(values, string(it.Value()))
	}
	require.NoError(t, it.Error())
	require.Equal(t, []string{"ab1", "ab2", "ab3"}, keys)
	require.Equal(t, []string{"vab1", "vab2", "vab3"}, values)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db := openTemp(t, dir)
	require.NoError(t, db.Put([]byte("root"), []byte{1, 2, 3}))
	require.NoError(t, db.Close())

	db = openTemp(t, dir)
	defer db.Close()
	value, err := db.Get([]byte("root"))
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, value)
}
