package gdbm_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/gdbm"
)

func TestStoreManyKeysTriggersSplitsAndAllRemainFetchable(t *testing.T) {
	db, err := gdbm.Open(tempDBPath(t), gdbm.NewDB, 0o644, nil)
	require.NoError(t, err)
	defer db.Close()

	const n = 500

	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%04d", i))
		value := []byte(fmt.Sprintf("value-%04d", i))

		stored, err := db.Store(key, value, gdbm.Insert)
		require.NoError(t, err)
		require.True(t, stored)
	}

	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%04d", i))
		want := []byte(fmt.Sprintf("value-%04d", i))

		got, err := db.Fetch(key)
		require.NoError(t, err, "key %s", key)
		require.Equal(t, want, got)
	}
}

func TestFirstKeyNextKeyEnumeratesEveryKeyExactlyOnce(t *testing.T) {
	db, err := gdbm.Open(tempDBPath(t), gdbm.NewDB, 0o644, nil)
	require.NoError(t, err)
	defer db.Close()

	const n = 200
	want := make(map[string]bool, n)

	for i := 0; i < n; i++ {
		key := fmt.Sprintf("item-%03d", i)
		_, err := db.Store([]byte(key), []byte("v"), gdbm.Insert)
		require.NoError(t, err)
		want[key] = false
	}

	seen := 0

	key, err := db.FirstKey()
	for err == nil {
		k := string(key)
		require.False(t, want[k], "key %q enumerated twice", k)
		require.Contains(t, want, k)
		want[k] = true
		seen++

		key, err = db.NextKey(key)
	}

	require.ErrorIs(t, err, gdbm.ErrItemNotFound)
	require.Equal(t, n, seen)

	for k, v := range want {
		require.True(t, v, "key %q never enumerated", k)
	}
}

func TestFirstKeyOnEmptyDatabase(t *testing.T) {
	db, err := gdbm.Open(tempDBPath(t), gdbm.NewDB, 0o644, nil)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.FirstKey()
	require.ErrorIs(t, err, gdbm.ErrItemNotFound)
}

func TestReorganizeShrinksFileAndPreservesData(t *testing.T) {
	path := tempDBPath(t)

	db, err := gdbm.Open(path, gdbm.NewDB, 0o644, nil)
	require.NoError(t, err)
	defer db.Close()

	const n = 100

	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		value := make([]byte, 200)

		_, err := db.Store(key, value, gdbm.Insert)
		require.NoError(t, err)
	}

	for i := 0; i < n; i += 2 {
		key := []byte(fmt.Sprintf("k%03d", i))
		require.NoError(t, db.Delete(key))
	}

	infoBefore, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, db.Reorganize())

	infoAfter, err := os.Stat(path)
	require.NoError(t, err)
	require.Less(t, infoAfter.Size(), infoBefore.Size())

	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))

		got, err := db.Fetch(key)
		if i%2 == 0 {
			require.ErrorIs(t, err, gdbm.ErrItemNotFound)

			continue
		}

		require.NoError(t, err)
		require.Len(t, got, 200)
	}

	stored, err := db.Store([]byte("after-reorganize"), []byte("v"), gdbm.Insert)
	require.NoError(t, err)
	require.True(t, stored)
	require.NoError(t, db.Sync())
}
