package dump_test

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/gdbm"
	"github.com/calvinalkan/gdbm/internal/dump"
)

func openTestDB(t *testing.T) *gdbm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "dump-test.db")

	db, err := gdbm.Open(path, gdbm.NewDB, 0o644, nil)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return db
}

func TestExporterEachVisitsEveryLiveRecordOnce(t *testing.T) {
	db := openTestDB(t)

	want := map[string]string{
		"alpha": "1",
		"bravo": "2",
		"tango": "3",
	}

	for k, v := range want {
		_, err := db.Store([]byte(k), []byte(v), gdbm.Insert)
		require.NoError(t, err)
	}

	got := make(map[string]string, len(want))

	exporter := dump.NewExporter(db)
	err := exporter.Each(func(key, data []byte) error {
		got[string(key)] = string(data)

		return nil
	})
	require.NoError(t, err)

	require.Equal(t, want, got)
}

func TestExporterEachStopsAtFirstCallbackError(t *testing.T) {
	db := openTestDB(t)

	for i, k := range []string{"a", "b", "c"} {
		_, err := db.Store([]byte(k), []byte{byte(i)}, gdbm.Insert)
		require.NoError(t, err)
	}

	var seen []string

	stop := errTest("stop")

	exporter := dump.NewExporter(db)
	err := exporter.Each(func(key, data []byte) error {
		seen = append(seen, string(key))

		return stop
	})

	require.ErrorIs(t, err, stop)
	require.Len(t, seen, 1)
}

func TestImporterPutStoresWithGivenMode(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Store([]byte("k"), []byte("original"), gdbm.Insert)
	require.NoError(t, err)

	insertImporter := dump.NewImporter(db, gdbm.Insert)
	stored, err := insertImporter.Put([]byte("k"), []byte("should-not-apply"))
	require.NoError(t, err)
	require.False(t, stored)

	value, err := db.Fetch([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("original"), value)

	replaceImporter := dump.NewImporter(db, gdbm.Replace)
	stored, err = replaceImporter.Put([]byte("k"), []byte("replaced"))
	require.NoError(t, err)
	require.True(t, stored)

	value, err = db.Fetch([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("replaced"), value)

	stored, err = replaceImporter.Put([]byte("new"), []byte("fresh"))
	require.NoError(t, err)
	require.True(t, stored)

	value, err = db.Fetch([]byte("new"))
	require.NoError(t, err)
	require.Equal(t, []byte("fresh"), value)
}

func TestExportThenImportRoundTripsIntoFreshDatabase(t *testing.T) {
	src := openTestDB(t)

	keys := []string{"one", "two", "three", "four"}
	for i, k := range keys {
		_, err := src.Store([]byte(k), []byte{byte(i)}, gdbm.Insert)
		require.NoError(t, err)
	}

	dstPath := filepath.Join(t.TempDir(), "dump-roundtrip.db")
	dst, err := gdbm.Open(dstPath, gdbm.NewDB, 0o644, nil)
	require.NoError(t, err)

	t.Cleanup(func() { dst.Close() })

	importer := dump.NewImporter(dst, gdbm.Insert)
	exporter := dump.NewExporter(src)

	err = exporter.Each(func(key, data []byte) error {
		_, putErr := importer.Put(key, data)

		return putErr
	})
	require.NoError(t, err)

	var gotKeys []string

	key, err := dst.FirstKey()
	for err == nil {
		gotKeys = append(gotKeys, string(key))
		key, err = dst.NextKey(key)
	}

	require.ErrorIs(t, err, gdbm.ErrItemNotFound)

	sort.Strings(gotKeys)
	sort.Strings(keys)
	require.Equal(t, keys, gotKeys)
}

type errTest string

func (e errTest) Error() string { return string(e) }
