package fsio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/gdbm/pkg/fs"
)

func openTempFile(t *testing.T) fs.File {
	t.Helper()

	real := fs.NewReal()
	path := filepath.Join(t.TempDir(), "db")

	f, err := real.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	t.Cleanup(func() { _ = f.Close() })

	return f
}

func TestViewWriteReadRoundTripMmap(t *testing.T) {
	f := openTempFile(t)

	v, err := Open(f, Options{})
	require.NoError(t, err)
	defer v.Close()

	data := []byte("hello, extensible hashing")
	require.NoError(t, v.WriteAt(data, 100))

	got := make([]byte, len(data))
	require.NoError(t, v.ReadAt(got, 100))
	require.Equal(t, data, got)
	require.GreaterOrEqual(t, v.Size(), int64(100+len(data)))

	require.NoError(t, v.Sync())
}

func TestViewWriteReadRoundTripNoMmap(t *testing.T) {
	f := openTempFile(t)

	v, err := Open(f, Options{NoMmap: true})
	require.NoError(t, err)
	defer v.Close()

	data := []byte("no mmap path exercised here")
	require.NoError(t, v.WriteAt(data, 4096))

	got := make([]byte, len(data))
	require.NoError(t, v.ReadAt(got, 4096))
	require.Equal(t, data, got)
}

func TestViewRemapOnGrowth(t *testing.T) {
	f := openTempFile(t)

	v, err := Open(f, Options{})
	require.NoError(t, err)
	defer v.Close()

	require.NoError(t, v.WriteAt([]byte("first"), 0))
	require.NoError(t, v.WriteAt([]byte("second"), 1<<20)) // force growth well past initial window

	got := make([]byte, 5)
	require.NoError(t, v.ReadAt(got, 0))
	require.Equal(t, "first", string(got))

	got2 := make([]byte, 6)
	require.NoError(t, v.ReadAt(got2, 1<<20))
	require.Equal(t, "second", string(got2))
}
