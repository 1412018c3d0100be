package filelock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/gdbm/pkg/fs"
)

func TestAcquireExclusiveThenSharedFromSameProcessSucceedsViaDistinctFD(t *testing.T) {
	// flock/fcntl locks in this process are per-open-file-description
	// for flock and per-process for fcntl; opening the same path twice
	// within one process is enough to exercise acquire/release without
	// requiring a second process.
	real := fs.NewReal()
	path := filepath.Join(t.TempDir(), "db")

	f, err := real.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer f.Close()

	lk, err := Acquire(f, false)
	require.NoError(t, err)
	require.NotNil(t, lk)

	f2, err := real.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer f2.Close()

	lk2, err := Acquire(f2, true)
	require.NoError(t, err)
	require.NotNil(t, lk2)

	require.NoError(t, lk2.Close())
	require.NoError(t, lk.Close())
}

func TestCloseNilIsSafe(t *testing.T) {
	var lk *Lock
	require.NoError(t, lk.Close())
}
