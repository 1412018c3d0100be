package gdbm

import (
	"errors"
	"fmt"

	"github.com/calvinalkan/gdbm/pkg/fs"
)

// Reorganize rebuilds the database into a fresh file with no wasted
// free space, then atomically replaces the original file with it. The
// handle remains valid and usable after Reorganize returns.
func (db *DB) Reorganize() error {
	if err := db.checkFatal(); err != nil {
		return err
	}

	if !db.writable {
		return newErr("Reorganize", ErrReaderCantStore)
	}

	if err := db.flushAll(); err != nil {
		return db.fail("Reorganize", err)
	}

	tmpPath := db.path + ".reorg.tmp"
	_ = db.fsys.Remove(tmpPath)

	if err := db.rebuildInto(tmpPath); err != nil {
		db.fsys.Remove(tmpPath)

		return db.fail("Reorganize", fmt.Errorf("%w: %w", ErrReorganizeFailed, err))
	}

	if err := db.replaceWithRebuilt(tmpPath); err != nil {
		return db.fail("Reorganize", err)
	}

	return nil
}

// rebuildInto copies every live key/data pair into a brand-new database
// at tmpPath, in directory-hash order.
func (db *DB) rebuildInto(tmpPath string) error {
	fresh, err := OpenFS(db.fsys, tmpPath, NewDB, db.perm, nil)
	if err != nil {
		return fmt.Errorf("reorganize: create scratch database: %w", err)
	}

	defer fresh.closeQuiet()

	key, err := db.FirstKey()
	for err == nil {
		data, fetchErr := db.Fetch(key)
		if fetchErr != nil {
			return fmt.Errorf("reorganize: fetch %q: %w", key, fetchErr)
		}

		if _, storeErr := fresh.Store(key, data, Insert); storeErr != nil {
			return fmt.Errorf("reorganize: store %q: %w", key, storeErr)
		}

		key, err = db.NextKey(key)
	}

	if err != nil && !errors.Is(err, ErrItemNotFound) {
		return fmt.Errorf("reorganize: enumerate: %w", err)
	}

	return fresh.Close()
}

// replaceWithRebuilt atomically swaps tmpPath in over db.path, then
// reopens the handle's file/view/lock/header/directory/cache against
// the replaced file so db remains usable.
func (db *DB) replaceWithRebuilt(tmpPath string) error {
	reader, err := db.fsys.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("reorganize: reopen scratch database: %w", err)
	}

	writer := fs.NewAtomicWriter(db.fsys)
	writeErr := writer.Write(db.path, reader, fs.AtomicWriteOptions{SyncDir: true, Perm: db.perm})
	reader.Close()

	if writeErr != nil {
		db.fsys.Remove(tmpPath)

		return fmt.Errorf("%w: %w", ErrCannotReplace, writeErr)
	}

	db.fsys.Remove(tmpPath)

	return db.reopenAfterReplace()
}

// reopenAfterReplace tears down the handle's file-backed state and
// reopens db.path, since the file descriptor, mmap window, and advisory
// lock the handle held before Reorganize all refer to the now-unlinked
// original file, not its replacement.
func (db *DB) reopenAfterReplace() error {
	cacheCapacity := db.cache.capacity

	if db.view != nil {
		db.view.Close()
	}

	if db.lock != nil {
		db.lock.Close()
	}

	if db.file != nil {
		db.file.Close()
	}

	flags := (db.openFlags &^ modeMask) | Writer

	fresh, err := OpenFS(db.fsys, db.path, flags, db.perm, db.fatalCb)
	if err != nil {
		db.closed = true

		return fmt.Errorf("reorganize: reopen: %w", err)
	}

	db.file = fresh.file
	db.view = fresh.view
	db.lock = fresh.lock
	db.header = fresh.header
	db.dir = fresh.dir
	db.cache = newBucketCache(cacheCapacity)
	db.headerDirty = false
	db.dirDirty = false

	return nil
}
