package gdbm

import (
	"github.com/calvinalkan/gdbm/internal/wire"
)

// Store inserts or replaces key/data. With
// mode == Insert, Store returns (false, nil) without modifying the
// database if key already exists. With mode == Replace, an existing
// key's data is overwritten and Store returns (true, nil).
func (db *DB) Store(key, data []byte, mode StoreMode) (bool, error) {
	if err := db.checkFatal(); err != nil {
		return false, err
	}

	if !db.writable {
		return false, newErr("Store", ErrReaderCantStore)
	}

	if len(key) == 0 || len(data) == 0 {
		return false, newErr("Store", ErrIllegalData)
	}

	hash := wire.Hash31(key)

	b, _, err := db.bucketForHash(hash)
	if err != nil {
		return false, err
	}

	idx, err := db.findInBucket(b, hash, key)
	if err != nil {
		return false, db.fail("Store", err)
	}

	if idx != -1 {
		if mode == Insert {
			return false, nil
		}

		if err := db.replaceAt(b, idx, key, data); err != nil {
			return false, err
		}

		return true, db.maybeSync("Store")
	}

	if err := db.ensureRoomForInsert(hash); err != nil {
		return false, err
	}

	// The bucket that owns hash may have moved (split/directory growth).
	b, _, err = db.bucketForHash(hash)
	if err != nil {
		return false, err
	}

	recAddr, recSize, err := db.writeRecord(b, key, data)
	if err != nil {
		return false, err
	}

	insIdx, hasRoom := b.InsertionIndex(hash)
	if !hasRoom {
		return false, db.fail("Store", ErrCorrupt)
	}

	db.insertSlot(b, insIdx, hash, key, recAddr, recSize)

	return true, db.maybeSync("Store")
}

// replaceAt overwrites the data of the record at b.HTable[idx], reusing
// its existing storage in place when the new record is no larger, and
// reallocating otherwise.
func (db *DB) replaceAt(b *wire.Bucket, idx int, key, data []byte) error {
	slot := b.HTable[idx]
	oldSize := slot.KeySize + slot.DataSize
	newSize := uint32(len(key) + len(data))

	if newSize <= oldSize {
		buf := make([]byte, newSize)
		copy(buf, key)
		copy(buf[len(key):], data)

		if err := db.view.WriteAt(buf, int64(slot.DataPointer)); err != nil {
			return db.fail("Store", err)
		}

		if leftover := oldSize - newSize; leftover > 0 {
			if err := db.freeRecord(b, slot.DataPointer+uint64(newSize), leftover); err != nil {
				return err
			}
		}

		b.HTable[idx].DataSize = newSize - uint32(len(key))
	} else {
		if err := db.freeRecord(b, slot.DataPointer, oldSize); err != nil {
			return err
		}

		addr, size, err := db.writeRecord(b, key, data)
		if err != nil {
			return err
		}

		b.HTable[idx].DataPointer = addr
		b.HTable[idx].KeySize = uint32(len(key))
		b.HTable[idx].DataSize = size - uint32(len(key))
	}

	db.cache.markCurrentDirty()

	return nil
}

// maybeSync flushes every pending write when the handle was opened with
// the Sync flag or SetOpt(SyncMode, true).
func (db *DB) maybeSync(op string) error {
	if !db.syncMode {
		return nil
	}

	if err := db.flushAll(); err != nil {
		return db.fail(op, err)
	}

	return nil
}
