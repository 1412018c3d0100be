package gdbm

import (
	"github.com/calvinalkan/gdbm/internal/wire"
)

// Delete removes key and its data. Its storage is
// returned to the allocator.
func (db *DB) Delete(key []byte) error {
	if err := db.checkFatal(); err != nil {
		return err
	}

	if !db.writable {
		return newErr("Delete", ErrReaderCantDelete)
	}

	if len(key) == 0 {
		return newErr("Delete", ErrIllegalData)
	}

	hash := wire.Hash31(key)

	b, addr, err := db.bucketForHash(hash)
	if err != nil {
		return err
	}

	idx, err := db.findInBucket(b, hash, key)
	if err != nil {
		return db.fail("Delete", err)
	}

	if idx == -1 {
		return newErr("Delete", ErrItemNotFound)
	}

	if err := db.removeSlot(b, addr, idx); err != nil {
		return db.fail("Delete", err)
	}

	return db.maybeSync("Delete")
}
