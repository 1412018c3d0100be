package gdbm

import (
	"github.com/calvinalkan/gdbm/internal/wire"
)

// Key enumeration. Order follows the
// directory: buckets are visited in directory-slot order, and each
// directory slot range that shares a bucket (because that bucket's
// local depth is shallower than the directory's) is visited only once.
// Order is a function of each key's hash and the database's current
// split history, not the order keys were inserted or any ordering of
// the keys themselves.

// FirstKey returns the first key in hash order, or ErrItemNotFound if
// the database is empty.
func (db *DB) FirstKey() ([]byte, error) {
	if err := db.checkFatal(); err != nil {
		return nil, err
	}

	return db.firstKeyFrom(0)
}

// NextKey returns the key following key in hash order, or
// ErrItemNotFound if key was the last one.
func (db *DB) NextKey(key []byte) ([]byte, error) {
	if err := db.checkFatal(); err != nil {
		return nil, err
	}

	if len(key) == 0 {
		return nil, newErr("NextKey", ErrIllegalData)
	}

	hash := wire.Hash31(key)

	b, _, err := db.bucketForHash(hash)
	if err != nil {
		return nil, err
	}

	idx, err := db.findInBucket(b, hash, key)
	if err != nil {
		return nil, db.fail("NextKey", err)
	}

	if idx == -1 {
		return nil, newErr("NextKey", ErrItemNotFound)
	}

	if k, ok, err := db.nextInBucket(b, idx+1); err != nil {
		return nil, err
	} else if ok {
		return k, nil
	}

	dirSlot := db.dirSlot(hash)
	sliceLen := uint64(1) << (db.header.DirBits - b.BucketBits)
	base := (dirSlot / sliceLen) * sliceLen

	return db.firstKeyFrom(base + sliceLen)
}

// firstKeyFrom scans directory slots starting at start for the first
// occupied hash-table slot, skipping every duplicate slot a bucket
// occupies once it has been visited.
func (db *DB) firstKeyFrom(start uint64) ([]byte, error) {
	dirLen := uint64(len(db.dir))

	for i := start; i < dirLen; {
		addr := db.dir[i]

		b, err := db.getBucket(addr)
		if err != nil {
			return nil, db.fail("firstKeyFrom", err)
		}

		if k, ok, err := db.nextInBucket(b, 0); err != nil {
			return nil, err
		} else if ok {
			return k, nil
		}

		sliceLen := uint64(1) << (db.header.DirBits - b.BucketBits)
		i = (i/sliceLen)*sliceLen + sliceLen
	}

	return nil, newErr("firstKeyFrom", ErrItemNotFound)
}

// nextInBucket returns the first occupied slot's key at or after index
// from within b.
func (db *DB) nextInBucket(b *wire.Bucket, from int) ([]byte, bool, error) {
	for i := from; i < len(b.HTable); i++ {
		slot := b.HTable[i]
		if slot.Empty() {
			continue
		}

		key := make([]byte, slot.KeySize)
		if err := db.view.ReadAt(key, int64(slot.DataPointer)); err != nil {
			return nil, false, db.fail("nextInBucket", ErrCorrupt)
		}

		return key, true, nil
	}

	return nil, false, nil
}
