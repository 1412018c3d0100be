package gdbm

import (
	"github.com/calvinalkan/gdbm/internal/wire"
)

// Directory growth and bucket splitting. A full bucket
// is split into two buckets one level deeper; if its local depth has
// already caught up with the directory's depth, the directory itself
// doubles first so there is room to point at both halves.

// maxBucketBits bounds split depth. Hash31 only produces 31-bit values,
// so a bucket bit count this high would mean every remaining key hashes
// identically — a degenerate input the allocator cannot do anything
// more about.
const maxBucketBits = 31

// ensureRoomForInsert splits (and, if necessary, grows the directory)
// until the bucket that owns hash is not full.
func (db *DB) ensureRoomForInsert(hash int32) error {
	for {
		b, _, err := db.bucketForHash(hash)
		if err != nil {
			return err
		}

		if !b.Full() {
			return nil
		}

		if b.BucketBits >= maxBucketBits {
			return db.fail("ensureRoomForInsert", ErrCorrupt)
		}

		if b.BucketBits >= db.header.DirBits {
			if err := db.doubleDirectory(); err != nil {
				return err
			}

			continue
		}

		if err := db.splitOne(hash); err != nil {
			return err
		}
	}
}

// doubleDirectory allocates a new directory twice the size of the
// current one, with every new pair of slots pointing at the bucket
// their shared parent slot used to, and frees the old directory's
// storage.
func (db *DB) doubleDirectory() error {
	newBits := db.header.DirBits + 1
	newCount := uint64(1) << newBits

	newDir := make([]uint64, newCount)
	for i, addr := range db.dir {
		newDir[2*i] = addr
		newDir[2*i+1] = addr
	}

	newDirSize := uint32(newCount * 8)
	newDirAddr := db.bumpAlloc(newDirSize)

	if err := db.view.WriteAt(wire.EncodeDirectory(newDir), int64(newDirAddr)); err != nil {
		return db.fail("doubleDirectory", err)
	}

	oldAddr, oldSize := db.header.Dir, db.header.DirSize

	db.dir = newDir
	db.header.Dir = newDirAddr
	db.header.DirSize = newDirSize
	db.header.DirBits = newBits
	db.headerDirty = true
	db.dirDirty = false

	return db.freeGlobal(oldAddr, oldSize)
}

// splitOne splits the (full) bucket owning hash into two buckets one
// level deeper, reusing the original bucket's on-disk address for the
// half whose new discriminating bit is 0 and bump-allocating a fresh
// block for the half whose bit is 1.
func (db *DB) splitOne(hash int32) error {
	b, addr0, err := db.bucketForHash(hash)
	if err != nil {
		return err
	}

	oldBits := b.BucketBits
	newBits := oldBits + 1
	elems := len(b.HTable)

	b0 := wire.NewBucket(elems, newBits)
	b1 := wire.NewBucket(elems, newBits)

	shift := 31 - newBits
	for _, slot := range b.HTable {
		if slot.Empty() {
			continue
		}

		target := b0
		if (uint32(slot.HashValue)>>shift)&1 == 1 {
			target = b1
		}

		idx, hasRoom := target.InsertionIndex(slot.HashValue)
		if !hasRoom {
			// Each half holds at most as many entries as b had slots,
			// so this only happens if b itself is malformed; surface it
			// as corruption rather than silently dropping a key. (When
			// every key lands in the same half, that half is simply full
			// and ensureRoomForInsert splits again.)
			return db.fail("splitOne", ErrCorrupt)
		}

		target.Insert(idx, slot)
	}

	// The bucket's local avail list isn't addressed by hash, so it
	// can't be partitioned between the two halves; it stays with the
	// half that keeps the original address.
	b0.BucketAvail = b.BucketAvail
	b0.AvCount = b.AvCount

	addr1 := db.bumpAlloc(db.header.BucketSize)

	db.cache.invalidate(addr0)

	if err := db.writeBucketAt(addr0, b0); err != nil {
		return db.fail("splitOne", err)
	}

	if err := db.writeBucketAt(addr1, b1); err != nil {
		return db.fail("splitOne", err)
	}

	db.retargetDirectory(hash, oldBits, newBits, addr0, addr1)

	return nil
}

// retargetDirectory repoints every directory slot that used to point
// at the split bucket to whichever of its two successors now owns that
// slot's hash range.
func (db *DB) retargetDirectory(hash int32, oldBits, newBits uint32, addr0, addr1 uint64) {
	sliceLen := uint64(1) << (db.header.DirBits - oldBits)
	anchor := db.dirSlot(hash)
	base := (anchor / sliceLen) * sliceLen
	bitShift := uint64(db.header.DirBits - newBits)

	for i := base; i < base+sliceLen; i++ {
		if (i>>bitShift)&1 == 0 {
			db.dir[i] = addr0
		} else {
			db.dir[i] = addr1
		}
	}

	db.dirDirty = true
}
