package gdbm

import (
	"github.com/calvinalkan/gdbm/internal/wire"
)

// Bucket-level orchestration: hashing a key to a directory slot,
// loading the owning bucket through the cache, locating a key's slot
// within it, and reading/writing the key||data record a slot points at.

func keyStart4(key []byte) [wire.KeyStartSize]byte {
	var ks [wire.KeyStartSize]byte
	copy(ks[:], key)

	return ks
}

// dirSlot maps a 31-bit hash to its directory index at the database's
// current directory depth.
func (db *DB) dirSlot(hash int32) uint64 {
	shift := 31 - db.header.DirBits

	return uint64(uint32(hash)) >> shift
}

// bucketForHash returns the (cached) bucket that owns hash, and its
// file address.
func (db *DB) bucketForHash(hash int32) (*wire.Bucket, uint64, error) {
	addr := db.dir[db.dirSlot(hash)]

	b, err := db.getBucket(addr)
	if err != nil {
		return nil, 0, db.fail("bucketForHash", err)
	}

	return b, addr, nil
}

// findInBucket returns the index of key's slot in b, or -1 if key is
// not present. It uses the bucket's sorted hash order to locate the
// first candidate in O(log n), then linearly scans the run of entries
// sharing hash (and, among those, key_start) until the full key is
// confirmed by reading the record from disk — necessary because
// key_start alone does not guarantee key equality.
func (db *DB) findInBucket(b *wire.Bucket, hash int32, key []byte) (int, error) {
	ks := keyStart4(key)
	idx := b.FindSlot(hash, ks)

	for idx != -1 && idx < len(b.HTable) {
		slot := b.HTable[idx]
		if slot.HashValue != hash {
			break
		}

		if slot.KeyStart == ks {
			match, err := db.recordKeyEquals(slot, key)
			if err != nil {
				return -1, err
			}

			if match {
				return idx, nil
			}
		}

		idx++
	}

	return -1, nil
}

// recordKeyEquals reports whether the key stored at slot's data
// pointer equals key.
func (db *DB) recordKeyEquals(slot wire.Slot, key []byte) (bool, error) {
	if slot.KeySize != uint32(len(key)) {
		return false, nil
	}

	got := make([]byte, slot.KeySize)
	if err := db.view.ReadAt(got, int64(slot.DataPointer)); err != nil {
		return false, newErr("recordKeyEquals", ErrCorrupt)
	}

	if string(got) != string(key) {
		return false, nil
	}

	return true, nil
}

// readRecordData reads the data portion of the record slot points at.
func (db *DB) readRecordData(slot wire.Slot) ([]byte, error) {
	data := make([]byte, slot.DataSize)

	off := int64(slot.DataPointer) + int64(slot.KeySize)
	if err := db.view.ReadAt(data, off); err != nil {
		return nil, newErr("readRecordData", ErrCorrupt)
	}

	return data, nil
}

// writeRecord allocates storage for key||data out of bucket b's own
// free space (falling back to the global allocator) and writes it,
// returning the record's address and total on-disk size.
func (db *DB) writeRecord(b *wire.Bucket, key, data []byte) (addr uint64, size uint32, err error) {
	size = uint32(len(key) + len(data))

	addr, err = db.allocRecord(b, size)
	if err != nil {
		return 0, 0, db.fail("writeRecord", err)
	}

	buf := make([]byte, size)
	copy(buf, key)
	copy(buf[len(key):], data)

	if err := db.view.WriteAt(buf, int64(addr)); err != nil {
		return 0, 0, db.fail("writeRecord", err)
	}

	return addr, size, nil
}

// insertSlot places a new occupied slot for hash/key/record into b at
// its sorted position, growing the bucket's Count, and marks b dirty.
// The caller must already know the bucket has room (InsertionIndex's
// hasRoom).
func (db *DB) insertSlot(b *wire.Bucket, idx int, hash int32, key []byte, addr uint64, size uint32) {
	b.Insert(idx, wire.Slot{
		HashValue:   hash,
		KeyStart:    keyStart4(key),
		DataPointer: addr,
		KeySize:     uint32(len(key)),
		DataSize:    size - uint32(len(key)),
	})

	db.cache.markCurrentDirty()
}

// removeSlot deletes the occupied slot at idx from b and frees its
// record storage back to the allocator.
func (db *DB) removeSlot(b *wire.Bucket, bucketAddr uint64, idx int) error {
	slot := b.HTable[idx]
	recSize := slot.KeySize + slot.DataSize

	b.RemoveAt(idx)
	db.cache.markCurrentDirty()

	return db.freeRecord(b, slot.DataPointer, recSize)
}
