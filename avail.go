package gdbm

import (
	"github.com/calvinalkan/gdbm/internal/wire"
)

// Free-space management. Records are allocated from a
// global avail table rooted in the header and chained through overflow
// avail blocks; they are freed either into that same global table
// (CentFree policy) or into the local avail list of whichever bucket
// currently owns them, which is checked first on the next alloc from
// that bucket and only spills to the global table when full.
//
// Structural blocks — the directory, hash buckets, and overflow avail
// blocks themselves — never go through this allocator. They are
// bump-allocated at the end of the file via bumpAlloc, to avoid
// re-entering the avail machinery (which may itself need to allocate an
// overflow block) while already allocating space for one. Freed
// structural space is still returned to this allocator, so it becomes
// available for future record allocations.

// allocRecord returns the address of a free extent of at least size
// bytes for a record about to be inserted into b. It first tries b's
// own local avail list (the common case: reusing space just freed by a
// delete or shrinking replace in the same bucket), then the global
// avail table, walking the overflow chain, and finally extends the
// file. b may be nil (no bucket-local list to consult).
func (db *DB) allocRecord(b *wire.Bucket, size uint32) (uint64, error) {
	if b != nil {
		if elem, ok := b.LocalExtractBestFit(size); ok {
			addr := elem.AvAdr
			leftover := elem.AvSize - size

			if leftover > wire.IgnoreSize {
				if err := db.freeRecord(b, addr+uint64(size), leftover); err != nil {
					return 0, err
				}
			}

			db.cache.markCurrentDirty()

			return addr, nil
		}
	}

	for {
		if elem, ok := db.header.Avail.ExtractBestFit(size); ok {
			addr := elem.AvAdr
			leftover := elem.AvSize - size

			if leftover > wire.IgnoreSize {
				if err := db.freeGlobal(addr+uint64(size), leftover); err != nil {
					return 0, err
				}
			}

			return addr, nil
		}

		if db.header.Avail.NextBlock == 0 {
			break
		}

		if err := db.popAvailBlock(); err != nil {
			return 0, err
		}
	}

	return db.bumpAlloc(size), nil
}

// bumpAlloc extends the file by size bytes at the current end of
// allocated space and returns the address of the new extent.
func (db *DB) bumpAlloc(size uint32) uint64 {
	addr := db.header.NextBlock
	db.header.NextBlock += uint64(size)
	db.headerDirty = true

	return addr
}

// popAvailBlock replaces the header's in-memory avail table with the
// contents of the next overflow avail block in the chain, merging the
// freed overflow-block storage itself back into the allocator.
func (db *DB) popAvailBlock() error {
	blockAddr := db.header.Avail.NextBlock
	blockSize := wire.AvailBlockSize(db.header.Avail.Size)

	buf := make([]byte, blockSize)
	if err := db.view.ReadAt(buf, int64(blockAddr)); err != nil {
		return newFatalErr("popAvailBlock", ErrCorrupt)
	}

	db.header.Avail = wire.DecodeAvailBlock(buf)
	db.headerDirty = true

	return db.freeGlobal(blockAddr, uint32(blockSize))
}

// freeGlobal inserts an extent directly into the header's global avail
// table, coalescing with an adjacent free extent first when the
// CoalesceBlks option is set, and spilling half the table to a new
// overflow block when it is full.
func (db *DB) freeGlobal(addr uint64, size uint32) error {
	if size <= wire.IgnoreSize {
		return nil
	}

	if db.coalesceBlks {
		if merged, msize, ok := db.header.Avail.MergeAdjacent(addr, size); ok {
			addr, size = merged, msize
		}
	}

	if !db.header.Avail.Room() {
		if err := db.spillAvailTable(); err != nil {
			return err
		}
	}

	db.header.Avail.HeapInsert(wire.AvailElem{AvSize: size, AvAdr: addr})
	db.headerDirty = true

	return nil
}

// spillAvailTable moves the larger half of the header's avail table
// into a brand-new overflow avail block, bump-allocated at the end of
// the file, leaving the header pointed at the smaller half plus the new
// block as its continuation.
func (db *DB) spillAvailTable() error {
	spilled := db.header.Avail.SpillLargestHalf()

	overflow := wire.AvailTable{
		Size:      db.header.Avail.Size,
		Count:     uint32(len(spilled)),
		NextBlock: db.header.Avail.NextBlock,
		Table:     spilled,
	}

	blockSize := wire.AvailBlockSize(db.header.Avail.Size)
	addr := db.bumpAlloc(uint32(blockSize))

	buf := wire.EncodeAvailBlock(&overflow)

	if err := db.view.WriteAt(buf, int64(addr)); err != nil {
		return newFatalErr("spillAvailTable", err)
	}

	db.header.Avail.NextBlock = addr
	db.headerDirty = true

	return nil
}

// freeRecord returns a record's storage to the allocator. When the
// record's owning bucket is known (the common case: delete, or a
// replace that shrinks a record) and CentFree is not set, the extent is
// offered to that bucket's local avail list first; only once the local
// list is full does it spill into the global table.
func (db *DB) freeRecord(b *wire.Bucket, addr uint64, size uint32) error {
	if size <= wire.IgnoreSize {
		return nil
	}

	if db.centFree || b == nil {
		return db.freeGlobal(addr, size)
	}

	if db.coalesceBlks {
		if merged, msize, ok := b.LocalMergeAdjacent(addr, size); ok {
			addr, size = merged, msize
		}
	}

	if !b.LocalRoom() {
		if err := db.spillLocalAvail(b); err != nil {
			return err
		}
	}

	b.LocalInsert(wire.AvailElem{AvSize: size, AvAdr: addr})
	db.cache.markCurrentDirty()

	return nil
}

// spillLocalAvail pushes every entry out of a bucket's local avail list
// into the global table, making room for a new one.
func (db *DB) spillLocalAvail(b *wire.Bucket) error {
	for i := 0; i < len(b.BucketAvail); i++ {
		elem, ok := b.LocalExtractBestFit(0)
		if !ok {
			break
		}

		if err := db.freeGlobal(elem.AvAdr, elem.AvSize); err != nil {
			return err
		}
	}

	return nil
}
