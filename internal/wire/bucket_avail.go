package wire

// Bucket-local free list operations on the fixed 6-entry BucketAvail
// array. Six entries is small enough that a full min-heap is
// unwarranted; best-fit is a linear scan.

// LocalRoom reports whether the bucket's local free list has space.
func (b *Bucket) LocalRoom() bool { return b.AvCount < BucketAvail }

// LocalInsert adds elem to the bucket's local free list. Caller must
// check LocalRoom first.
func (b *Bucket) LocalInsert(elem AvailElem) {
	b.BucketAvail[b.AvCount] = elem
	b.AvCount++
}

// LocalExtractBestFit finds and removes the smallest local entry with
// AvSize >= n.
func (b *Bucket) LocalExtractBestFit(n uint32) (AvailElem, bool) {
	best := -1

	for i := 0; i < int(b.AvCount); i++ {
		if b.BucketAvail[i].AvSize < n {
			continue
		}

		if best == -1 || b.BucketAvail[i].AvSize < b.BucketAvail[best].AvSize {
			best = i
		}
	}

	if best == -1 {
		return AvailElem{}, false
	}

	elem := b.BucketAvail[best]
	last := b.AvCount - 1
	b.BucketAvail[best] = b.BucketAvail[last]
	b.BucketAvail[last] = AvailElem{}
	b.AvCount--

	return elem, true
}

// LocalMergeAdjacent scans the local free list for an extent adjacent to
// [addr, addr+size) and merges it in place if found.
func (b *Bucket) LocalMergeAdjacent(addr uint64, size uint32) (uint64, uint32, bool) {
	for i := 0; i < int(b.AvCount); i++ {
		e := b.BucketAvail[i]
		if e.AvAdr+uint64(e.AvSize) == addr {
			b.removeLocalAt(i)

			return e.AvAdr, e.AvSize + size, true
		}

		if addr+uint64(size) == e.AvAdr {
			b.removeLocalAt(i)

			return addr, size + e.AvSize, true
		}
	}

	return addr, size, false
}

func (b *Bucket) removeLocalAt(i int) {
	last := int(b.AvCount) - 1
	b.BucketAvail[i] = b.BucketAvail[last]
	b.BucketAvail[last] = AvailElem{}
	b.AvCount--
}
