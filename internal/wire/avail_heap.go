package wire

import "sort"

// Min-heap discipline over AvailTable.Table[:Count], ordered by AvSize.
// The backing array (len == Size) may hold more slots than Count; only
// the first Count entries participate in the heap.

// Room reports whether the table has space for another entry.
func (a *AvailTable) Room() bool { return a.Count < a.Size }

// HeapInsert adds elem to the heap. Caller must check Room first.
func (a *AvailTable) HeapInsert(elem AvailElem) {
	a.Table[a.Count] = elem
	a.Count++
	a.siftUp(int(a.Count) - 1)
}

func (a *AvailTable) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if a.Table[parent].AvSize <= a.Table[i].AvSize {
			return
		}

		a.Table[parent], a.Table[i] = a.Table[i], a.Table[parent]
		i = parent
	}
}

func (a *AvailTable) siftDown(i int) {
	n := int(a.Count)

	for {
		smallest := i
		l, r := 2*i+1, 2*i+2

		if l < n && a.Table[l].AvSize < a.Table[smallest].AvSize {
			smallest = l
		}

		if r < n && a.Table[r].AvSize < a.Table[smallest].AvSize {
			smallest = r
		}

		if smallest == i {
			return
		}

		a.Table[i], a.Table[smallest] = a.Table[smallest], a.Table[i]
		i = smallest
	}
}

// removeAt deletes the entry at index i, restoring heap order.
func (a *AvailTable) removeAt(i int) AvailElem {
	removed := a.Table[i]
	last := int(a.Count) - 1

	a.Table[i] = a.Table[last]
	a.Table[last] = AvailElem{}
	a.Count--

	if i < int(a.Count) {
		a.siftDown(i)
		a.siftUp(i)
	}

	return removed
}

// ExtractBestFit finds and removes the smallest entry with AvSize >= n
// ("best-fit"). Since the table is
// small (it exists to bound memory, not to hold millions of entries) a
// linear scan for the best fit is cheap; insertion and removal maintain
// heap order, so Table[0] is always the smallest (AvSize) entry.
func (a *AvailTable) ExtractBestFit(n uint32) (AvailElem, bool) {
	best := -1

	for i := 0; i < int(a.Count); i++ {
		if a.Table[i].AvSize < n {
			continue
		}

		if best == -1 || a.Table[i].AvSize < a.Table[best].AvSize {
			best = i
		}
	}

	if best == -1 {
		return AvailElem{}, false
	}

	return a.removeAt(best), true
}

// SpillLargestHalf removes and returns the larger half (by AvSize) of the
// table's entries, re-heapifying what remains. Used when the header's
// av_table fills up and must spill to a fresh overflow avail_block.
func (a *AvailTable) SpillLargestHalf() []AvailElem {
	n := int(a.Count)
	all := make([]AvailElem, n)
	copy(all, a.Table[:n])

	sort.Slice(all, func(i, j int) bool { return all[i].AvSize < all[j].AvSize })

	keep := n / 2
	spilled := all[keep:]
	kept := all[:keep]

	a.Count = uint32(keep)
	for i, e := range kept {
		a.Table[i] = e
	}

	for i := keep; i < n; i++ {
		a.Table[i] = AvailElem{}
	}

	a.heapify()

	return spilled
}

func (a *AvailTable) heapify() {
	for i := int(a.Count)/2 - 1; i >= 0; i-- {
		a.siftDown(i)
	}
}

// MergeAdjacent scans the table for an entry immediately adjacent to
// [addr, addr+size) and, if found, removes it and returns a combined
// extent. Used by free() when COALESCEBLKS is set.
func (a *AvailTable) MergeAdjacent(addr uint64, size uint32) (uint64, uint32, bool) {
	for i := 0; i < int(a.Count); i++ {
		e := a.Table[i]
		if e.AvAdr+uint64(e.AvSize) == addr {
			a.removeAt(i)

			return e.AvAdr, e.AvSize + size, true
		}

		if addr+uint64(size) == e.AvAdr {
			a.removeAt(i)

			return addr, size + e.AvSize, true
		}
	}

	return addr, size, false
}
