package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHash31NonNegativeAndDeterministic(t *testing.T) {
	keys := [][]byte{[]byte(""), []byte("a"), []byte("alpha"), []byte("a very long key indeed")}

	for _, k := range keys {
		h1 := Hash31(k)
		h2 := Hash31(k)
		require.Equal(t, h1, h2)
		require.GreaterOrEqual(t, h1, int32(0))
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	blockSize := uint32(512)
	h := &Header{
		Magic:       MagicNewDB,
		BlockSize:   blockSize,
		Dir:         uint64(blockSize),
		DirSize:     8,
		DirBits:     0,
		BucketSize:  blockSize,
		BucketElems: BucketElemsForBlockSize(blockSize),
		NextBlock:   uint64(blockSize) * 3,
	}
	h.Avail.Size = AvailElemsForHeader(blockSize)
	h.Avail.Table = make([]AvailElem, h.Avail.Size)
	h.Avail.Count = 1
	h.Avail.Table[0] = AvailElem{AvSize: 128, AvAdr: 4096}

	buf := EncodeHeader(h)
	require.Len(t, buf, int(blockSize))

	got := DecodeHeader(buf)
	require.Equal(t, h.Magic, got.Magic)
	require.Equal(t, h.Dir, got.Dir)
	require.Equal(t, h.DirBits, got.DirBits)
	require.Equal(t, h.NextBlock, got.NextBlock)
	require.Equal(t, h.Avail.Count, got.Avail.Count)
	require.Equal(t, h.Avail.Table[0], got.Avail.Table[0])
}

func TestBucketInsertFindRemoveSorted(t *testing.T) {
	elems := 4
	b := NewBucket(elems, 0)

	hashes := []int32{100, 5, 50, 1}
	for _, h := range hashes {
		idx, room := b.InsertionIndex(h)
		require.True(t, room)
		b.Insert(idx, Slot{HashValue: h, KeySize: 1, DataSize: 1})
	}

	// Must be sorted ascending.
	for i := 1; i < len(b.HTable); i++ {
		require.Less(t, b.HTable[i-1].HashValue, b.HTable[i].HashValue)
	}

	require.True(t, b.Full())

	idx := b.FindSlot(50, [KeyStartSize]byte{})
	require.Equal(t, int32(50), b.HTable[idx].HashValue)

	b.RemoveAt(idx)
	require.False(t, b.Full())
	require.Equal(t, EmptyHash, b.HTable[len(b.HTable)-1].HashValue)
}

func TestBucketEncodeDecodeRoundTrip(t *testing.T) {
	blockSize := uint32(256)
	elems := int(BucketElemsForBlockSize(blockSize))
	b := NewBucket(elems, 2)
	idx, _ := b.InsertionIndex(42)
	b.Insert(idx, Slot{HashValue: 42, KeyStart: [4]byte{'k', 'e', 'y', '1'}, DataPointer: 99, KeySize: 4, DataSize: 10})

	buf := EncodeBucket(b, blockSize)
	require.Len(t, buf, int(blockSize))

	got := DecodeBucket(buf, elems)
	require.Equal(t, b.BucketBits, got.BucketBits)
	require.Equal(t, b.Count, got.Count)
	require.Equal(t, b.HTable[idx], got.HTable[idx])
}

func TestAvailTableHeapBestFit(t *testing.T) {
	a := &AvailTable{Size: 8, Table: make([]AvailElem, 8)}

	for _, sz := range []uint32{40, 10, 100, 25} {
		require.True(t, a.Room())
		a.HeapInsert(AvailElem{AvSize: sz, AvAdr: uint64(sz) * 10})
	}

	elem, ok := a.ExtractBestFit(20)
	require.True(t, ok)
	require.Equal(t, uint32(25), elem.AvSize)

	elem, ok = a.ExtractBestFit(1000)
	require.False(t, ok)
	require.Zero(t, elem)
}

func TestAvailTableSpillLargestHalf(t *testing.T) {
	a := &AvailTable{Size: 8, Table: make([]AvailElem, 8)}
	for _, sz := range []uint32{10, 20, 30, 40} {
		a.HeapInsert(AvailElem{AvSize: sz})
	}

	spilled := a.SpillLargestHalf()
	require.Len(t, spilled, 2)
	require.Equal(t, uint32(2), a.Count)

	for _, e := range spilled {
		require.GreaterOrEqual(t, e.AvSize, uint32(30))
	}
}

func TestAvailTableMergeAdjacent(t *testing.T) {
	a := &AvailTable{Size: 4, Table: make([]AvailElem, 4)}
	a.HeapInsert(AvailElem{AvSize: 16, AvAdr: 1000})

	addr, size, merged := a.MergeAdjacent(1016, 8)
	require.True(t, merged)
	require.Equal(t, uint64(1000), addr)
	require.Equal(t, uint32(24), size)
	require.Equal(t, uint32(0), a.Count)
}

func TestDirectoryRoundTrip(t *testing.T) {
	dir := []uint64{512, 1024, 1024, 1536}
	buf := EncodeDirectory(dir)
	got := DecodeDirectory(buf, len(dir))
	require.Equal(t, dir, got)
}
