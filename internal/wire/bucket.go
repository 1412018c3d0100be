package wire

import (
	"encoding/binary"
	"sort"
)

// EmptyHash is the sentinel hash_value for an unoccupied slot.
const EmptyHash int32 = -1

// Slot is one entry in a bucket's h_table. An Empty slot has
// HashValue == EmptyHash and all other fields zero.
type Slot struct {
	HashValue   int32
	KeyStart    [KeyStartSize]byte
	DataPointer uint64
	KeySize     uint32
	DataSize    uint32
}

// Empty reports whether the slot is unoccupied.
func (s Slot) Empty() bool { return s.HashValue == EmptyHash }

// Bucket is the in-memory decoding of one on-disk hash bucket.
type Bucket struct {
	AvCount     uint32
	BucketAvail [BucketAvail]AvailElem
	BucketBits  uint32
	Count       uint32
	HTable      []Slot // length == bucketElems for this database
}

// NewBucket returns an empty bucket sized for elems slots, at the given
// local depth.
func NewBucket(elems int, bucketBits uint32) *Bucket {
	b := &Bucket{BucketBits: bucketBits, HTable: make([]Slot, elems)}
	for i := range b.HTable {
		b.HTable[i].HashValue = EmptyHash
	}

	return b
}

// EncodeBucket serializes b into a blockSize-length buffer.
func EncodeBucket(b *Bucket, blockSize uint32) []byte {
	buf := make([]byte, blockSize)
	le := binary.LittleEndian

	le.PutUint32(buf[0:], b.AvCount)

	off := 4
	for _, e := range b.BucketAvail {
		le.PutUint32(buf[off:], e.AvSize)
		le.PutUint64(buf[off+4:], e.AvAdr)
		off += availElemSize
	}

	le.PutUint32(buf[off:], b.BucketBits)
	le.PutUint32(buf[off+4:], b.Count)
	off += 8

	for _, s := range b.HTable {
		putSlot(buf[off:], s)
		off += slotSize
	}

	return buf
}

// DecodeBucket parses a blockSize-length buffer, expecting elems slots.
func DecodeBucket(buf []byte, elems int) *Bucket {
	le := binary.LittleEndian

	b := &Bucket{AvCount: le.Uint32(buf[0:])}

	off := 4
	for i := range b.BucketAvail {
		b.BucketAvail[i] = AvailElem{
			AvSize: le.Uint32(buf[off:]),
			AvAdr:  le.Uint64(buf[off+4:]),
		}
		off += availElemSize
	}

	b.BucketBits = le.Uint32(buf[off:])
	b.Count = le.Uint32(buf[off+4:])
	off += 8

	b.HTable = make([]Slot, elems)
	for i := 0; i < elems; i++ {
		b.HTable[i] = getSlot(buf[off:])
		off += slotSize
	}

	return b
}

func putSlot(buf []byte, s Slot) {
	le := binary.LittleEndian
	le.PutUint32(buf[0:], uint32(s.HashValue))
	copy(buf[4:4+KeyStartSize], s.KeyStart[:])
	le.PutUint64(buf[4+KeyStartSize:], s.DataPointer)
	le.PutUint32(buf[4+KeyStartSize+8:], s.KeySize)
	le.PutUint32(buf[4+KeyStartSize+12:], s.DataSize)
}

func getSlot(buf []byte) Slot {
	le := binary.LittleEndian

	var s Slot
	s.HashValue = int32(le.Uint32(buf[0:]))
	copy(s.KeyStart[:], buf[4:4+KeyStartSize])
	s.DataPointer = le.Uint64(buf[4+KeyStartSize:])
	s.KeySize = le.Uint32(buf[4+KeyStartSize+8:])
	s.DataSize = le.Uint32(buf[4+KeyStartSize+12:])

	return s
}

// FindSlot returns the index of the occupied slot whose HashValue equals
// hash and whose KeyStart matches the first bytes of key, or -1.
// Ties on HashValue (distinct keys, same hash) are disambiguated by the
// caller re-reading the full key from disk; FindSlot returns the first
// candidate index in sorted order.
func (b *Bucket) FindSlot(hash int32, keyStart [KeyStartSize]byte) int {
	n := len(b.HTable)

	i := sort.Search(n, func(i int) bool {
		return compareHash(b.HTable[i].HashValue) >= compareHash(hash)
	})

	for ; i < n; i++ {
		s := b.HTable[i]
		if s.HashValue != hash {
			break
		}

		if s.KeyStart == keyStart {
			return i
		}
	}

	return -1
}

// compareHash orders empty slots (EmptyHash == -1) after every occupied
// hash value, so they sort to the end of h_table.
func compareHash(h int32) int64 {
	if h == EmptyHash {
		return 1 << 32
	}

	return int64(h)
}

// InsertionIndex returns the index at which a new slot with the given
// hash should be inserted to keep HTable sorted, and
// whether the bucket has room (i.e. the last slot is empty).
func (b *Bucket) InsertionIndex(hash int32) (idx int, hasRoom bool) {
	n := len(b.HTable)
	if !b.HTable[n-1].Empty() {
		return 0, false
	}

	idx = sort.Search(n, func(i int) bool {
		return compareHash(b.HTable[i].HashValue) >= compareHash(hash)
	})

	return idx, true
}

// Insert places slot at idx, shifting later entries up by one. The
// caller must have checked InsertionIndex's hasRoom first.
func (b *Bucket) Insert(idx int, slot Slot) {
	copy(b.HTable[idx+1:], b.HTable[idx:len(b.HTable)-1])
	b.HTable[idx] = slot
	b.Count++
}

// RemoveAt deletes the slot at idx, shifting later entries down by one
// and marking the vacated tail slot empty.
func (b *Bucket) RemoveAt(idx int) {
	copy(b.HTable[idx:], b.HTable[idx+1:])
	last := len(b.HTable) - 1
	b.HTable[last] = Slot{HashValue: EmptyHash}
	b.Count--
}

// Full reports whether the bucket has no empty slot.
func (b *Bucket) Full() bool {
	return !b.HTable[len(b.HTable)-1].Empty()
}
