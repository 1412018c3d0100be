package wire

import "encoding/binary"

// Magic numbers. MagicNewDB is the only layout this implementation reads
// or writes. Files carrying MagicNewDB32 or MagicLegacy are not opened:
// Open rejects them with ErrBadMagicNumber, the same error it returns for
// an unknown magic.
const (
	MagicNewDB   uint32 = 0x13579acf // 64-bit offsets, current format.
	MagicNewDB32 uint32 = 0x13579acd // 32-bit offsets, read-only recognized.
	MagicLegacy  uint32 = 0x13579ace // legacy, read-only recognized.

	// MagicNewDBSwapped is MagicNewDB as it appears when a file written
	// on a big-endian host is read on this (little-endian) one.
	MagicNewDBSwapped uint32 = 0xcf9a5713
)

// IgnoreSize is the minimum useful free-extent size:
// extents of this size or smaller are leaked rather than tracked.
const IgnoreSize = 4

// BucketAvail is the number of free-extent slots carried inline in every
// bucket.
const BucketAvail = 6

// KeyStartSize is the number of leading key bytes cached in a slot for a
// fast-reject on lookup.
const KeyStartSize = 4

// Fixed byte sizes of the portions of the header and bucket that precede
// their respective variable-length tables.
const (
	headerFixedSize = 4 + 4 + 8 + 4 + 4 + 4 + 4 + 8 // magic..next_block
	availElemSize   = 4 + 8                         // av_size, av_adr
	availFixedSize  = 4 + 4 + 8                     // size, count, next_block
	slotSize        = 4 + KeyStartSize + 8 + 4 + 4  // hash_value..data_size
	bucketFixedSize = 4 + BucketAvail*availElemSize + 4 + 4
)

// AvailElem is one free-extent descriptor: an extent of AvSize bytes
// starting at file offset AvAdr.
type AvailElem struct {
	AvSize uint32
	AvAdr  uint64
}

// AvailTable is a min-heap (by AvSize) of free extents, shared shape
// between the header's inline table and an overflow avail_block.
type AvailTable struct {
	Size      uint32 // capacity
	Count     uint32 // entries in use
	NextBlock uint64 // next overflow avail_block in the stack, 0 if none
	Table     []AvailElem
}

// Header is the in-memory representation of the fixed-size header block
// at the start of the database file.
type Header struct {
	Magic       uint32
	BlockSize   uint32
	Dir         uint64
	DirSize     uint32
	DirBits     uint32
	BucketSize  uint32
	BucketElems uint32
	NextBlock   uint64
	Avail       AvailTable
}

// BucketElemsForBlockSize returns how many hash slots fit in a bucket of
// the given block size.
func BucketElemsForBlockSize(blockSize uint32) uint32 {
	usable := int64(blockSize) - bucketFixedSize
	if usable < int64(slotSize) {
		return 0
	}

	return uint32(usable / int64(slotSize))
}

// AvailElemsForHeader returns how many avail table entries fit in the
// header's inline table for the given block size.
func AvailElemsForHeader(blockSize uint32) uint32 {
	usable := int64(blockSize) - headerFixedSize - availFixedSize
	if usable < int64(availElemSize) {
		return 0
	}

	return uint32(usable / int64(availElemSize))
}

// PeekBlockSize reads just the magic number and block size from the
// start of a header block, letting Open figure out how many more bytes
// to read before calling DecodeHeader. buf must be at least 8 bytes.
func PeekBlockSize(buf []byte) (magic, blockSize uint32) {
	le := binary.LittleEndian

	return le.Uint32(buf[0:]), le.Uint32(buf[4:])
}

// EncodeHeader serializes h into a BlockSize-length buffer.
func EncodeHeader(h *Header) []byte {
	buf := make([]byte, h.BlockSize)

	le := binary.LittleEndian
	le.PutUint32(buf[0:], h.Magic)
	le.PutUint32(buf[4:], h.BlockSize)
	le.PutUint64(buf[8:], h.Dir)
	le.PutUint32(buf[16:], h.DirSize)
	le.PutUint32(buf[20:], h.DirBits)
	le.PutUint32(buf[24:], h.BucketSize)
	le.PutUint32(buf[28:], h.BucketElems)
	le.PutUint64(buf[32:], h.NextBlock)

	encodeAvailTable(buf[headerFixedSize:], &h.Avail)

	return buf
}

// DecodeHeader parses a BlockSize-length buffer into a Header. It does not
// validate the magic; callers do that with DB-level diagnostics.
func DecodeHeader(buf []byte) *Header {
	le := binary.LittleEndian
	h := &Header{
		Magic:       le.Uint32(buf[0:]),
		BlockSize:   le.Uint32(buf[4:]),
		Dir:         le.Uint64(buf[8:]),
		DirSize:     le.Uint32(buf[16:]),
		DirBits:     le.Uint32(buf[20:]),
		BucketSize:  le.Uint32(buf[24:]),
		BucketElems: le.Uint32(buf[28:]),
		NextBlock:   le.Uint64(buf[32:]),
	}

	h.Avail = decodeAvailTable(buf[headerFixedSize:])

	return h
}

func encodeAvailTable(buf []byte, a *AvailTable) {
	le := binary.LittleEndian
	le.PutUint32(buf[0:], a.Size)
	le.PutUint32(buf[4:], a.Count)
	le.PutUint64(buf[8:], a.NextBlock)

	off := availFixedSize
	for i := uint32(0); i < a.Size; i++ {
		var elem AvailElem
		if int(i) < len(a.Table) {
			elem = a.Table[i]
		}

		le.PutUint32(buf[off:], elem.AvSize)
		le.PutUint64(buf[off+4:], elem.AvAdr)
		off += availElemSize
	}
}

func decodeAvailTable(buf []byte) AvailTable {
	le := binary.LittleEndian

	a := AvailTable{
		Size:      le.Uint32(buf[0:]),
		Count:     le.Uint32(buf[4:]),
		NextBlock: le.Uint64(buf[8:]),
	}

	a.Table = make([]AvailElem, a.Size)
	off := availFixedSize

	for i := uint32(0); i < a.Size; i++ {
		a.Table[i] = AvailElem{
			AvSize: le.Uint32(buf[off:]),
			AvAdr:  le.Uint64(buf[off+4:]),
		}
		off += availElemSize
	}

	return a
}

// AvailBlockSize returns the on-disk size, in bytes, of an overflow
// avail_block holding size entries.
func AvailBlockSize(size uint32) int64 {
	return availFixedSize + int64(size)*availElemSize
}

// EncodeAvailBlock serializes a standalone overflow avail_block (no
// header fields besides the table itself).
func EncodeAvailBlock(a *AvailTable) []byte {
	buf := make([]byte, AvailBlockSize(a.Size))
	encodeAvailTable(buf, a)

	return buf
}

// DecodeAvailBlock parses a standalone overflow avail_block.
func DecodeAvailBlock(buf []byte) AvailTable {
	return decodeAvailTable(buf)
}
