package wire

import "encoding/binary"

// EncodeDirectory serializes a directory (array of absolute bucket
// offsets) into its on-disk byte form.
func EncodeDirectory(dir []uint64) []byte {
	buf := make([]byte, len(dir)*8)

	for i, off := range dir {
		binary.LittleEndian.PutUint64(buf[i*8:], off)
	}

	return buf
}

// DecodeDirectory parses n directory entries from buf.
func DecodeDirectory(buf []byte, n int) []uint64 {
	dir := make([]uint64, n)
	for i := 0; i < n; i++ {
		dir[i] = binary.LittleEndian.Uint64(buf[i*8:])
	}

	return dir
}
