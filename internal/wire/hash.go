// Package wire encodes and decodes the on-disk layout of a gdbm-go
// database: the header, the bucket directory, hash buckets, and the
// free-space avail tables. Nothing in this package touches a file
// descriptor — it only turns bytes into structs and back.
package wire

// Hash31 computes a deterministic, endian-independent 31-bit hash over
// an opaque byte key. The result is always in [0, 1<<31).
//
// The upper bits of the hash select a directory slot
// (hash >> (31 - dirBits)); the low bits only matter for record identity
// and for keeping h_table sorted within a bucket.
func Hash31(key []byte) int32 {
	var value uint32 = 0x238f13af

	for i, b := range key {
		value += uint32(b) << (uint(i) * 5 % 24)
		value &= 0x7fffffff
		value = (1103515243*value + 12345) & 0x7fffffff
	}

	return int32(value)
}
