// Package gdbm is an embedded, single-file, on-disk key/value store
// using extensible (dynamic) hashing.
//
// A database is a self-describing binary container: a header, a
// power-of-two-sized bucket directory, a population of fixed-size hash
// buckets, a free-space registry, and variably-sized key/data records.
// Keys and values are opaque byte strings; the store does not interpret
// or order them.
//
// # Basic usage
//
//	db, err := gdbm.Open("/tmp/my.db", gdbm.WrCreat, 0o644, nil)
//	if err != nil {
//	    // handle FILE_OPEN_ERROR / BAD_MAGIC_NUMBER / ... (see errors.go)
//	}
//	defer db.Close()
//
//	stored, err := db.Store([]byte("key"), []byte("value"), gdbm.Insert)
//
//	value, err := db.Fetch([]byte("key"))
//
// # Concurrency
//
// A single database file may be opened by many readers simultaneously,
// or by exactly one writer, coordinated across processes by an advisory
// whole-file lock (see NoLock to disable this). Within a process, a *DB
// handle is not safe for concurrent use by multiple goroutines: it is a
// synchronous engine whose operations block only on I/O syscalls, never
// on an internal scheduler.
//
// # Durability
//
// Writes are buffered in the bucket cache until eviction, Close, or
// Sync, unless the Sync open flag (or SetOpt(SyncMode, true)) is set.
package gdbm
