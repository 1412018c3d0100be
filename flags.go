package gdbm

// OpenFlag is the bitset passed to Open.
type OpenFlag uint32

// Mode bits occupy the low bits and are mutually exclusive; the
// remaining bits are OR-able modifiers.
const (
	modeMask OpenFlag = 0x0f

	// Reader opens an existing database for read-only access.
	Reader OpenFlag = 0
	// Writer opens an existing database for read/write access.
	Writer OpenFlag = 1
	// WrCreat opens a database for read/write access, creating it if
	// it doesn't already exist.
	WrCreat OpenFlag = 2
	// NewDB always creates a fresh, empty database, truncating any
	// existing file at the given path.
	NewDB OpenFlag = 3

	// Fast is a legacy, obsolete no-op kept for source compatibility.
	Fast OpenFlag = 0x10
	// Sync makes every mutating operation durable before it returns.
	Sync OpenFlag = 0x20
	// NoLock disables all advisory file locking; the caller is
	// responsible for external coordination.
	NoLock OpenFlag = 0x40
	// NoMmap disables the mmap-backed I/O path; all reads/writes go
	// through positioned pread/pwrite.
	NoMmap OpenFlag = 0x80
)

func (f OpenFlag) mode() OpenFlag { return f & modeMask }

// StoreMode selects Store's behavior on an existing key.
type StoreMode int

const (
	// Insert leaves an existing key untouched; Store then returns
	// (false, nil).
	Insert StoreMode = iota
	// Replace overwrites the key's data if it already exists.
	Replace
)

// SetOptFlag selects which runtime tunable SetOpt adjusts.
type SetOptFlag int

const (
	// CacheSize sets the bucket cache capacity. May only be set once,
	// before the cache is first touched.
	CacheSize SetOptFlag = iota
	// SyncMode toggles durable-write-on-every-mutation behavior
	// (equivalent to the Sync open flag, settable after Open).
	SyncMode
	// CentFree toggles the central-free allocator policy.
	CentFree
	// CoalesceBlks toggles free-extent coalescing on free().
	CoalesceBlks
	// MaxMapSize bounds the mmap window size.
	MaxMapSize
)

// DefaultCacheSize is the bucket cache capacity used unless overridden
// via SetOpt(CacheSize, ...) before the cache is first accessed.
const DefaultCacheSize = 100

// MinCacheSize is the smallest cache capacity used; smaller
// SetOpt(CacheSize, ...) values are raised to it.
const MinCacheSize = 10

// DefaultBlockSize is the block size of every database Open creates.
// Open takes no block-size argument, so a new file always uses this
// value.
const DefaultBlockSize = 512
