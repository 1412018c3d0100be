package gdbm

import (
	"fmt"
	"os"

	"github.com/calvinalkan/gdbm/internal/filelock"
	"github.com/calvinalkan/gdbm/internal/fsio"
	"github.com/calvinalkan/gdbm/internal/wire"
	"github.com/calvinalkan/gdbm/pkg/fs"
)

// initialDirBits is the directory depth a freshly created database
// starts with: 256 slots, all pointing at the single initial bucket
// (local depth 0).
const initialDirBits = 8

// DB is a handle to an open database file. It is not safe for
// concurrent use by multiple goroutines (doc.go, "Concurrency").
type DB struct {
	path string
	fsys fs.FS
	file fs.File
	view *fsio.View
	lock *filelock.Lock

	openFlags OpenFlag
	perm      os.FileMode

	writable     bool
	syncMode     bool
	centFree     bool
	coalesceBlks bool
	noMmap       bool

	header      *wire.Header
	headerDirty bool

	dir      []uint64
	dirDirty bool

	cache *bucketCache

	fatal   error
	fatalCb func(string)

	closed bool
}

// Open opens or creates a database at path.
//
// mode is the permission bits used if Open creates a new file (WrCreat
// or NewDB with no pre-existing file). fatalCb, if non-nil, is invoked
// with a human-readable message whenever an operation discovers damage
// bad enough to set the handle's sticky fatal flag.
func Open(path string, flags OpenFlag, mode os.FileMode, fatalCb func(string)) (*DB, error) {
	return OpenFS(fs.NewReal(), path, flags, mode, fatalCb)
}

// OpenFS is Open with an injectable filesystem, for tests.
func OpenFS(fsys fs.FS, path string, flags OpenFlag, mode os.FileMode, fatalCb func(string)) (*DB, error) {
	openMode := flags.mode()

	var osFlags int

	switch openMode {
	case Reader:
		osFlags = os.O_RDONLY
	case Writer:
		osFlags = os.O_RDWR
	case WrCreat:
		osFlags = os.O_RDWR | os.O_CREATE
	case NewDB:
		osFlags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	default:
		return nil, newErr("Open", ErrBadOpenFlags)
	}

	file, err := fsys.OpenFile(path, osFlags, mode)
	if err != nil {
		return nil, newErr("Open", fmt.Errorf("%w: %v", ErrFileOpen, err))
	}

	db := &DB{
		path:      path,
		fsys:      fsys,
		file:      file,
		openFlags: flags,
		perm:      mode,
		writable:  openMode != Reader,
		syncMode:  flags&Sync != 0,
		noMmap:    flags&NoMmap != 0,
		fatalCb:   fatalCb,
	}

	if flags&NoLock == 0 {
		lock, err := filelock.Acquire(file, openMode == Reader)
		if err != nil {
			file.Close()

			if openMode == Reader {
				return nil, newErr("Open", ErrCantBeReader)
			}

			return nil, newErr("Open", ErrCantBeWriter)
		}

		db.lock = lock
	}

	info, err := file.Stat()
	if err != nil {
		db.closeQuiet()

		return nil, newErr("Open", err)
	}

	view, err := fsio.Open(file, fsio.Options{NoMmap: db.noMmap})
	if err != nil {
		db.closeQuiet()

		return nil, newErr("Open", err)
	}

	db.view = view

	if info.Size() == 0 {
		if !db.writable {
			db.closeQuiet()

			return nil, newErr("Open", ErrEmptyDatabase)
		}

		if err := db.initEmpty(); err != nil {
			db.closeQuiet()

			return nil, err
		}
	} else if err := db.loadExisting(); err != nil {
		db.closeQuiet()

		return nil, err
	}

	db.cache = newBucketCache(DefaultCacheSize)

	return db, nil
}

// initEmpty lays out a brand-new, empty database: header, directory
// (all slots pointing at one bucket), and that one empty bucket.
func (db *DB) initEmpty() error {
	blockSize := uint32(DefaultBlockSize)
	dirCount := uint32(1) << initialDirBits
	dirSize := dirCount * 8
	bucketElems := wire.BucketElemsForBlockSize(blockSize)

	if bucketElems == 0 {
		return newErr("Open", ErrBadBlockSize)
	}

	dirOff := uint64(blockSize)
	bucketOff := dirOff + uint64(dirSize)
	bucketSize := blockSize

	dir := make([]uint64, dirCount)
	for i := range dir {
		dir[i] = bucketOff
	}

	header := &wire.Header{
		Magic:       wire.MagicNewDB,
		BlockSize:   blockSize,
		Dir:         dirOff,
		DirSize:     dirSize,
		DirBits:     initialDirBits,
		BucketSize:  bucketSize,
		BucketElems: bucketElems,
		NextBlock:   uint64(bucketSize) + bucketOff,
		Avail: wire.AvailTable{
			Size:  wire.AvailElemsForHeader(blockSize),
			Table: make([]wire.AvailElem, wire.AvailElemsForHeader(blockSize)),
		},
	}

	bucket := wire.NewBucket(int(bucketElems), 0)

	if err := db.view.WriteAt(wire.EncodeBucket(bucket, bucketSize), int64(bucketOff)); err != nil {
		return newErr("Open", err)
	}

	if err := db.view.WriteAt(wire.EncodeDirectory(dir), int64(dirOff)); err != nil {
		return newErr("Open", err)
	}

	if err := db.view.WriteAt(wire.EncodeHeader(header), 0); err != nil {
		return newErr("Open", err)
	}

	if err := db.view.Sync(); err != nil {
		return newErr("Open", err)
	}

	db.header = header
	db.dir = dir

	return nil
}

// loadExisting reads and validates the header and directory of an
// existing database file.
func (db *DB) loadExisting() error {
	peek := make([]byte, 8)
	if err := db.view.ReadAt(peek, 0); err != nil {
		return newErr("Open", ErrCorrupt)
	}

	magic, blockSize := wire.PeekBlockSize(peek)

	switch magic {
	case wire.MagicNewDB:
		// current layout, proceed below.
	case wire.MagicNewDBSwapped:
		return newErr("Open", ErrByteSwapped)
	case wire.MagicNewDB32, wire.MagicLegacy:
		return newErr("Open", ErrBadMagicNumber)
	default:
		return newErr("Open", ErrBadMagicNumber)
	}

	if blockSize < 8 {
		return newErr("Open", ErrBadBlockSize)
	}

	buf := make([]byte, blockSize)
	if err := db.view.ReadAt(buf, 0); err != nil {
		return newErr("Open", ErrCorrupt)
	}

	header := wire.DecodeHeader(buf)

	dirCount := uint64(1) << header.DirBits
	if header.DirSize != uint32(dirCount*8) {
		return newErr("Open", ErrCorrupt)
	}

	dirBuf := make([]byte, header.DirSize)
	if err := db.view.ReadAt(dirBuf, int64(header.Dir)); err != nil {
		return newErr("Open", ErrCorrupt)
	}

	db.header = header
	db.dir = wire.DecodeDirectory(dirBuf, int(dirCount))

	return nil
}

// Close flushes pending writes and releases the handle.
func (db *DB) Close() error {
	if db.closed {
		return nil
	}

	var firstErr error

	if db.fatal == nil {
		if err := db.flushAll(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	db.closeQuiet()

	return firstErr
}

// closeQuiet releases OS resources without attempting to flush dirty
// state, for use on already-broken handles or mid-Open failure paths.
func (db *DB) closeQuiet() {
	if db.closed {
		return
	}

	db.closed = true

	if db.view != nil {
		db.view.Close()
	}

	if db.lock != nil {
		db.lock.Close()
	}

	if db.file != nil {
		db.file.Close()
	}
}

// flushAll writes back the bucket cache, directory, and header, and
// fsyncs the file.
func (db *DB) flushAll() error {
	if err := db.flushCache(); err != nil {
		return err
	}

	if db.dirDirty {
		if err := db.view.WriteAt(wire.EncodeDirectory(db.dir), int64(db.header.Dir)); err != nil {
			return err
		}

		db.dirDirty = false
	}

	if db.headerDirty {
		if err := db.view.WriteAt(wire.EncodeHeader(db.header), 0); err != nil {
			return err
		}

		db.headerDirty = false
	}

	return db.view.Sync()
}

// Sync forces all pending writes to durable storage without closing the
// handle.
func (db *DB) Sync() error {
	if err := db.checkFatal(); err != nil {
		return err
	}

	if err := db.flushAll(); err != nil {
		return db.fail("Sync", err)
	}

	return nil
}

// checkFatal returns ErrFatalHandle wrapped with the original cause if
// the handle has previously hit an unrecoverable error.
func (db *DB) checkFatal() error {
	if db.fatal != nil {
		return &Error{Op: "checkFatal", Err: fmt.Errorf("%w: %v", ErrFatalHandle, db.fatal), Fatal: true}
	}

	return nil
}

// fail records err as the handle's sticky fatal error when it belongs
// to the fatal class, invokes fatalCb, and returns a
// wrapped *Error for the caller.
func (db *DB) fail(op string, err error) error {
	if isFatalClass(err) {
		db.fatal = err

		if db.fatalCb != nil {
			db.fatalCb(fmt.Sprintf("%s: %v", op, err))
		}

		return newFatalErr(op, err)
	}

	return newErr(op, err)
}
