// Package fsio is the sole point where this database's absolute file
// offsets are translated into either a memory-mapped window or a
// positioned read/write/fsync syscall. Every other
// package addresses the file purely in terms of absolute offsets; none
// of them ever sees a raw window pointer.
package fsio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/calvinalkan/gdbm/pkg/fs"
)

// defaultMaxMapSize is used when Options.MaxMapSize is zero: effectively
// "map as much of the file as fits", bounded only by the address space.
const defaultMaxMapSize = int64(1) << 40 // 1 TiB, well above any realistic db size.

// Options configures a View.
type Options struct {
	// NoMmap disables mmap entirely; all I/O goes through pread/pwrite.
	// Corresponds to the GDBM_NOMMAP open flag.
	NoMmap bool

	// MaxMapSize bounds how much of the file may be mapped at once. Zero
	// means defaultMaxMapSize. Rounded up to the system page size.
	MaxMapSize int64
}

// View is a positioned I/O abstraction over an open database file,
// optionally backed by an mmap window. The window always starts at file
// offset 0 and covers at most maxMapSize bytes; it does not move to
// other offsets. Extents beyond it are read and written with
// pread/pwrite.
//
// A View is not safe for concurrent use by multiple goroutines; callers
// serialize access the same way the rest of this package's single-
// threaded-per-handle model does.
type View struct {
	file fs.File
	fd   int

	noMmap     bool
	maxMapSize int64

	mapped   []byte // the current window, always starting at file offset 0
	fileSize int64
}

// Open wraps an already-open database file in a View. The caller
// retains ownership of file (View.Close does not close it).
func Open(file fs.File, opts Options) (*View, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("fsio: stat: %w", err)
	}

	maxMapSize := opts.MaxMapSize
	if maxMapSize <= 0 {
		maxMapSize = defaultMaxMapSize
	}

	v := &View{
		file:       file,
		fd:         int(file.Fd()),
		noMmap:     opts.NoMmap,
		maxMapSize: roundUpToPage(maxMapSize),
		fileSize:   info.Size(),
	}

	if !v.noMmap && v.fileSize > 0 {
		if err := v.remap(v.fileSize); err != nil {
			return nil, err
		}
	}

	return v, nil
}

func roundUpToPage(n int64) int64 {
	pageSize := int64(os.Getpagesize())
	if n%pageSize == 0 {
		return n
	}

	return (n/pageSize + 1) * pageSize
}

// remap replaces the current window with one covering
// [0, min(size, maxMapSize)). A zero-length window is left unmapped.
func (v *View) remap(size int64) error {
	if v.mapped != nil {
		if err := unix.Munmap(v.mapped); err != nil {
			return fmt.Errorf("fsio: munmap: %w", err)
		}

		v.mapped = nil
	}

	mapSize := size
	if mapSize > v.maxMapSize {
		mapSize = v.maxMapSize
	}

	if mapSize <= 0 {
		return nil
	}

	data, err := unix.Mmap(v.fd, 0, int(mapSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("fsio: mmap: %w", err)
	}

	v.mapped = data

	return nil
}

// inWindow reports whether [off, off+n) lies entirely within the mapped
// window.
func (v *View) inWindow(off, n int64) bool {
	return v.mapped != nil && off >= 0 && n >= 0 && off+n <= int64(len(v.mapped))
}

// ReadAt fills buf from the file starting at off.
func (v *View) ReadAt(buf []byte, off int64) error {
	n := int64(len(buf))
	if n == 0 {
		return nil
	}

	if v.inWindow(off, n) {
		copy(buf, v.mapped[off:off+n])

		return nil
	}

	return v.preadFull(buf, off)
}

func (v *View) preadFull(buf []byte, off int64) error {
	for len(buf) > 0 {
		got, err := unix.Pread(v.fd, buf, off)
		if err != nil {
			if err == unix.EINTR {
				continue
			}

			return fmt.Errorf("fsio: pread: %w", err)
		}

		if got == 0 {
			return fmt.Errorf("fsio: pread: %w", os.ErrClosed)
		}

		buf = buf[got:]
		off += int64(got)
	}

	return nil
}

// WriteAt writes buf to the file starting at off, extending the file
// (and remapping) first if the write would go past EOF.
func (v *View) WriteAt(buf []byte, off int64) error {
	n := int64(len(buf))
	if n == 0 {
		return nil
	}

	end := off + n
	if end > v.fileSize {
		if err := v.extendTo(end); err != nil {
			return err
		}
	}

	if v.inWindow(off, n) {
		copy(v.mapped[off:off+n], buf)

		return nil
	}

	return v.pwriteFull(buf, off)
}

func (v *View) pwriteFull(buf []byte, off int64) error {
	for len(buf) > 0 {
		n, err := unix.Pwrite(v.fd, buf, off)
		if err != nil {
			if err == unix.EINTR {
				continue
			}

			return fmt.Errorf("fsio: pwrite: %w", err)
		}

		buf = buf[n:]
		off += int64(n)
	}

	return nil
}

// extendTo grows the file to size bytes with a single trailing-byte
// write, then remaps the (possibly NoMmap) window.
func (v *View) extendTo(size int64) error {
	if size > v.fileSize {
		if _, err := unix.Pwrite(v.fd, []byte{0}, size-1); err != nil {
			return fmt.Errorf("fsio: extend: %w", err)
		}

		v.fileSize = size
	}

	if v.noMmap {
		return nil
	}

	return v.remap(v.fileSize)
}

// SetMaxMapSize changes the bound on how much of the file may be
// mapped at once. It takes effect the next time the window grows; it
// does not force an immediate remap.
func (v *View) SetMaxMapSize(n int64) {
	if n <= 0 {
		n = defaultMaxMapSize
	}

	v.maxMapSize = roundUpToPage(n)
}

// Size returns the current known file size.
func (v *View) Size() int64 { return v.fileSize }

// Sync forces the window and the file to durable storage
// (msync(MS_SYNC|MS_INVALIDATE) followed by fsync).
func (v *View) Sync() error {
	if v.mapped != nil {
		if err := unix.Msync(v.mapped, unix.MS_SYNC|unix.MS_INVALIDATE); err != nil {
			return fmt.Errorf("fsio: msync: %w", err)
		}
	}

	if err := unix.Fsync(v.fd); err != nil {
		return fmt.Errorf("fsio: fsync: %w", err)
	}

	return nil
}

// Close releases the mmap window, if any. It does not close the
// underlying file.
func (v *View) Close() error {
	if v.mapped == nil {
		return nil
	}

	err := unix.Munmap(v.mapped)
	v.mapped = nil

	if err != nil {
		return fmt.Errorf("fsio: munmap: %w", err)
	}

	return nil
}
