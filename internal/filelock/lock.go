// Package filelock acquires the whole-file advisory lock gdbm-go takes
// on a database file at open time.
//
// Two independent kernel locking mechanisms are attempted, in order:
// flock(2) (BSD-style, locks the open file description) and then
// fcntl(2) F_SETLK (POSIX record locking, locks the whole file as one
// byte range). The first one that succeeds is remembered so Close can
// release the same mechanism symmetrically. Go's standard library and
// golang.org/x/sys/unix do not expose a third, independent lockf(3)
// primitive on Linux/BSD — lockf is itself implemented in terms of
// fcntl(F_SETLK) on every platform this package targets, so a
// three-mechanism fallback chain (flock, lockf, fcntl) collapses to
// these two genuinely distinct syscalls; see DESIGN.md.
package filelock

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/calvinalkan/gdbm/pkg/fs"
)

// ErrWouldBlock is returned when the lock is held by another process and
// Acquire was asked not to block.
var ErrWouldBlock = errors.New("filelock: would block")

// mechanism identifies which syscall a Lock was acquired with, so Close
// can release it the same way.
type mechanism int

const (
	mechFlock mechanism = iota
	mechFcntl
)

// Lock represents a held whole-file advisory lock. Close releases it.
type Lock struct {
	fd   int
	mech mechanism
}

// Acquire takes a non-blocking whole-file lock on file: shared (SH) for
// readers, exclusive (EX) otherwise. Returns
// ErrWouldBlock if every mechanism failed because the file is already
// locked incompatibly by another process.
func Acquire(file fs.File, shared bool) (*Lock, error) {
	fd := int(file.Fd())

	if lk, err := tryFlock(fd, shared); err == nil {
		return lk, nil
	}

	// flock failed (contention or platform quirk): try the independent
	// fcntl(F_SETLK) mechanism.3's fallback chain.
	if lk, err := tryFcntl(fd, shared); err == nil {
		return lk, nil
	}

	return nil, ErrWouldBlock
}

func tryFlock(fd int, shared bool) (*Lock, error) {
	how := unix.LOCK_EX | unix.LOCK_NB
	if shared {
		how = unix.LOCK_SH | unix.LOCK_NB
	}

	err := flockRetryEINTR(fd, how)
	if err == nil {
		return &Lock{fd: fd, mech: mechFlock}, nil
	}

	if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
		return nil, ErrWouldBlock
	}

	return nil, fmt.Errorf("filelock: flock: %w", err)
}

func flockRetryEINTR(fd, how int) error {
	for {
		err := unix.Flock(fd, how)
		if err == unix.EINTR {
			continue
		}

		return err
	}
}

func tryFcntl(fd int, shared bool) (*Lock, error) {
	lockType := int16(unix.F_WRLCK)
	if shared {
		lockType = unix.F_RDLCK
	}

	lk := unix.Flock_t{
		Type:   lockType,
		Whence: int16(unix.SEEK_SET),
		Start:  0,
		Len:    0, // 0 means "to end of file"
	}

	for {
		err := unix.FcntlFlock(uintptr(fd), unix.F_SETLK, &lk)
		if err == nil {
			return &Lock{fd: fd, mech: mechFcntl}, nil
		}

		if err == unix.EINTR {
			continue
		}

		if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EAGAIN) {
			return nil, ErrWouldBlock
		}

		return nil, fmt.Errorf("filelock: fcntl: %w", err)
	}
}

// Close releases the lock using the same mechanism it was acquired with.
func (l *Lock) Close() error {
	if l == nil {
		return nil
	}

	switch l.mech {
	case mechFlock:
		if err := flockRetryEINTR(l.fd, unix.LOCK_UN); err != nil {
			return fmt.Errorf("filelock: unlock flock: %w", err)
		}
	case mechFcntl:
		lk := unix.Flock_t{Type: unix.F_UNLCK, Whence: int16(unix.SEEK_SET)}
		if err := unix.FcntlFlock(uintptr(l.fd), unix.F_SETLK, &lk); err != nil {
			return fmt.Errorf("filelock: unlock fcntl: %w", err)
		}
	}

	return nil
}
