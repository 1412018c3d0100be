// Package dump is the seam an external dump-file codec (ASCII, binary,
// or anything else) would call into; it is just FirstKey/
// NextKey/Fetch/Store wrapped for convenience.
package dump

import (
	"errors"

	"github.com/calvinalkan/gdbm"
)

// Source is the read side an Exporter walks.
type Source interface {
	FirstKey() ([]byte, error)
	NextKey(key []byte) ([]byte, error)
	Fetch(key []byte) ([]byte, error)
}

// Sink is the write side an Importer feeds.
type Sink interface {
	Store(key, data []byte, mode gdbm.StoreMode) (bool, error)
}

// Exporter walks every live record of a Source in hash order.
type Exporter struct {
	src Source
}

// NewExporter wraps src for enumeration.
func NewExporter(src Source) *Exporter {
	return &Exporter{src: src}
}

// Each calls fn once per (key, data) pair, in the order FirstKey/
// NextKey produce them, stopping at the first error fn returns or once
// enumeration is exhausted.
func (e *Exporter) Each(fn func(key, data []byte) error) error {
	key, err := e.src.FirstKey()

	for err == nil {
		data, fetchErr := e.src.Fetch(key)
		if fetchErr != nil {
			return fetchErr
		}

		if cbErr := fn(key, data); cbErr != nil {
			return cbErr
		}

		key, err = e.src.NextKey(key)
	}

	if !errors.Is(err, gdbm.ErrItemNotFound) {
		return err
	}

	return nil
}

// Importer writes decoded (key, data) pairs into a Sink.
type Importer struct {
	sink Sink
	mode gdbm.StoreMode
}

// NewImporter wraps sink, storing every pair with the given mode
// (gdbm.Insert to fail on duplicates, gdbm.Replace to overwrite).
func NewImporter(sink Sink, mode gdbm.StoreMode) *Importer {
	return &Importer{sink: sink, mode: mode}
}

// Put stores one (key, data) pair, as an external decoder would call
// per record it parses out of its dump format.
func (im *Importer) Put(key, data []byte) (bool, error) {
	return im.sink.Store(key, data, im.mode)
}
