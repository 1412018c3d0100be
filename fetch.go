package gdbm

import (
	"github.com/calvinalkan/gdbm/internal/wire"
)

// Fetch returns the data stored under key.
func (db *DB) Fetch(key []byte) ([]byte, error) {
	if err := db.checkFatal(); err != nil {
		return nil, err
	}

	if len(key) == 0 {
		return nil, newErr("Fetch", ErrIllegalData)
	}

	hash := wire.Hash31(key)

	b, _, err := db.bucketForHash(hash)
	if err != nil {
		return nil, err
	}

	idx, err := db.findInBucket(b, hash, key)
	if err != nil {
		return nil, db.fail("Fetch", err)
	}

	if idx == -1 {
		return nil, newErr("Fetch", ErrItemNotFound)
	}

	data, err := db.readRecordData(b.HTable[idx])
	if err != nil {
		return nil, db.fail("Fetch", err)
	}

	return data, nil
}

// Exists reports whether key is present, without returning its data.
func (db *DB) Exists(key []byte) (bool, error) {
	if err := db.checkFatal(); err != nil {
		return false, err
	}

	if len(key) == 0 {
		return false, newErr("Exists", ErrIllegalData)
	}

	hash := wire.Hash31(key)

	b, _, err := db.bucketForHash(hash)
	if err != nil {
		return false, err
	}

	idx, err := db.findInBucket(b, hash, key)
	if err != nil {
		return false, db.fail("Exists", err)
	}

	return idx != -1, nil
}
