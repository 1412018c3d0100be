package gdbm

// SetOpt adjusts a runtime-tunable option. CacheSize may
// only be set once, before the bucket cache has serviced its first
// lookup; every other option may be changed at any time.
func (db *DB) SetOpt(flag SetOptFlag, value int) error {
	if err := db.checkFatal(); err != nil {
		return err
	}

	switch flag {
	case CacheSize:
		if db.cache.sized || db.cache.clock != 0 || len(db.cache.entries) != 0 {
			return newErr("SetOpt", ErrOptAlreadySet)
		}

		if value < MinCacheSize {
			value = MinCacheSize
		}

		db.cache = newBucketCache(value)
		db.cache.sized = true

		return nil

	case SyncMode:
		db.syncMode = value != 0

		return nil

	case CentFree:
		db.centFree = value != 0

		return nil

	case CoalesceBlks:
		db.coalesceBlks = value != 0

		return nil

	case MaxMapSize:
		db.view.SetMaxMapSize(int64(value))

		return nil

	default:
		return newErr("SetOpt", ErrOptIllegal)
	}
}
