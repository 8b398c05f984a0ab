package storage

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBStore is a durable storage backend over goleveldb.
type LevelDBStore struct {
	db   *leveldb.DB
	path string
}

// NewLevelDBStore returns a new LevelDBStore object that will initialize
// the database found at the given path.
func NewLevelDBStore(path string) (*LevelDBStore, error) {
	var opts = new(opt.Options)

	opts.Filter = filter.NewBloomFilter(10)
	db, err := leveldb.OpenFile(path, opts)
	if err != nil {
		return nil, err
	}

	return &LevelDBStore{
		path: path,
		db:   db,
	}, nil
}

// Get implements the Store interface.
func (s *LevelDBStore) Get(key []byte) ([]byte, error) {
	value, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		err = ErrKeyNotFound
	}
	return value, err
}

// PutChangeSet implements the Store interface.
func (s *LevelDBStore) PutChangeSet(puts map[string][]byte) error {
	tx, err := s.db.OpenTransaction()
	if err != nil {
		return err
	}
	for k := range puts {
		if puts[k] != nil {
			err = tx.Put([]byte(k), puts[k], nil)
		} else {
			err = tx.Delete([]byte(k), nil)
		}
		if err != nil {
			tx.Discard()
			return err
		}
	}
	return tx.Commit()
}

// Seek implements the Store interface.
func (s *LevelDBStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	iter := s.db.NewIterator(util.BytesPrefix(rng.Prefix), nil)
	defer iter.Release()

	var ok bool
	if rng.Backwards {
		if len(rng.Start) == 0 {
			ok = iter.Last()
		} else {
			ok = iter.Seek(append(rng.Prefix, rng.Start...))
			if ok && keyLess(SeekRange{}, append(rng.Prefix, rng.Start...), iter.Key()) {
				ok = iter.Prev()
			} else if !ok {
				ok = iter.Last()
			}
		}
		for ; ok; ok = iter.Prev() {
			if !f(iter.Key(), iter.Value()) {
				return
			}
		}
		return
	}
	ok = iter.Seek(append(rng.Prefix, rng.Start...))
	for ; ok; ok = iter.Next() {
		if !f(iter.Key(), iter.Value()) {
			return
		}
	}
}

// Close implements the Store interface.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
