package storage

import (
	"bytes"
	"fmt"
	"os"
	"path"

	"go.etcd.io/bbolt"
)

// Bucket represents the bucket used in boltdb to store all the data.
var Bucket = []byte("DB")

// BoltDBStore is a durable storage backend over bbolt.
type BoltDBStore struct {
	db *bbolt.DB
}

// NewBoltDBStore returns a new ready to use BoltDB storage with the
// created bucket.
func NewBoltDBStore(fileName string) (*BoltDBStore, error) {
	fileMode := os.FileMode(0600)
	dir := path.Dir(fileName)
	err := os.MkdirAll(dir, os.ModePerm)
	if err != nil {
		return nil, fmt.Errorf("could not create dir for BoltDB: %w", err)
	}
	db, err := bbolt.Open(fileName, fileMode, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err = tx.CreateBucketIfNotExists(Bucket)
		if err != nil {
			return fmt.Errorf("could not create root bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &BoltDBStore{db: db}, nil
}

// Get implements the Store interface.
func (s *BoltDBStore) Get(key []byte) (val []byte, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(Bucket)
		val = bytes.Clone(b.Get(key))
		return nil
	})
	if val == nil {
		err = ErrKeyNotFound
	}
	return
}

// PutChangeSet implements the Store interface.
func (s *BoltDBStore) PutChangeSet(puts map[string][]byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(Bucket)
		for k, v := range puts {
			var err error
			if v != nil {
				err = b.Put([]byte(k), v)
			} else {
				err = b.Delete([]byte(k))
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Seek implements the Store interface.
func (s *BoltDBStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	start := append(bytes.Clone(rng.Prefix), rng.Start...)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(Bucket).Cursor()
		if rng.Backwards {
			return boltSeekBackwards(c, rng.Prefix, start, f)
		}
		for k, v := c.Seek(start); k != nil && bytes.HasPrefix(k, rng.Prefix); k, v = c.Next() {
			if !f(k, v) {
				break
			}
		}
		return nil
	})
	if err != nil {
		panic(err)
	}
}

func boltSeekBackwards(c *bbolt.Cursor, prefix, start []byte, f func(k, v []byte) bool) error {
	var k, v []byte
	if len(start) == len(prefix) {
		// No explicit start, position at the last key of the range.
		next := nextPrefix(prefix)
		if next == nil {
			k, v = c.Last()
		} else {
			k, v = c.Seek(next)
			if k == nil {
				k, v = c.Last()
			} else {
				k, v = c.Prev()
			}
		}
	} else {
		k, v = c.Seek(start)
		if k == nil || bytes.Compare(k, start) > 0 {
			if k == nil {
				k, v = c.Last()
			} else {
				k, v = c.Prev()
			}
		}
	}
	for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Prev() {
		if !f(k, v) {
			break
		}
	}
	return nil
}

// nextPrefix returns the lowest key greater than any key having the given
// prefix, nil when the prefix is all-0xFF.
func nextPrefix(prefix []byte) []byte {
	res := bytes.Clone(prefix)
	for i := len(res) - 1; i >= 0; i-- {
		if res[i] < 0xFF {
			res[i]++
			return res[:i+1]
		}
	}
	return nil
}

// Close implements the Store interface.
func (s *BoltDBStore) Close() error {
	return s.db.Close()
}
