package storage

import (
	"bytes"
	"sort"
	"strings"
)

// MemCachedStore is a wrapper around a persistent store that caches all
// changes until they're flushed in one batch with Persist. A nil value in
// the cache is a deletion marker. It's the snapshot/clone layer: wrapping
// another MemCachedStore gives a copy-on-write subsnapshot that's either
// persisted into the parent or dropped.
type MemCachedStore struct {
	MemoryStore

	// Persistent Store.
	ps Store
}

// NewMemCachedStore creates a new MemCachedStore object.
func NewMemCachedStore(lower Store) *MemCachedStore {
	return &MemCachedStore{
		MemoryStore: *NewMemoryStore(),
		ps:          lower,
	}
}

// Get implements the Store interface.
func (s *MemCachedStore) Get(key []byte) ([]byte, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()
	k := string(key)
	if val, ok := s.mem[k]; ok {
		if val == nil {
			return nil, ErrKeyNotFound
		}
		return val, nil
	}
	return s.ps.Get(key)
}

// Put puts a new KV pair into the cache layer.
func (s *MemCachedStore) Put(key, value []byte) {
	s.mut.Lock()
	s.mem[string(key)] = bytes.Clone(value)
	s.mut.Unlock()
}

// Delete drops the KV pair from the store, putting a deletion marker into
// the cache layer.
func (s *MemCachedStore) Delete(key []byte) {
	s.mut.Lock()
	s.mem[string(key)] = nil
	s.mut.Unlock()
}

// Seek implements the Store interface: it merges cached entries with the
// lower layer keeping the order and hiding deleted values.
func (s *MemCachedStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	var cached []KeyValue
	deleted := make(map[string]bool)
	for k, v := range s.mem {
		if isKeyOK(rng, k) {
			if v == nil {
				deleted[k] = true
				continue
			}
			cached = append(cached, KeyValue{Key: []byte(k), Value: v})
		}
	}
	sort.Slice(cached, func(i, j int) bool {
		return keyLess(rng, cached[i].Key, cached[j].Key)
	})

	var done bool
	var ci int
	s.ps.Seek(rng, func(k, v []byte) bool {
		sk := string(k)
		if _, isCached := s.mem[sk]; isCached || deleted[sk] {
			// Overridden in the cache (or deleted), the cache version
			// wins.
			return true
		}
		for ci < len(cached) && keyLess(rng, cached[ci].Key, k) {
			if !f(cached[ci].Key, cached[ci].Value) {
				done = true
				return false
			}
			ci++
		}
		if !f(k, v) {
			done = true
			return false
		}
		return true
	})
	if done {
		return
	}
	for ; ci < len(cached); ci++ {
		if !f(cached[ci].Key, cached[ci].Value) {
			return
		}
	}
}

// GetStorageChanges returns the storage-prefixed part of the current
// changeset.
func (s *MemCachedStore) GetStorageChanges() map[string][]byte {
	s.mut.RLock()
	defer s.mut.RUnlock()
	res := make(map[string][]byte)
	for k, v := range s.mem {
		if strings.HasPrefix(k, string([]byte{byte(STStorage)})) {
			res[k] = v
		}
	}
	return res
}

// Persist flushes all the MemCachedStore contents into the (supposedly)
// persistent store ps and returns the number of keys flushed.
func (s *MemCachedStore) Persist() (int, error) {
	s.mut.Lock()
	defer s.mut.Unlock()

	keys := len(s.mem)
	if keys == 0 {
		return 0, nil
	}
	err := s.ps.PutChangeSet(s.mem)
	if err == nil {
		s.mem = make(map[string][]byte)
	}
	return keys, err
}

// Close implements the Store interface, clears up memory and closes the
// lower layer Store.
func (s *MemCachedStore) Close() error {
	_ = s.MemoryStore.Close()
	return s.ps.Close()
}
