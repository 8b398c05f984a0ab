package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemCachedPutGetDelete(t *testing.T) {
	ps := NewMemoryStore()
	s := NewMemCachedStore(ps)
	key := []byte("foo")
	value := []byte("bar")

	s.Put(key, value)
	res, err := s.Get(key)
	require.NoError(t, err)
	assert.Equal(t, value, res)

	s.Delete(key)
	_, err = s.Get(key)
	require.ErrorIs(t, err, ErrKeyNotFound)

	// Still not in the lower layer.
	_, err = ps.Get(key)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemCachedPersist(t *testing.T) {
	ps := NewMemoryStore()
	s := NewMemCachedStore(ps)
	s.Put([]byte("a"), []byte{1})
	s.Put([]byte("b"), []byte{2})
	s.Delete([]byte("b"))

	n, err := s.Persist()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := ps.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, res)
	_, err = ps.Get([]byte("b"))
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemCachedNestedLayers(t *testing.T) {
	bottom := NewMemoryStore()
	mid := NewMemCachedStore(bottom)
	top := NewMemCachedStore(mid)

	mid.Put([]byte("k"), []byte("mid"))
	res, err := top.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("mid"), res)

	top.Put([]byte("k"), []byte("top"))
	res, err = top.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("top"), res)

	// Dropping the top layer loses its changes.
	top = NewMemCachedStore(mid)
	res, err = top.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("mid"), res)
}

func TestMemCachedSeekMerged(t *testing.T) {
	ps := NewMemoryStore()
	require.NoError(t, ps.PutChangeSet(map[string][]byte{
		"\x70a1": {1},
		"\x70a3": {3},
		"\x70a5": {5},
	}))
	s := NewMemCachedStore(ps)
	s.Put([]byte("\x70a2"), []byte{2})
	s.Put([]byte("\x70a4"), []byte{4})
	s.Delete([]byte("\x70a3"))

	var got []string
	s.Seek(SeekRange{Prefix: []byte("\x70a")}, func(k, v []byte) bool {
		got = append(got, string(k))
		return true
	})
	assert.Equal(t, []string{"\x70a1", "\x70a2", "\x70a4", "\x70a5"}, got)

	got = got[:0]
	s.Seek(SeekRange{Prefix: []byte("\x70a"), Backwards: true}, func(k, v []byte) bool {
		got = append(got, string(k))
		return true
	})
	assert.Equal(t, []string{"\x70a5", "\x70a4", "\x70a2", "\x70a1"}, got)
}

func TestMemoryStoreSeekRange(t *testing.T) {
	ps := NewMemoryStore()
	require.NoError(t, ps.PutChangeSet(map[string][]byte{
		"ka1": {1}, "ka2": {2}, "ka3": {3}, "kb1": {4},
	}))
	var got []string
	ps.Seek(SeekRange{Prefix: []byte("ka"), Start: []byte("2")}, func(k, v []byte) bool {
		got = append(got, string(k))
		return true
	})
	assert.Equal(t, []string{"ka2", "ka3"}, got)

	got = got[:0]
	ps.Seek(SeekRange{Prefix: []byte("ka"), Start: []byte("2"), Backwards: true}, func(k, v []byte) bool {
		got = append(got, string(k))
		return true
	})
	assert.Equal(t, []string{"ka2", "ka1"}, got)
}
