package storage

import (
	"testing"

	corestorage "github.com/neoref/neoref/pkg/core/storage"
	"github.com/neoref/neoref/pkg/vm/stackitem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSeekRes() []corestorage.KeyValue {
	return []corestorage.KeyValue{
		{Key: []byte{1}, Value: []byte{10}},
		{Key: []byte{2}, Value: []byte{20}},
	}
}

func TestIteratorDefault(t *testing.T) {
	it := NewIterator(testSeekRes(), []byte{0xAA}, FindDefault)
	require.True(t, it.Next())
	v := it.Value()
	str, ok := v.(*stackitem.Struct)
	require.True(t, ok)
	elems := str.Value().([]stackitem.Item)
	// The prefix is kept by default.
	assert.Equal(t, []byte{0xAA, 1}, elems[0].Value())
	assert.Equal(t, []byte{10}, elems[1].Value())
	require.True(t, it.Next())
	require.False(t, it.Next())
}

func TestIteratorKeysOnlyRemovePrefix(t *testing.T) {
	it := NewIterator(testSeekRes(), []byte{0xAA}, FindKeysOnly|FindRemovePrefix)
	require.True(t, it.Next())
	assert.Equal(t, []byte{1}, it.Value().Value())
}

func TestIteratorValuesOnly(t *testing.T) {
	it := NewIterator(testSeekRes(), []byte{0xAA}, FindValuesOnly)
	require.True(t, it.Next())
	assert.Equal(t, []byte{10}, it.Value().Value())
}

func TestIteratorDeserializePick(t *testing.T) {
	data, err := stackitem.Serialize(stackitem.NewArray([]stackitem.Item{
		stackitem.Make("first"),
		stackitem.Make("second"),
	}))
	require.NoError(t, err)
	seekres := []corestorage.KeyValue{{Key: []byte{1}, Value: data}}

	it := NewIterator(seekres, nil, FindValuesOnly|FindDeserialize|FindPick1)
	require.True(t, it.Next())
	assert.Equal(t, []byte("second"), it.Value().Value())
}

func TestIteratorValueBeforeNextPanics(t *testing.T) {
	it := NewIterator(testSeekRes(), nil, FindDefault)
	require.Panics(t, func() { it.Value() })
}
