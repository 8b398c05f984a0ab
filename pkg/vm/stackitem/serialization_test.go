package stackitem

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeRoundtrip(t *testing.T) {
	items := []Item{
		Null{},
		NewBool(true),
		Make(12345),
		Make(-1),
		NewByteArray([]byte("payload")),
		NewBuffer([]byte{0, 1, 2}),
		NewArray([]Item{Make(1), NewStruct([]Item{Make("in")})}),
	}
	m := NewMap()
	m.Add(Make("k"), Make(1))
	m.Add(Make(2), Make("v"))
	items = append(items, m)

	for _, it := range items {
		data, err := Serialize(it)
		require.NoError(t, err)
		res, err := Deserialize(data)
		require.NoError(t, err)
		assert.Equal(t, it.Type(), res.Type())
		assert.Equal(t, it.Value(), res.Value())
	}
}

func TestSerializeRandomBytesIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		buf := make([]byte, r.Intn(64))
		r.Read(buf)
		data, err := Serialize(NewByteArray(buf))
		require.NoError(t, err)
		it, err := Deserialize(data)
		require.NoError(t, err)
		data2, err := Serialize(it)
		require.NoError(t, err)
		assert.Equal(t, data, data2)
	}
}

func TestSerializeRecursive(t *testing.T) {
	arr := NewArray(nil)
	arr.Append(arr)
	_, err := Serialize(arr)
	require.ErrorIs(t, err, ErrRecursive)
}

func TestSerializeUnserializable(t *testing.T) {
	_, err := Serialize(NewInterop(42))
	require.ErrorIs(t, err, ErrUnserializable)
	_, err = Serialize(NewPointer(0, []byte{1}))
	require.ErrorIs(t, err, ErrUnserializable)
}

func TestMapOrderPreservedThroughSerialization(t *testing.T) {
	m := NewMap()
	m.Add(Make("z"), Make(1))
	m.Add(Make("a"), Make(2))
	data, err := Serialize(m)
	require.NoError(t, err)
	res, err := Deserialize(data)
	require.NoError(t, err)
	elems := res.(*Map).Value().([]MapElement)
	assert.True(t, elems[0].Key.Equals(Make("z")))
	assert.True(t, elems[1].Key.Equals(Make("a")))
}
