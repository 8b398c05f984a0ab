package stackitem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestDecodeFunc(js string, expected ...any) func(t *testing.T) {
	return func(t *testing.T) {
		actual, err := FromJSON([]byte(js), 20, false)
		if expected[0] == nil {
			require.Error(t, err)
			return
		}
		require.NoError(t, err)
		require.Equal(t, Make(expected[0]), actual)

		if len(expected) == 1 {
			encoded, err := ToJSON(actual)
			require.NoError(t, err)
			require.Equal(t, js, string(encoded))
		}
	}
}

func TestFromToJSON(t *testing.T) {
	t.Run("ByteString", func(t *testing.T) {
		t.Run("Empty", getTestDecodeFunc(`""`, []byte{}))
		t.Run("Base", getTestDecodeFunc(`"test"`, "test"))
	})
	t.Run("Integer", func(t *testing.T) {
		t.Run("Zero", getTestDecodeFunc("0", 0))
		t.Run("Negative", getTestDecodeFunc("-1", -1))
		t.Run("Positive", getTestDecodeFunc("123", 123))
		t.Run("Real", getTestDecodeFunc("1.5", nil))
	})
	t.Run("Bool", func(t *testing.T) {
		t.Run("True", getTestDecodeFunc("true", true))
		t.Run("False", getTestDecodeFunc("false", false))
	})
	t.Run("Null", getTestDecodeFunc("null", Null{}))
	t.Run("Array", getTestDecodeFunc(`[1,"test",true,null]`,
		NewArray([]Item{Make(1), Make("test"), NewBool(true), Null{}})))
	t.Run("Map", func(t *testing.T) {
		it, err := FromJSON([]byte(`{"b":1,"a":2}`), 10, false)
		require.NoError(t, err)
		m, ok := it.(*Map)
		require.True(t, ok)
		elems := m.Value().([]MapElement)
		require.Equal(t, 2, len(elems))
		// insertion order preserved.
		assert.True(t, elems[0].Key.Equals(Make("b")))
		assert.True(t, elems[1].Key.Equals(Make("a")))
	})
	t.Run("ItemLimit", func(t *testing.T) {
		_, err := FromJSON([]byte(`[1,2,3]`), 2, false)
		require.Error(t, err)
	})
}

func TestToJSONCornerCases(t *testing.T) {
	arr := NewArray(nil)
	arr.Append(arr)
	_, err := ToJSON(arr)
	require.Error(t, err)

	_, err = ToJSON(NewInterop(1))
	require.ErrorIs(t, err, ErrUnserializable)

	bi := Make(MaxAllowedInteger)
	_, err = ToJSON(bi)
	require.NoError(t, err)
	_, err = ToJSON(Make(int64(MaxAllowedInteger + 1)))
	require.Error(t, err)
}

func TestJSONWithTypesRoundtrip(t *testing.T) {
	m := NewMap()
	m.Add(Make(1), Make("one"))
	items := []Item{
		Null{},
		NewBool(true),
		Make(100500),
		NewByteArray([]byte{1, 2, 3}),
		NewBuffer([]byte{4, 5}),
		NewStruct([]Item{Make(1), Null{}}),
		m,
	}
	for _, it := range items {
		data, err := ToJSONWithTypes(it)
		require.NoError(t, err)
		actual, err := FromJSONWithTypes(data)
		require.NoError(t, err)
		assert.Equal(t, it.Type(), actual.Type())
		assert.Equal(t, it.Value(), actual.Value())
	}
}
