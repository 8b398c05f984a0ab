package stackitem

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	assert.Equal(t, IntegerT, Make(42).Type())
	assert.Equal(t, ByteArrayT, Make("string").Type())
	assert.Equal(t, ByteArrayT, Make([]byte{1, 2}).Type())
	assert.Equal(t, BooleanT, Make(true).Type())
	assert.Equal(t, AnyT, Make(nil).Type())
	assert.Equal(t, ArrayT, Make([]Item{Make(1)}).Type())
	require.Panics(t, func() { Make(struct{}{}) })
}

func TestIntegerCap(t *testing.T) {
	max := new(big.Int).Lsh(big.NewInt(1), 255)
	require.Panics(t, func() { NewBigInteger(max) })
	require.NotPanics(t, func() { NewBigInteger(new(big.Int).Sub(max, big.NewInt(1))) })
	min := new(big.Int).Neg(max)
	require.NotPanics(t, func() { NewBigInteger(min) })
	require.Panics(t, func() { NewBigInteger(new(big.Int).Sub(min, big.NewInt(1))) })
}

func TestByteArrayBool(t *testing.T) {
	// Any nonzero byte makes it true, not just nonzero length.
	for _, tc := range []struct {
		bs  []byte
		res bool
	}{
		{[]byte{}, false},
		{[]byte{0}, false},
		{[]byte{0, 0, 0}, false},
		{[]byte{1}, true},
		{[]byte{0, 0, 1}, true},
	} {
		b, err := NewByteArray(tc.bs).TryBool()
		require.NoError(t, err)
		assert.Equal(t, tc.res, b, "bytes: %v", tc.bs)
	}
	_, err := NewByteArray(make([]byte, 33)).TryBool()
	require.Error(t, err)
}

func TestIntegerEqualsAcrossEncodings(t *testing.T) {
	a := Make(5)
	bs := NewByteArray([]byte{5})
	bi, err := bs.TryInteger()
	require.NoError(t, err)
	assert.True(t, a.Equals(Make(bi)))
	// But an Integer doesn't equal a ByteString item.
	assert.False(t, a.Equals(bs))
}

func TestArrayStructDistinction(t *testing.T) {
	elems := []Item{Make(1), Make("two")}
	arr := NewArray(elems)
	st := NewStruct([]Item{Make(1), Make("two")})
	assert.False(t, arr.Equals(st))
	assert.False(t, st.Equals(arr))

	conv, err := arr.Convert(StructT)
	require.NoError(t, err)
	assert.True(t, conv.Equals(st))
}

func TestStructEquality(t *testing.T) {
	a := NewStruct([]Item{Make(1), NewStruct([]Item{Make("x")})})
	b := NewStruct([]Item{Make(1), NewStruct([]Item{Make("x")})})
	c := NewStruct([]Item{Make(1), NewStruct([]Item{Make("y")})})
	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
	assert.False(t, a.Equals(NewStruct([]Item{Make(1)})))
}

func TestStructEqualityLimit(t *testing.T) {
	big1 := NewByteArray(make([]byte, MaxByteArrayComparableSize))
	big2 := NewByteArray(make([]byte, 1))
	a := NewStruct([]Item{big1, big1})
	b := NewStruct([]Item{big1, big2})
	require.Panics(t, func() { a.Equals(b) })
}

func TestMapOrderAndOverwrite(t *testing.T) {
	m := NewMap()
	m.Add(Make("b"), Make(1))
	m.Add(Make("a"), Make(2))
	m.Add(Make("b"), Make(3))
	require.Equal(t, 2, m.Len())
	elems := m.Value().([]MapElement)
	assert.True(t, elems[0].Key.Equals(Make("b")))
	assert.True(t, elems[0].Value.Equals(Make(3)))
	assert.True(t, elems[1].Key.Equals(Make("a")))
}

func TestMapKeyValidation(t *testing.T) {
	require.NoError(t, IsValidMapKey(Make(1)))
	require.NoError(t, IsValidMapKey(Make(true)))
	require.NoError(t, IsValidMapKey(Make("key")))
	require.Error(t, IsValidMapKey(NewArray(nil)))
	require.Error(t, IsValidMapKey(NewMap()))
	require.Error(t, IsValidMapKey(NewByteArray(make([]byte, MaxKeySize+1))))
}

func TestNullConversion(t *testing.T) {
	b, err := Null{}.Convert(BooleanT)
	require.NoError(t, err)
	assert.Equal(t, NewBool(false), b)

	i, err := Null{}.Convert(IntegerT)
	require.NoError(t, err)
	assert.Equal(t, Null{}, i)

	_, err = Null{}.Convert(AnyT)
	require.Error(t, err)
}

func TestBufferConversion(t *testing.T) {
	buf := NewBuffer([]byte{1, 2, 3})
	bs, err := buf.Convert(ByteArrayT)
	require.NoError(t, err)
	// Snapshot: mutating the buffer doesn't affect the byte string.
	(*buf)[0] = 0xFF
	assert.Equal(t, []byte{1, 2, 3}, bs.Value().([]byte))

	i, err := buf.Convert(IntegerT)
	require.NoError(t, err)
	assert.Equal(t, int64(0x0302FF), i.Value().(*big.Int).Int64())
}

func TestBufferEqualsIsIdentity(t *testing.T) {
	a := NewBuffer([]byte{1})
	b := NewBuffer([]byte{1})
	assert.False(t, a.Equals(b))
	assert.True(t, a.Equals(a))
}

func TestPointerEquality(t *testing.T) {
	script := []byte{1, 2, 3}
	p1 := NewPointer(1, script)
	p2 := NewPointer(1, script)
	p3 := NewPointer(2, script)
	assert.True(t, p1.Equals(p2))
	assert.False(t, p1.Equals(p3))
	assert.False(t, p1.Equals(NewPointer(1, []byte{3, 2, 1})))
}

func TestStructClone(t *testing.T) {
	inner := NewStruct([]Item{Make(1)})
	st := NewStruct([]Item{inner})
	cl, err := st.Clone()
	require.NoError(t, err)
	inner.Append(Make(2))
	require.Equal(t, 1, cl.value[0].(*Struct).Len())
}

func TestDeepCopy(t *testing.T) {
	arr := NewArray([]Item{NewBuffer([]byte{1})})
	cp := DeepCopy(arr, false).(*Array)
	require.NotSame(t, arr, cp)
	(*arr.value[0].(*Buffer))[0] = 0xFF
	assert.Equal(t, []byte{1}, cp.value[0].Value().([]byte))

	// Cycles are preserved, not unrolled.
	cyc := NewArray([]Item{})
	cyc.Append(cyc)
	cp2 := DeepCopy(cyc, false).(*Array)
	assert.Same(t, cp2, cp2.value[0])
}

func TestReadOnly(t *testing.T) {
	arr := NewArray([]Item{Make(1)})
	arr.MarkAsReadOnly()
	require.Panics(t, func() { arr.Append(Make(2)) })
	require.Panics(t, func() { arr.Remove(0) })
	require.Panics(t, func() { arr.Clear() })
}
