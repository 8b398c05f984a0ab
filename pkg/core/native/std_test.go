package native

import (
	"math/big"
	"testing"

	"github.com/neoref/neoref/pkg/vm/stackitem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItoaAtoi(t *testing.T) {
	s := newStd()
	var testCases = []struct {
		num    *big.Int
		base   int64
		result string
	}{
		{big.NewInt(0), 10, "0"},
		{big.NewInt(0), 16, "0"},
		{big.NewInt(1), 10, "1"},
		{big.NewInt(-1), 10, "-1"},
		{big.NewInt(1), 16, "1"},
		{big.NewInt(7), 16, "7"},
		{big.NewInt(8), 16, "08"},
		{big.NewInt(65535), 16, "0ffff"},
		{big.NewInt(15), 16, "0f"},
		{big.NewInt(-1), 16, "f"},
	}

	for _, tc := range testCases {
		args := []stackitem.Item{stackitem.NewBigInteger(tc.num), stackitem.Make(tc.base)}
		actual := s.itoa(nil, args)
		assert.Equal(t, stackitem.Make(tc.result), actual, "itoa(%s, %d)", tc.num, tc.base)

		args = []stackitem.Item{stackitem.Make(tc.result), stackitem.Make(tc.base)}
		back := s.atoi(nil, args)
		assert.Equal(t, 0, tc.num.Cmp(back.Value().(*big.Int)), "atoi(%s, %d)", tc.result, tc.base)
	}

	t.Run("-1 with 2 digits", func(t *testing.T) {
		args := []stackitem.Item{stackitem.Make("ff"), stackitem.Make(16)}
		actual := s.atoi(nil, args)
		require.Equal(t, big.NewInt(-1), actual.Value().(*big.Int))
	})
	t.Run("invalid base", func(t *testing.T) {
		require.Panics(t, func() {
			s.itoa(nil, []stackitem.Item{stackitem.Make(1), stackitem.Make(2)})
		})
	})
	t.Run("invalid number", func(t *testing.T) {
		require.Panics(t, func() {
			s.atoi(nil, []stackitem.Item{stackitem.Make("zz"), stackitem.Make(16)})
		})
	})
}

func TestMemoryCompareSearch(t *testing.T) {
	s := newStd()
	check := func(result int64, args ...any) {
		items := make([]stackitem.Item, len(args))
		for i := range args {
			items[i] = stackitem.Make(args[i])
		}
		var actual stackitem.Item
		switch len(args) {
		case 2:
			actual = s.memorySearch2(nil, items)
		case 3:
			actual = s.memorySearch3(nil, items)
		case 4:
			actual = s.memorySearch4(nil, items)
		}
		assert.Equal(t, result, actual.Value().(*big.Int).Int64())
	}
	check(0, "abc", "a")
	check(1, "abc", "b")
	check(-1, "abc", "d")
	check(2, "abcabc", "c", 1)
	check(-1, "abcabc", "c", 1, true) // backward from 1 finds nothing
	check(2, "abcabc", "c", 5, true)

	cmp := s.memoryCompare(nil, []stackitem.Item{stackitem.Make("a"), stackitem.Make("b")})
	assert.Equal(t, int64(-1), cmp.Value().(*big.Int).Int64())
}

func TestStringSplit(t *testing.T) {
	s := newStd()
	res := s.stringSplit2(nil, []stackitem.Item{stackitem.Make("a,b,,c"), stackitem.Make(",")})
	items := res.Value().([]stackitem.Item)
	require.Equal(t, 4, len(items))

	res = s.stringSplit3(nil, []stackitem.Item{
		stackitem.Make("a,b,,c"), stackitem.Make(","), stackitem.Make(true)})
	items = res.Value().([]stackitem.Item)
	require.Equal(t, 3, len(items))
	assert.Equal(t, []byte("c"), items[2].Value())
}

func TestStrLen(t *testing.T) {
	s := newStd()
	check := func(expected int64, str string) {
		res := s.strLen(nil, []stackitem.Item{stackitem.Make(str)})
		assert.Equal(t, expected, res.Value().(*big.Int).Int64(), "strLen(%q)", str)
	}
	check(0, "")
	check(5, "hello")
	check(4, "ночь")
	// A combining sequence composes into one character.
	check(1, "é")
}

func TestBase58Roundtrip(t *testing.T) {
	s := newStd()
	data := []byte{1, 2, 3, 4, 255}
	enc := s.base58Encode(nil, []stackitem.Item{stackitem.Make(data)})
	dec := s.base58Decode(nil, []stackitem.Item{enc})
	assert.Equal(t, data, dec.Value())

	encCheck := s.base58CheckEncode(nil, []stackitem.Item{stackitem.Make(data)})
	decCheck := s.base58CheckDecode(nil, []stackitem.Item{encCheck})
	assert.Equal(t, data, decCheck.Value())

	require.Panics(t, func() {
		s.base58CheckDecode(nil, []stackitem.Item{stackitem.Make("11")})
	})
}

func TestHexEncodeDecode(t *testing.T) {
	s := newStd()
	enc := s.hexEncode(nil, []stackitem.Item{stackitem.Make([]byte{0xde, 0xad})})
	assert.Equal(t, []byte("dead"), enc.Value())
	dec := s.hexDecode(nil, []stackitem.Item{enc})
	assert.Equal(t, []byte{0xde, 0xad}, dec.Value())
}

func TestSerializeRoundtripStd(t *testing.T) {
	s := newStd()
	m := stackitem.NewMap()
	m.Add(stackitem.Make("k"), stackitem.Make(42))
	data := s.serialize(nil, []stackitem.Item{m})
	back := s.deserialize(nil, []stackitem.Item{data})
	require.Equal(t, stackitem.MapT, back.Type())
	elems := back.(*stackitem.Map).Value().([]stackitem.MapElement)
	assert.True(t, elems[0].Value.Equals(stackitem.Make(42)))
}
