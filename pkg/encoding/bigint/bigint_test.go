package bigint

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCases = []struct {
	number int64
	buf    []byte
}{
	{0, []byte{}},
	{1, []byte{1}},
	{-1, []byte{0xFF}},
	{127, []byte{0x7F}},
	{128, []byte{0x80, 0x00}},
	{-128, []byte{0x80}},
	{-129, []byte{0x7F, 0xFF}},
	{255, []byte{0xFF, 0x00}},
	{256, []byte{0x00, 0x01}},
	{-256, []byte{0x00, 0xFF}},
	{-257, []byte{0xFF, 0xFE}},
	{32767, []byte{0xFF, 0x7F}},
	{32768, []byte{0x00, 0x80, 0x00}},
	{-32768, []byte{0x00, 0x80}},
}

func TestToBytes(t *testing.T) {
	for _, tc := range testCases {
		buf := ToBytes(big.NewInt(tc.number))
		assert.Equal(t, tc.buf, buf, "number: %d", tc.number)
	}
}

func TestFromBytes(t *testing.T) {
	for _, tc := range testCases {
		num := FromBytes(tc.buf)
		assert.Equal(t, tc.number, num.Int64(), "buf: %v", tc.buf)
	}
}

func TestNonMinimalFromBytes(t *testing.T) {
	// sign extension: trailing 0x00 for positive, 0xFF for negative.
	assert.Equal(t, int64(1), FromBytes([]byte{0x01, 0x00, 0x00}).Int64())
	assert.Equal(t, int64(-1), FromBytes([]byte{0xFF, 0xFF, 0xFF}).Int64())
	assert.Equal(t, int64(-2), FromBytes([]byte{0xFE, 0xFF}).Int64())
}

func TestRoundtripRandom(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		buf := make([]byte, r.Intn(MaxBytesLen)+1)
		r.Read(buf)
		num := FromBytes(buf)
		buf2 := ToBytes(num)
		assert.Equal(t, num, FromBytes(buf2))
		require.True(t, len(buf2) <= len(buf))
		require.True(t, IsValid(num))
	}
}

func TestIsValid(t *testing.T) {
	max := new(big.Int).Lsh(big.NewInt(1), 255)
	require.False(t, IsValid(max))
	require.True(t, IsValid(new(big.Int).Sub(max, big.NewInt(1))))
	min := new(big.Int).Neg(max)
	require.True(t, IsValid(min))
	require.False(t, IsValid(new(big.Int).Sub(min, big.NewInt(1))))
	require.Equal(t, MaxBytesLen, len(ToBytes(min)))
}

func TestFromBytesUnsigned(t *testing.T) {
	assert.Equal(t, int64(255), FromBytesUnsigned([]byte{0xFF}).Int64())
	assert.Equal(t, int64(0x0102), FromBytesUnsigned([]byte{0x02, 0x01}).Int64())
}
