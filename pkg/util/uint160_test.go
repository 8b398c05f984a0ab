package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint160DecodeEncodeString(t *testing.T) {
	hexStr := "2d3b96ae1bcc5a585e075e3b81920210dec16302"
	val, err := Uint160DecodeStringLE(hexStr)
	require.NoError(t, err)
	assert.Equal(t, hexStr, val.StringLE())

	valBE, err := Uint160DecodeStringBE(hexStr)
	require.NoError(t, err)
	assert.Equal(t, val, valBE.Reverse())

	_, err = Uint160DecodeStringLE(hexStr[1:])
	assert.Error(t, err)
	_, err = Uint160DecodeStringLE(hexStr[:len(hexStr)-2] + "zz")
	assert.Error(t, err)
}

func TestUint160DecodeEncodeBytes(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a,
		0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12, 0x13, 0x14}
	val, err := Uint160DecodeBytesLE(b)
	require.NoError(t, err)
	assert.Equal(t, b, val.BytesLE())
	assert.Equal(t, ArrayReverse(b), val.BytesBE())

	_, err = Uint160DecodeBytesLE(b[1:])
	assert.Error(t, err)
}

func TestUint160Equals(t *testing.T) {
	a := Uint160{1, 2, 3}
	b := Uint160{1, 2, 4}
	assert.False(t, a.Equals(b))
	assert.True(t, a.Equals(a))
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}

func TestUint160MarshalJSON(t *testing.T) {
	str := "0x2d3b96ae1bcc5a585e075e3b81920210dec16302"
	expected, err := Uint160DecodeStringLE(str[2:])
	require.NoError(t, err)

	data, err := expected.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"`+str+`"`, string(data))

	var u Uint160
	require.NoError(t, u.UnmarshalJSON(data))
	assert.True(t, expected.Equals(u))
}

func TestUint256DecodeEncode(t *testing.T) {
	hexStr := "f037308fa0ab18155bccfc08485468c112409ea5064595699e98c545f245f32d"
	val, err := Uint256DecodeStringLE(hexStr)
	require.NoError(t, err)
	assert.Equal(t, hexStr, val.StringLE())
	assert.Equal(t, val, val.Reverse().Reverse())

	b := val.BytesBE()
	got, err := Uint256DecodeBytesBE(b)
	require.NoError(t, err)
	assert.True(t, val.Equals(got))
	assert.Equal(t, 0, val.CompareTo(got))
}
