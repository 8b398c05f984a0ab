package hash

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSha256(t *testing.T) {
	input := []byte("hello")
	data := Sha256(input)

	expected := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	actual := hex.EncodeToString(data.BytesBE())

	assert.Equal(t, expected, actual)
}

func TestHash160(t *testing.T) {
	// first byte of a verification script and a compressed key.
	input, err := hex.DecodeString("21031a6c6fbbdf02ca351745fa86b9ba5a9452d785ac4f7fc2b7548ca2a46c4fcf4aac")
	require.NoError(t, err)
	data := Hash160(input)

	assert.Equal(t, "23ba2703c53263e8d6e522dc32203339dcd8eee9", hex.EncodeToString(data.BytesBE()))
}

func TestDoubleSha256(t *testing.T) {
	input := []byte("hello")
	first := Sha256(input)
	expected := Sha256(first.BytesBE())
	assert.Equal(t, expected, DoubleSha256(input))
}

func TestMurmur32(t *testing.T) {
	// reference vectors for murmur3 x86 32-bit.
	assert.Equal(t, uint32(0x248bfa47), Murmur32([]byte("hello"), 0))
	assert.Equal(t, uint32(0), Murmur32(nil, 0))
}

func TestChecksum(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	sum := Checksum(data)
	assert.Equal(t, DoubleSha256(data).BytesBE()[:4], sum)
}
