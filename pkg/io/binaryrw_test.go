package io

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadU64LE(t *testing.T) {
	var val uint64 = 0xbadbadbadbadbad
	bw := NewBufBinWriter()
	bw.WriteU64LE(val)
	require.NoError(t, bw.Err)
	br := NewBinReaderFromBuf(bw.Bytes())
	assert.Equal(t, val, br.ReadU64LE())
	require.NoError(t, br.Err)
}

func TestVarUintRoundtrip(t *testing.T) {
	values := []uint64{0, 1, 0xfc, 0xfd, 0xfffe, 0xffff, 0x10000, 0xffffffff, 0x100000000}
	for _, v := range values {
		bw := NewBufBinWriter()
		bw.WriteVarUint(v)
		require.NoError(t, bw.Err)
		br := NewBinReaderFromBuf(bw.Bytes())
		assert.Equal(t, v, br.ReadVarUint())
		require.NoError(t, br.Err)
		assert.Equal(t, 0, br.Len())
	}
}

func TestVarBytes(t *testing.T) {
	b := []byte{1, 2, 3, 4, 5}
	bw := NewBufBinWriter()
	bw.WriteVarBytes(b)
	require.NoError(t, bw.Err)

	br := NewBinReaderFromBuf(bw.Bytes())
	assert.Equal(t, b, br.ReadVarBytes())
	require.NoError(t, br.Err)

	br = NewBinReaderFromBuf(bw.Bytes())
	_ = br.ReadVarBytes(4)
	assert.Error(t, br.Err)
}

func TestStickyError(t *testing.T) {
	br := NewBinReaderFromBuf([]byte{})
	_ = br.ReadB()
	require.Error(t, br.Err)
	err := br.Err
	_ = br.ReadU32LE()
	assert.Equal(t, err, br.Err)
}

func TestGetVarSize(t *testing.T) {
	assert.Equal(t, 1, GetVarSize(0xfc))
	assert.Equal(t, 3, GetVarSize(0xfd))
	assert.Equal(t, 3, GetVarSize(0xffff))
	assert.Equal(t, 5, GetVarSize(0x10000))
}
