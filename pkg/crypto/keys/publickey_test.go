package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEncodeCompressed(t *testing.T) {
	// A known compressed secp256r1 key.
	str := "03b209fd4f53a7170ea4444e0cb0a6bb6a53c2bd016926989cf85f9b0fba17a70c"
	pub, err := NewPublicKeyFromString(str)
	require.NoError(t, err)
	assert.Equal(t, str, pub.StringCompressed())
	assert.Equal(t, str, hex.EncodeToString(pub.Bytes()))
}

func TestInvalidKeysRejected(t *testing.T) {
	_, err := NewPublicKeyFromString("04b209fd")
	require.Error(t, err)
	_, err = NewPublicKeyFromBytes(make([]byte, 33))
	require.Error(t, err)
}

func TestSignVerify(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	pub := &PublicKey{X: priv.X, Y: priv.Y}

	msg := []byte("some message")
	digest := sha256.Sum256(msg)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	require.NoError(t, err)

	signature := make([]byte, SignatureLen)
	r.FillBytes(signature[:32])
	s.FillBytes(signature[32:])

	assert.True(t, pub.Verify(signature, digest[:]))
	digest[0] ^= 0xFF
	assert.False(t, pub.Verify(signature, digest[:]))
}

func TestVerificationScript(t *testing.T) {
	str := "03b209fd4f53a7170ea4444e0cb0a6bb6a53c2bd016926989cf85f9b0fba17a70c"
	pub, err := NewPublicKeyFromString(str)
	require.NoError(t, err)
	script := pub.GetVerificationScript()
	// PUSHDATA1, 33, key bytes, SYSCALL, 4-byte id.
	require.Equal(t, 40, len(script))
	assert.Equal(t, byte(0x0C), script[0])
	assert.Equal(t, byte(33), script[1])
	assert.Equal(t, pub.Bytes(), script[2:35])
	assert.Equal(t, byte(0x41), script[35])
}

func TestPublicKeysSortUnique(t *testing.T) {
	k1, _ := NewPublicKeyFromString("03b209fd4f53a7170ea4444e0cb0a6bb6a53c2bd016926989cf85f9b0fba17a70c")
	k2, _ := NewPublicKeyFromString("02a7bc55fe8684e0119768d104ba30795bdcc86619e864add26156723ed185cd62")
	ks := PublicKeys{k1, k2, k1}
	unique := ks.Unique()
	require.Equal(t, 2, len(unique))
	sort.Sort(unique)
	assert.True(t, unique[0].Cmp(unique[1]) < 0)
}
