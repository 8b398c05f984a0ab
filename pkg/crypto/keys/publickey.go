// Package keys implements the public key types the protocol verifies
// signatures against: compressed points on secp256r1 or secp256k1.
package keys

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secp256k1ecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/neoref/neoref/pkg/core/interop/interopnames"
	"github.com/neoref/neoref/pkg/crypto/hash"
	"github.com/neoref/neoref/pkg/io"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/emit"
)

// coordLen is the number of bytes in serialized X or Y coordinate.
const coordLen = 32

// SignatureLen is the length of a standard signature, r followed by s.
const SignatureLen = 64

// PublicKey represents a public key on a NIST P-256 or a Koblitz curve.
type PublicKey struct {
	X *big.Int
	Y *big.Int

	// K1 is true when the key is on the secp256k1 curve.
	K1 bool
}

// PublicKeys is a list of public keys.
type PublicKeys []*PublicKey

// Len implements sort.Interface.
func (keys PublicKeys) Len() int { return len(keys) }

// Swap implements sort.Interface.
func (keys PublicKeys) Swap(i, j int) {
	keys[i], keys[j] = keys[j], keys[i]
}

// Less implements sort.Interface. Keys are ordered by their X coordinate,
// then by their Y coordinate.
func (keys PublicKeys) Less(i, j int) bool {
	return keys[i].Cmp(keys[j]) == -1
}

// Cmp compares two keys.
func (p *PublicKey) Cmp(key *PublicKey) int {
	xCmp := p.X.Cmp(key.X)
	if xCmp != 0 {
		return xCmp
	}
	return p.Y.Cmp(key.Y)
}

// Equal returns true in case public keys are equal.
func (p *PublicKey) Equal(key *PublicKey) bool {
	return p.Cmp(key) == 0 && p.K1 == key.K1
}

// Contains checks whether the passed param is contained in the list.
func (keys PublicKeys) Contains(pKey *PublicKey) bool {
	for _, key := range keys {
		if key.Equal(pKey) {
			return true
		}
	}
	return false
}

// Copy returns a shallow copy of the list.
func (keys PublicKeys) Copy() PublicKeys {
	if keys == nil {
		return nil
	}
	res := make(PublicKeys, len(keys))
	copy(res, keys)
	return res
}

// Unique returns a set of keys.
func (keys PublicKeys) Unique() PublicKeys {
	unique := PublicKeys{}
	for _, publicKey := range keys {
		if !unique.Contains(publicKey) {
			unique = append(unique, publicKey)
		}
	}
	return unique
}

// NewPublicKeyFromBytes returns a public key created from the given bytes
// on the P-256 curve.
func NewPublicKeyFromBytes(data []byte) (*PublicKey, error) {
	return newPublicKeyFromBytes(data, false)
}

// NewSecp256k1PublicKeyFromBytes returns a public key created from the
// given bytes on the secp256k1 curve.
func NewSecp256k1PublicKeyFromBytes(data []byte) (*PublicKey, error) {
	return newPublicKeyFromBytes(data, true)
}

func newPublicKeyFromBytes(data []byte, k1 bool) (*PublicKey, error) {
	pubKey := &PublicKey{K1: k1}
	r := io.NewBinReaderFromBuf(data)
	pubKey.DecodeBinary(r)
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Len() != 0 {
		return nil, errors.New("extra data")
	}
	return pubKey, nil
}

// NewPublicKeyFromString returns a public key created from the
// given hex string.
func NewPublicKeyFromString(s string) (*PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return NewPublicKeyFromBytes(b)
}

func (p *PublicKey) curve() elliptic.Curve {
	if p.K1 {
		return secp256k1.S256()
	}
	return elliptic.P256()
}

// Bytes returns byte array representation of the public key in compressed
// form (33 bytes with 0x02 or 0x03 prefix, except infinity which is a
// single zero byte).
func (p *PublicKey) Bytes() []byte {
	if p.IsInfinity() {
		return []byte{0x00}
	}

	var (
		x       = p.X.Bytes()
		paddedX = append(bytes.Repeat([]byte{0x00}, coordLen-len(x)), x...)
		prefix  = byte(0x03)
	)

	if p.Y.Bit(0) == 0 {
		prefix = 0x02
	}

	return append([]byte{prefix}, paddedX...)
}

// IsInfinity checks if the key is infinite (null, basically).
func (p *PublicKey) IsInfinity() bool {
	return p.X == nil && p.Y == nil
}

// String implements the Stringer interface.
func (p *PublicKey) String() string {
	if p.IsInfinity() {
		return "00"
	}
	bx := hex.EncodeToString(p.X.Bytes())
	by := hex.EncodeToString(p.Y.Bytes())
	return fmt.Sprintf("%s%s", bx, by)
}

// StringCompressed returns the hex string of the compressed form.
func (p *PublicKey) StringCompressed() string {
	return hex.EncodeToString(p.Bytes())
}

// DecodeBytes decodes a PublicKey from the given slice of bytes.
func (p *PublicKey) DecodeBytes(data []byte) error {
	switch len(data) {
	case 1, 33:
	default:
		return fmt.Errorf("invalid key size (expected 1 or 33, got %d)", len(data))
	}
	r := io.NewBinReaderFromBuf(data)
	p.DecodeBinary(r)
	return r.Err
}

// DecodeBinary decodes a PublicKey from the given BinReader using the
// compressed point format.
func (p *PublicKey) DecodeBinary(r *io.BinReader) {
	var prefix = r.ReadB()
	if r.Err != nil {
		return
	}

	// Infinity
	switch prefix {
	case 0x00:
		// noop, initialized to nil
		return
	case 0x02, 0x03:
	default:
		r.Err = fmt.Errorf("invalid prefix %d", prefix)
		return
	}
	var xbytes = make([]byte, coordLen)
	r.ReadBytes(xbytes)
	if r.Err != nil {
		return
	}
	data := make([]byte, 33)
	data[0] = prefix
	copy(data[1:], xbytes)

	if p.K1 {
		key, err := secp256k1.ParsePubKey(data)
		if err != nil {
			r.Err = err
			return
		}
		p.X = new(big.Int).SetBytes(key.X().Bytes())
		p.Y = new(big.Int).SetBytes(key.Y().Bytes())
		return
	}

	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), data)
	if x == nil {
		r.Err = errors.New("invalid compressed point")
		return
	}
	p.X, p.Y = x, y
}

// EncodeBinary encodes a PublicKey to the given BinWriter.
func (p *PublicKey) EncodeBinary(w *io.BinWriter) {
	w.WriteBytes(p.Bytes())
}

// GetVerificationScript returns the NEO VM verification script for the
// key: push the compressed key, then check the signature.
func (p *PublicKey) GetVerificationScript() []byte {
	w := io.NewBufBinWriter()
	emit.Bytes(&w.BinWriter, p.Bytes())
	emit.Syscall(&w.BinWriter, interopnames.SystemCryptoCheckSig)
	return w.Bytes()
}

// GetScriptHash returns a Hash160 of the verification script.
func (p *PublicKey) GetScriptHash() util.Uint160 {
	return hash.Hash160(p.GetVerificationScript())
}

// Verify returns true if the signature is valid and corresponds to the
// hash and public key. Signature is r followed by s, 64 bytes total.
func (p *PublicKey) Verify(signature []byte, hashToCheck []byte) bool {
	if p.X == nil || p.Y == nil || len(signature) != SignatureLen {
		return false
	}
	if p.K1 {
		var r, s secp256k1.ModNScalar
		if overflow := r.SetByteSlice(signature[:32]); overflow || r.IsZero() {
			return false
		}
		if overflow := s.SetByteSlice(signature[32:]); overflow || s.IsZero() {
			return false
		}
		key, err := secp256k1.ParsePubKey(p.Bytes())
		if err != nil {
			return false
		}
		return secp256k1ecdsa.NewSignature(&r, &s).Verify(hashToCheck, key)
	}
	pubKey := &ecdsa.PublicKey{
		Curve: p.curve(),
		X:     p.X,
		Y:     p.Y,
	}
	rBytes := new(big.Int).SetBytes(signature[0:32])
	sBytes := new(big.Int).SetBytes(signature[32:64])
	return ecdsa.Verify(pubKey, hashToCheck, rBytes, sBytes)
}

// VerifyHashable returns true if the signature is valid and corresponds to
// the sha256 hash of the network-prefixed serialized item.
func (p *PublicKey) VerifyHashable(signature []byte, net uint32, hh hash.Hashable) bool {
	var digest = sha256.Sum256(GetSignedData(net, hh))
	return p.Verify(signature, digest[:])
}

// GetSignedData returns the data signed for the given item: 4-byte LE
// network magic followed by the item hash.
func GetSignedData(net uint32, hh hash.Hashable) []byte {
	var b = make([]byte, 4+util.Uint256Size)
	b[0] = byte(net)
	b[1] = byte(net >> 8)
	b[2] = byte(net >> 16)
	b[3] = byte(net >> 24)
	h := hh.Hash()
	copy(b[4:], h.BytesBE())
	return b
}

// MarshalJSON implements the json.Marshaler interface.
func (p *PublicKey) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.StringCompressed() + `"`), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (p *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	key, err := NewPublicKeyFromString(s)
	if err != nil {
		return err
	}
	*p = *key
	return nil
}

// Sort sorts the list of keys.
func (keys PublicKeys) Sort() {
	sort.Sort(keys)
}
