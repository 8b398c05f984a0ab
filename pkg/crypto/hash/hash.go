// Package hash wraps the cryptographic digests the protocol relies on.
// All of them are treated as black boxes with fixed input/output contracts.
package hash

import (
	"crypto/sha256"

	"github.com/neoref/neoref/pkg/util"
	"github.com/twmb/murmur3"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"
)

// Hashable represents an object which can be hashed. Usually these objects
// are io.Serializable and signable. They tend to cache the hash inside for
// effectiveness, providing this accessor method. Anything that can be
// identified with a hash can then be signed and verified.
type Hashable interface {
	Hash() util.Uint256
}

// Sha256 hashes the incoming byte slice using the sha256 algorithm.
func Sha256(data []byte) util.Uint256 {
	hash := sha256.Sum256(data)
	return hash
}

// DoubleSha256 performs sha256 twice on the given data.
func DoubleSha256(data []byte) util.Uint256 {
	h1 := sha256.Sum256(data)
	return sha256.Sum256(h1[:])
}

// RipeMD160 performs the RIPEMD160 hash algorithm on the given data.
func RipeMD160(data []byte) util.Uint160 {
	hasher := ripemd160.New()
	_, _ = hasher.Write(data)
	var hash util.Uint160
	copy(hash[:], hasher.Sum(nil))
	return hash
}

// Hash160 performs sha256 and then ripemd160 on the given data.
func Hash160(data []byte) util.Uint160 {
	h1 := sha256.Sum256(data)
	return RipeMD160(h1[:])
}

// Keccak256 returns the keccak256 hash of the given data.
func Keccak256(data []byte) util.Uint256 {
	hasher := sha3.NewLegacyKeccak256()
	_, _ = hasher.Write(data)
	var hash util.Uint256
	copy(hash[:], hasher.Sum(nil))
	return hash
}

// Checksum returns the checksum for a given piece of data using sha256
// twice as the hash algorithm.
func Checksum(data []byte) []byte {
	hash := DoubleSha256(data)
	return hash[:4]
}

// Murmur32 hashes the given data with the murmur3 32-bit algorithm and the
// given seed. Syscall identifiers and bloom-style lookups use seed zero.
func Murmur32(data []byte, seed uint32) uint32 {
	return murmur3.SeedSum32(seed, data)
}
