// Package address converts between script hashes and base58check
// addresses.
package address

import (
	"errors"

	"github.com/mr-tron/base58"
	"github.com/neoref/neoref/pkg/crypto/hash"
	"github.com/neoref/neoref/pkg/util"
)

// NEO3Prefix is the default address version of the N3 protocol.
const NEO3Prefix byte = 0x35

// Prefix is the address prefix used when converting, set to the N3
// default.
var Prefix = NEO3Prefix

// Uint160ToString returns the "NEO address" from the given Uint160.
func Uint160ToString(u util.Uint160) string {
	b := append([]byte{Prefix}, u.BytesBE()...)
	return Base58CheckEncode(b)
}

// StringToUint160 attempts to decode the given NEO address string into a
// Uint160.
func StringToUint160(s string) (u util.Uint160, err error) {
	b, err := Base58CheckDecode(s)
	if err != nil {
		return u, err
	}
	if b[0] != Prefix {
		return u, errors.New("wrong address prefix")
	}
	return util.Uint160DecodeBytesBE(b[1:21])
}

// Base58CheckEncode encodes b into a base58-check encoded string.
func Base58CheckEncode(b []byte) string {
	b = append(b, hash.Checksum(b)...)
	return base58.Encode(b)
}

// Base58CheckDecode decodes the given string to a byte slice verifying
// the checksum.
func Base58CheckDecode(s string) (b []byte, err error) {
	b, err = base58.Decode(s)
	if err != nil {
		return nil, err
	}

	if len(b) < 5 {
		return nil, errors.New("invalid base-58 check string: missing checksum")
	}

	expected := string(hash.Checksum(b[:len(b)-4]))
	if string(b[len(b)-4:]) != expected {
		return nil, errors.New("invalid base-58 check string: invalid checksum")
	}

	return b[:len(b)-4], nil
}
