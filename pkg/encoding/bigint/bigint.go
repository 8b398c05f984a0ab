// Package bigint implements the VM integer encoding: minimal two's
// complement in little-endian byte order with a 32-byte magnitude cap.
package bigint

import (
	"math/big"

	"github.com/neoref/neoref/pkg/util"
)

// MaxBytesLen is the maximum length of a serialized integer suitable for
// the VM, a 256-bit signed value.
const MaxBytesLen = 32

var bigOne = big.NewInt(1)

// IsValid checks that x fits into MaxBytesLen of minimal two's complement
// encoding.
func IsValid(x *big.Int) bool {
	if x.Sign() >= 0 {
		return x.BitLen() <= MaxBytesLen*8-1
	}
	neg := new(big.Int).Not(x)
	return neg.BitLen() <= MaxBytesLen*8-1
}

// FromBytesUnsigned converts data in little-endian format to an unsigned
// integer.
func FromBytesUnsigned(data []byte) *big.Int {
	return new(big.Int).SetBytes(util.ArrayReverse(data))
}

// FromBytes converts data in little-endian two's complement format to an
// integer. The most significant bit of the last byte is the sign bit, zero
// length decodes to zero.
func FromBytes(data []byte) *big.Int {
	size := len(data)
	if size == 0 {
		return new(big.Int)
	}
	n := new(big.Int).SetBytes(util.ArrayReverse(data))
	if data[size-1]&0x80 != 0 {
		base := new(big.Int).Lsh(bigOne, uint(size*8))
		n.Sub(n, base)
	}
	return n
}

// ToBytes converts an integer to its minimal little-endian two's
// complement form. Zero is encoded as an empty slice.
func ToBytes(n *big.Int) []byte {
	sign := n.Sign()
	if sign == 0 {
		return []byte{}
	}

	var l int
	if sign > 0 {
		l = n.BitLen()/8 + 1
	} else {
		neg := new(big.Int).Not(n)
		l = neg.BitLen()/8 + 1
	}

	x := n
	if sign < 0 {
		x = new(big.Int).Add(n, new(big.Int).Lsh(bigOne, uint(l*8)))
	}
	data := make([]byte, l)
	x.FillBytes(data)
	reverse(data)
	return data
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
