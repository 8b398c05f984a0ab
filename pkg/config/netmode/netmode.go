// Package netmode contains the well-known network magic values.
package netmode

import "strconv"

const (
	// MainNet contains the magic code used in the NEO main official network.
	MainNet Magic = 0x334f454e // NEO3
	// TestNet contains the magic code used in the NEO testing network.
	TestNet Magic = 0x3554334e // N3T5
	// PrivNet contains the default magic code used in NEO private networks.
	PrivNet Magic = 56753
	// UnitTestNet is the default magic code used in testing.
	UnitTestNet Magic = 42
)

// Magic describes the network the blockchain will operate on.
type Magic uint32

// String implements the stringer interface.
func (n Magic) String() string {
	switch n {
	case MainNet:
		return "mainnet"
	case TestNet:
		return "testnet"
	case PrivNet:
		return "privnet"
	case UnitTestNet:
		return "unit_testnet"
	default:
		return "net 0x" + strconv.FormatUint(uint64(n), 16)
	}
}
