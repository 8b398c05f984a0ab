package address

import (
	"testing"

	"github.com/neoref/neoref/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint160AddressRoundtrip(t *testing.T) {
	u := util.Uint160{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	addr := Uint160ToString(u)
	require.NotEmpty(t, addr)
	assert.Equal(t, 'N', rune(addr[0]))

	back, err := StringToUint160(addr)
	require.NoError(t, err)
	assert.Equal(t, u, back)
}

func TestBadAddresses(t *testing.T) {
	_, err := StringToUint160("")
	require.Error(t, err)
	_, err = StringToUint160("NotAnAddressAtAll000000000000000000")
	require.Error(t, err)
}

func TestBase58CheckRoundtrip(t *testing.T) {
	data := []byte{0x35, 1, 2, 3, 4}
	s := Base58CheckEncode(data)
	back, err := Base58CheckDecode(s)
	require.NoError(t, err)
	assert.Equal(t, data, back)

	// Corrupt the checksum.
	_, err = Base58CheckDecode(s + "1")
	require.Error(t, err)
}
